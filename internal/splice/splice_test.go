package splice

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"ck3weight/internal/scanner"
)

const twoRegions = `namespace = test
a.1 = {
	ai_chance = {
		# AI-START using: {aggressive}
		# designer note
		base = 1
		# AI-END
	}
}
a.2 = {
	ai_chance = {
		# AI-START
		# using: {cautious}
		base = 2
		# AI-END
	}
}
`

func scan(t *testing.T, text string) []scanner.Block {
	t.Helper()
	blocks := scanner.Default().Scan(scanner.Lines(text))
	if len(blocks) == 0 {
		t.Fatal("fixture has no blocks")
	}
	return blocks
}

func TestApplyNothingIsByteIdentical(t *testing.T) {
	for name, text := range map[string]string{
		"lf":         twoRegions,
		"crlf":       strings.ReplaceAll(twoRegions, "\n", "\r\n"),
		"no newline": strings.TrimSuffix(twoRegions, "\n"),
	} {
		t.Run(name, func(t *testing.T) {
			blocks := scan(t, text)
			res := Apply(SplitLines(text), blocks, nil, Policy{PreserveComments: true})
			if got := Join(res.Lines); got != text {
				t.Errorf("output changed:\n%q\nwant\n%q", got, text)
			}
			if res.Changed() || len(res.Unresolved) != 2 {
				t.Errorf("Applied = %d, Unresolved = %d", len(res.Applied), len(res.Unresolved))
			}
		})
	}
}

func TestApplyRetainMarkers(t *testing.T) {
	blocks := scan(t, twoRegions)
	repl := Replacements{blocks[0].Start.Line: "base = 50\nmodifier = {\n\tadd = 10\n}\n"}

	res := Apply(SplitLines(twoRegions), blocks, repl, Policy{PreserveComments: true})

	want := `namespace = test
a.1 = {
	ai_chance = {
		# AI-START using: {aggressive}
		# designer note
		base = 50
		modifier = {
			add = 10
		}
		# AI-END
	}
}
a.2 = {
	ai_chance = {
		# AI-START
		# using: {cautious}
		base = 2
		# AI-END
	}
}
`
	if diff := cmp.Diff(want, Join(res.Lines)); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	if len(res.Applied) != 1 || len(res.Unresolved) != 1 || res.Unresolved[0].Model != "cautious" {
		t.Errorf("Applied = %+v, Unresolved = %+v", res.Applied, res.Unresolved)
	}
}

func TestApplyKeepsModelReferenceWithoutComments(t *testing.T) {
	blocks := scan(t, twoRegions)
	repl := Replacements{blocks[1].Start.Line: "base = 9"}

	res := Apply(SplitLines(twoRegions), blocks, repl, Policy{})

	got := Join(res.Lines)
	wantTail := "\t\t# AI-START\n\t\t# using: {cautious}\n\t\tbase = 9\n\t\t# AI-END\n\t}\n}\n"
	if !strings.HasSuffix(got, wantTail) {
		t.Errorf("tail mismatch:\n%s", got)
	}
	// comments are not preserved, so the first region keeps its note only
	// because it was not rewritten
	if !strings.Contains(got, "# designer note") {
		t.Error("untouched region changed")
	}
}

func TestApplyDeleteMarkers(t *testing.T) {
	blocks := scan(t, twoRegions)
	repl := Replacements{
		blocks[0].Start.Line: "ai_chance = {\n\tbase = 50\n}",
		blocks[1].Start.Line: "ai_chance = {\n\tbase = 7\n}",
	}

	res := Apply(SplitLines(twoRegions), blocks, repl, Policy{DeleteMarkers: true, PreserveComments: true})

	want := `namespace = test
a.1 = {
	# designer note
	ai_chance = {
		base = 50
	}
}
a.2 = {
	# using: {cautious}
	ai_chance = {
		base = 7
	}
}
`
	// comments keep their own indentation
	want = strings.Replace(want, "\t# designer note", "\t\t# designer note", 1)
	want = strings.Replace(want, "\t# using: {cautious}", "\t\t# using: {cautious}", 1)
	if diff := cmp.Diff(want, Join(res.Lines)); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyIsOrderIndependent(t *testing.T) {
	blocks := scan(t, twoRegions)
	repl := Replacements{
		blocks[0].Start.Line: "base = 1\nbase = 1\nbase = 1",
		blocks[1].Start.Line: "base = 2",
	}
	forward := Apply(SplitLines(twoRegions), blocks, repl, Policy{PreserveComments: true})
	backward := Apply(SplitLines(twoRegions), []scanner.Block{blocks[1], blocks[0]}, repl, Policy{PreserveComments: true})

	if diff := cmp.Diff(Join(forward.Lines), Join(backward.Lines)); diff != "" {
		t.Errorf("order changed output (-forward +backward):\n%s", diff)
	}
	if !strings.HasPrefix(Join(forward.Lines), "namespace = test\na.1 = {\n\tai_chance = {\n") {
		t.Error("lines before the first region changed")
	}
}

func TestApplyUsesFileLineEnding(t *testing.T) {
	text := strings.ReplaceAll(twoRegions, "\n", "\r\n")
	blocks := scan(t, text)
	res := Apply(SplitLines(text), blocks, Replacements{blocks[0].Start.Line: "base = 3\n"}, Policy{})

	out := Join(res.Lines)
	if strings.Count(out, "\n") != strings.Count(out, "\r\n") {
		t.Errorf("mixed line endings in output: %q", out)
	}
	if !strings.Contains(out, "\t\tbase = 3\r\n") {
		t.Errorf("replacement missing: %q", out)
	}
}

func TestApplyPreservesMissingFinalNewline(t *testing.T) {
	text := "ai_chance = {\n\t# AI-START using: {x}\n\t# AI-END\n}"
	blocks := scan(t, text)
	res := Apply(SplitLines(text), blocks, Replacements{blocks[0].Start.Line: "ai_chance = {\n\tbase = 1\n}"}, Policy{DeleteMarkers: true})
	if got := Join(res.Lines); got != "ai_chance = {\n\tbase = 1\n}" {
		t.Errorf("got %q", got)
	}
}
