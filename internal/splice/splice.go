// Package splice writes generated text back into scanned regions.
//
// Lines are handled with their terminators attached so that a file with no
// replacements is reproduced byte for byte. Regions are applied from the
// bottom of the file upwards; an edit therefore never shifts the line
// numbers of a region still waiting to be applied.
package splice

import (
	"sort"
	"strings"

	"ck3weight/internal/scanner"
)

// Policy selects what survives around the generated text.
type Policy struct {
	// DeleteMarkers replaces the whole outer block, markers included. When
	// false only the marker region is rewritten and both markers are kept.
	DeleteMarkers bool
	// PreserveComments re-emits the region's comment lines above the
	// generated text.
	PreserveComments bool
}

// Replacements maps a block's start marker line to its generated text.
type Replacements map[int]string

// Result is the outcome of Apply.
type Result struct {
	Lines []string
	// Applied, Unresolved and Overlapping are in file order.
	Applied    []scanner.Block
	Unresolved []scanner.Block
	// Overlapping blocks had a replacement but their range collided with a
	// block already applied; they were left untouched.
	Overlapping []scanner.Block
}

// Changed reports whether any block was rewritten.
func (r Result) Changed() bool { return len(r.Applied) > 0 }

// SplitLines splits text into lines that keep their terminators.
func SplitLines(text string) []string {
	return strings.SplitAfter(text, "\n")
}

// Join concatenates lines produced by SplitLines or Apply.
func Join(lines []string) string {
	return strings.Join(lines, "")
}

// LineEnding returns the terminator used by text: "\r\n" if any line uses
// it, otherwise "\n".
func LineEnding(text string) string {
	if strings.Contains(text, "\r\n") {
		return "\r\n"
	}
	return "\n"
}

// Apply rewrites lines. Blocks without an entry in repl are reported as
// unresolved and left as they are. lines is not modified.
func Apply(lines []string, blocks []scanner.Block, repl Replacements, p Policy) Result {
	eol := LineEnding(Join(lines))
	out := append([]string(nil), lines...)
	res := Result{}

	ordered := append([]scanner.Block(nil), blocks...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].OuterStart != ordered[j].OuterStart {
			return ordered[i].OuterStart > ordered[j].OuterStart
		}
		return ordered[i].Start.Line > ordered[j].Start.Line
	})

	// lowest is the first line of the topmost range applied so far.
	lowest := len(lines) + 1
	for _, b := range ordered {
		text, ok := repl[b.Start.Line]
		if !ok {
			res.Unresolved = append(res.Unresolved, b)
			continue
		}
		from, to := deletionRange(b, p)
		if from < 1 || to > len(lines) || from > to || to >= lowest {
			res.Overlapping = append(res.Overlapping, b)
			continue
		}

		indentFrom := b.Start.Line
		if p.DeleteMarkers {
			indentFrom = from
		}
		replacement := replacementLines(lines, b, text, p, leadingWhitespace(lines[indentFrom-1]), eol)

		// Keep a missing final newline missing.
		if to == len(lines) && !strings.HasSuffix(lines[to-1], "\n") && len(replacement) > 0 {
			last := len(replacement) - 1
			replacement[last] = strings.TrimRight(replacement[last], "\r\n")
		}

		next := make([]string, 0, len(out)-(to-from+1)+len(replacement))
		next = append(next, out[:from-1]...)
		next = append(next, replacement...)
		next = append(next, out[to:]...)
		out = next

		lowest = from
		res.Applied = append(res.Applied, b)
	}

	res.Lines = out
	reverse(res.Applied)
	reverse(res.Unresolved)
	reverse(res.Overlapping)
	return res
}

// deletionRange returns the 1-based inclusive line range replaced for b.
func deletionRange(b scanner.Block, p Policy) (int, int) {
	if p.DeleteMarkers {
		return b.OuterStart, b.OuterEnd
	}
	return b.Start.Line, b.End.Line
}

func replacementLines(lines []string, b scanner.Block, text string, p Policy, indent, eol string) []string {
	var out []string
	if !p.DeleteMarkers {
		out = append(out, lines[b.Start.Line-1])
		// A model reference found below the start marker has to survive,
		// or the region cannot be regenerated.
		if b.Reference.Line > b.Start.Line && !(p.PreserveComments && contains(b.Comments, b.Reference.Text)) {
			out = append(out, b.Reference.Text+eol)
		}
	}
	if p.PreserveComments {
		for _, c := range b.Comments {
			out = append(out, c+eol)
		}
	}
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimRight(l, "\r")
		if strings.TrimSpace(l) == "" {
			continue
		}
		out = append(out, indent+l+eol)
	}
	if !p.DeleteMarkers {
		end := lines[b.End.Line-1]
		if !strings.HasSuffix(end, "\n") {
			end += eol
		}
		out = append(out, end)
	}
	return out
}

func leadingWhitespace(s string) string {
	return s[:len(s)-len(strings.TrimLeft(s, " \t"))]
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func reverse(bs []scanner.Block) {
	for i, j := 0, len(bs)-1; i < j; i, j = i+1, j-1 {
		bs[i], bs[j] = bs[j], bs[i]
	}
}
