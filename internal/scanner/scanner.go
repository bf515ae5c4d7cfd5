// Package scanner finds marker-delimited AI weight regions in event script
// files.
//
// A region looks like
//
//	ai_chance = {
//		# AI-START using: {aggressive}
//		# hand-written notes survive regeneration
//		base = 10
//		# AI-END
//	}
//
// The scanner records two extents per region: the marker interior (the lines
// between the start and end marker) and the outer extent, the enclosing
// ai_chance block found by brace counting. Only the marker syntax and brace
// balance are understood; nothing else about the script is parsed.
package scanner

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Defaults used when a Config field is empty.
const (
	DefaultLibraryMarker  = "# AI-MODEL-LIB"
	DefaultStartMarker    = "# AI-START"
	DefaultEndMarker      = "# AI-END"
	DefaultModelPattern   = `using:\s*\{([^}]+)\}`
	DefaultCommentPattern = `#\s*(.+)`
	DefaultBlockOpener    = "ai_chance"
	DefaultLookahead      = 5
)

// Config holds the marker strings and patterns. Marker strings are literal
// text; the spaces in them match any run of whitespace so "# AI-START" also
// matches "#AI-START". ModelPattern and CommentPattern are regular
// expressions; ModelPattern must have one capture group for the model name.
// All matching is case-insensitive.
type Config struct {
	LibraryMarker  string
	StartMarker    string
	EndMarker      string
	ModelPattern   string
	CommentPattern string
	// BlockOpener is the key whose "<key> = {" line opens the outer block.
	BlockOpener string
	// Lookahead is how many lines, starting at the start marker, are
	// searched for the model reference.
	Lookahead int
}

// Scanner is a compiled Config. It holds no per-scan state and may be
// shared.
type Scanner struct {
	library   *regexp.Regexp
	start     *regexp.Regexp
	end       *regexp.Regexp
	model     *regexp.Regexp
	comment   *regexp.Regexp
	opener    *regexp.Regexp
	lookahead int
}

// New compiles cfg, substituting defaults for empty fields.
func New(cfg Config) (*Scanner, error) {
	s := &Scanner{lookahead: cfg.Lookahead}
	if s.lookahead <= 0 {
		s.lookahead = DefaultLookahead
	}

	var err error
	if s.library, err = markerRegexp(orDefault(cfg.LibraryMarker, DefaultLibraryMarker)); err != nil {
		return nil, fmt.Errorf("library marker: %w", err)
	}
	if s.start, err = markerRegexp(orDefault(cfg.StartMarker, DefaultStartMarker)); err != nil {
		return nil, fmt.Errorf("start marker: %w", err)
	}
	if s.end, err = markerRegexp(orDefault(cfg.EndMarker, DefaultEndMarker)); err != nil {
		return nil, fmt.Errorf("end marker: %w", err)
	}
	if s.model, err = regexp.Compile("(?i)" + orDefault(cfg.ModelPattern, DefaultModelPattern)); err != nil {
		return nil, fmt.Errorf("model pattern: %w", err)
	}
	if s.model.NumSubexp() < 1 {
		return nil, fmt.Errorf("model pattern %q has no capture group", cfg.ModelPattern)
	}
	if s.comment, err = regexp.Compile("(?i)" + orDefault(cfg.CommentPattern, DefaultCommentPattern)); err != nil {
		return nil, fmt.Errorf("comment pattern: %w", err)
	}
	opener := orDefault(cfg.BlockOpener, DefaultBlockOpener)
	if s.opener, err = regexp.Compile(`(?i)` + regexp.QuoteMeta(opener) + `\s*=\s*\{`); err != nil {
		return nil, fmt.Errorf("block opener: %w", err)
	}
	return s, nil
}

// Default returns a scanner using the default markers.
func Default() *Scanner {
	s, err := New(Config{})
	if err != nil {
		panic(err)
	}
	return s
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// markerRegexp quotes a literal marker, letting each whitespace run match
// any amount of whitespace.
func markerRegexp(marker string) (*regexp.Regexp, error) {
	fields := strings.Fields(marker)
	for i, f := range fields {
		fields[i] = regexp.QuoteMeta(f)
	}
	return regexp.Compile("(?i)" + strings.Join(fields, `\s*`))
}

// ---------------------------------------------------------------------------
// Results
// ---------------------------------------------------------------------------

// Marker is a marker line and its 1-based line number.
type Marker struct {
	Line int
	Text string
}

// Block is one scanned region. All line numbers are 1-based.
type Block struct {
	File  string
	Model string
	Start Marker
	End   Marker
	// Reference is the line holding the model reference: the start marker
	// itself or a line in the lookahead window.
	Reference Marker
	// ContentStart..ContentEnd is the marker interior. It is empty
	// (ContentStart == ContentEnd+1) when the markers are adjacent.
	ContentStart int
	ContentEnd   int
	// OuterStart..OuterEnd is the enclosing block. It falls back to the
	// marker lines when no opener or closing brace is found.
	OuterStart int
	OuterEnd   int
	// Content holds the interior lines; Comments the comment lines among
	// them, verbatim.
	Content  []string
	Comments []string
}

// File is the scan result for one file.
type File struct {
	Path       string
	HasLibrary bool
	Blocks     []Block
}

// Lines splits text into lines without terminators. A trailing newline
// yields a final empty line, which matches no pattern.
func Lines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// HasLibraryMarker reports whether text contains the library marker.
func (s *Scanner) HasLibraryMarker(text string) bool {
	return s.library.MatchString(text)
}

// ScanText scans the contents of the file at path.
func (s *Scanner) ScanText(path, text string) File {
	blocks := s.Scan(Lines(text))
	for i := range blocks {
		blocks[i].File = path
	}
	return File{Path: path, HasLibrary: s.HasLibraryMarker(text), Blocks: blocks}
}

// ScanFile reads and scans the file at path.
func (s *Scanner) ScanFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read %s: %w", path, err)
	}
	return s.ScanText(path, string(data)), nil
}

// ---------------------------------------------------------------------------
// State machine
// ---------------------------------------------------------------------------

type state int

const (
	searching state = iota
	inBlock
)

// Scan returns the regions found in lines, in file order. A start marker
// without a matching end marker, or a region with no model reference,
// yields nothing.
func (s *Scanner) Scan(lines []string) []Block {
	var (
		blocks []Block
		st     = searching
		cur    Block
		// candidate is the line of the most recent opener that is still
		// open, or 0.
		candidate      int
		candidateDepth int
		// depth is the brace depth inside the current marker interior.
		depth int
	)

	for i, line := range lines {
		n := i + 1
		switch st {
		case searching:
			if s.opener.MatchString(line) {
				candidate = n
				candidateDepth = 0
			}
			if candidate > 0 {
				candidateDepth += strings.Count(line, "{") - strings.Count(line, "}")
				if candidateDepth <= 0 {
					candidate = 0
				}
			}

			if !s.start.MatchString(line) {
				continue
			}
			st = inBlock
			cur = Block{
				Start:        Marker{Line: n, Text: line},
				ContentStart: n + 1,
				OuterStart:   candidate,
			}
			cur.Model, cur.Reference = s.findModel(lines, i)
			depth = 0

		case inBlock:
			if !s.end.MatchString(line) {
				cur.Content = append(cur.Content, line)
				// Comments nested in a brace block belong to generated
				// modifiers, not to the author.
				if depth <= 0 && s.comment.MatchString(line) && !s.start.MatchString(line) {
					cur.Comments = append(cur.Comments, line)
				}
				depth += braceDelta(line)
				continue
			}

			cur.End = Marker{Line: n, Text: line}
			cur.ContentEnd = n - 1
			if cur.Model != "" {
				from := cur.OuterStart
				if from == 0 {
					from = n
					cur.OuterStart = cur.Start.Line
				}
				cur.OuterEnd = closingLine(lines, from, n)
				if cur.OuterEnd == 0 {
					cur.OuterEnd = n
				}
				blocks = append(blocks, cur)
			}
			st = searching
			cur = Block{}
			candidate = 0
		}
	}
	return blocks
}

// findModel returns the first model reference in the lookahead window
// starting at index i, and the line it was found on.
func (s *Scanner) findModel(lines []string, i int) (string, Marker) {
	for j := i; j < len(lines) && j < i+s.lookahead; j++ {
		if m := s.model.FindStringSubmatch(lines[j]); m != nil {
			return strings.TrimSpace(m[1]), Marker{Line: j + 1, Text: lines[j]}
		}
	}
	return "", Marker{}
}

// braceDelta returns the opening minus closing braces of line, ignoring
// anything after a # comment start.
func braceDelta(line string) int {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	return strings.Count(line, "{") - strings.Count(line, "}")
}

// closingLine counts braces from line from and returns the line where depth
// first returns to zero after an opening brace. If that happens before line
// notBefore, or never, it returns 0.
func closingLine(lines []string, from, notBefore int) int {
	depth := 0
	opened := false
	for n := from; n <= len(lines); n++ {
		for _, r := range lines[n-1] {
			switch r {
			case '{':
				depth++
				opened = true
			case '}':
				depth--
				if opened && depth == 0 {
					if n < notBefore {
						return 0
					}
					return n
				}
			}
		}
	}
	return 0
}
