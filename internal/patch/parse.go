// Package patch parses unified diffs and applies them strictly to file content.
//
// Matching is byte-for-byte: context and removed lines must equal the target
// lines exactly, including trailing whitespace and carriage returns. There is
// no fuzz factor and no offset search.
package patch

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/starford/notevault/internal/apperr"
)

// Op tags a hunk line.
type Op byte

const (
	Context Op = ' '
	Delete  Op = '-'
	Add     Op = '+'
)

// Line is one tagged hunk line. Text excludes the line terminator.
type Line struct {
	Op        Op
	Text      string
	NoNewline bool // followed by "\ No newline at end of file"
}

// Hunk is one contiguous change region. Start lines are 1-based; a zero
// count means the hunk inserts after (or deletes up to) Start.
type Hunk struct {
	OldStart, OldCount int
	NewStart, NewCount int
	Section            string
	Lines              []Line
}

// Patch is a parsed single-file unified diff.
type Patch struct {
	OldName string
	NewName string
	Hunks   []Hunk
}

var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@ ?(.*)$`)

// Parse reads a unified diff. File headers are optional; text before the
// first hunk that is not a recognised header is ignored, as git and GNU
// patch do with commit messages.
func Parse(text string) (*Patch, error) {
	text = decodeEscapedNewlines(text)
	if strings.TrimSpace(text) == "" {
		return nil, apperr.ErrEmptyPatch
	}

	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	p := &Patch{}
	files := 0
	for i := 0; i < len(lines); {
		raw := lines[i]
		header := strings.TrimRight(raw, "\r")

		switch {
		case strings.HasPrefix(header, "--- ") && i+1 < len(lines) && strings.HasPrefix(lines[i+1], "+++ "):
			files++
			if files > 1 {
				return nil, fmt.Errorf("%w: patch touches more than one file", apperr.ErrInvalidPatch)
			}
			p.OldName = fileName(header[4:])
			p.NewName = fileName(strings.TrimRight(lines[i+1], "\r")[4:])
			i += 2

		case strings.HasPrefix(header, "@@"):
			h, next, err := parseHunk(lines, i, len(p.Hunks)+1)
			if err != nil {
				return nil, err
			}
			p.Hunks = append(p.Hunks, h)
			i = next

		default:
			i++
		}
	}

	if len(p.Hunks) == 0 {
		return nil, apperr.ErrEmptyPatch
	}
	return p, nil
}

func parseHunk(lines []string, at, index int) (Hunk, int, error) {
	header := strings.TrimRight(lines[at], "\r")
	m := hunkHeaderRe.FindStringSubmatch(header)
	if m == nil {
		return Hunk{}, 0, fmt.Errorf("%w: hunk %d: malformed header %q", apperr.ErrInvalidPatch, index, header)
	}
	h := Hunk{
		OldStart: atoi(m[1], 0),
		OldCount: atoi(m[2], 1),
		NewStart: atoi(m[3], 0),
		NewCount: atoi(m[4], 1),
		Section:  m[5],
	}

	oldSeen, newSeen := 0, 0
	i := at + 1
	for ; i < len(lines); i++ {
		raw := lines[i]

		if strings.HasPrefix(raw, `\`) {
			if len(h.Lines) == 0 {
				return Hunk{}, 0, fmt.Errorf("%w: hunk %d: marker before any line", apperr.ErrInvalidPatch, index)
			}
			h.Lines[len(h.Lines)-1].NoNewline = true
			continue
		}
		if oldSeen == h.OldCount && newSeen == h.NewCount {
			break
		}

		var l Line
		switch {
		case raw == "" || raw == "\r":
			// Editors and mail clients strip the lone space of empty context
			// lines. A CRLF payload keeps its "\r", which still has to match.
			l = Line{Op: Context, Text: raw}
		case raw[0] == ' ' || raw[0] == '-' || raw[0] == '+':
			l = Line{Op: Op(raw[0]), Text: raw[1:]}
		default:
			return Hunk{}, 0, fmt.Errorf("%w: hunk %d: unexpected line %q", apperr.ErrInvalidPatch, index, raw)
		}

		if l.Op != Add {
			oldSeen++
		}
		if l.Op != Delete {
			newSeen++
		}
		if oldSeen > h.OldCount || newSeen > h.NewCount {
			return Hunk{}, 0, fmt.Errorf("%w: hunk %d: more lines than its header declares", apperr.ErrInvalidPatch, index)
		}
		h.Lines = append(h.Lines, l)
	}

	if oldSeen != h.OldCount || newSeen != h.NewCount {
		return Hunk{}, 0, fmt.Errorf("%w: hunk %d: truncated (old %d/%d, new %d/%d)",
			apperr.ErrInvalidPatch, index, oldSeen, h.OldCount, newSeen, h.NewCount)
	}
	return h, i, nil
}

// decodeEscapedNewlines undoes a common client mistake of double-encoding
// the payload so that it arrives as a single line containing literal "\n".
func decodeEscapedNewlines(text string) string {
	if strings.Contains(text, "\n") || !strings.Contains(text, `\n`) {
		return text
	}
	return strings.ReplaceAll(text, `\n`, "\n")
}

// fileName strips timestamps and the conventional a/ b/ prefixes.
func fileName(s string) string {
	if i := strings.IndexByte(s, '\t'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if s == "/dev/null" {
		return ""
	}
	if strings.HasPrefix(s, "a/") || strings.HasPrefix(s, "b/") {
		s = s[2:]
	}
	return s
}

func atoi(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// Targets reports whether the file headers of p, if any, name rel.
// Headers may carry a shorter path than rel (a diff made from inside a
// subdirectory), but never a different file.
func (p *Patch) Targets(rel string) bool {
	for _, name := range []string{p.OldName, p.NewName} {
		if name == "" {
			continue
		}
		if name == rel || strings.HasSuffix(rel, "/"+name) {
			return true
		}
	}
	return p.OldName == "" && p.NewName == ""
}
