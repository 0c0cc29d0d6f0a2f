package patch

import (
	"fmt"
	"strings"

	"github.com/starford/notevault/internal/apperr"
)

// MismatchError describes the first line where a hunk disagrees with the
// target content. Line is the 1-based line number in the original file.
type MismatchError struct {
	Hunk     int
	Line     int
	Expected string
	Actual   string
	EOF      bool // Actual is past the end of the file
	Reason   string
}

func (e *MismatchError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("patch does not apply: hunk %d at line %d: %s", e.Hunk, e.Line, e.Reason)
	}
	actual := fmt.Sprintf("%q", e.Actual)
	if e.EOF {
		actual = "end of file"
	}
	return fmt.Sprintf("patch does not apply: hunk %d at line %d: expected %q, found %s",
		e.Hunk, e.Line, e.Expected, actual)
}

func (e *MismatchError) Is(target error) bool { return target == apperr.ErrPatchDoesNotApply }

// ApplyText parses text and applies it to content.
func ApplyText(content, text string) (string, error) {
	p, err := Parse(text)
	if err != nil {
		return "", err
	}
	return Apply(content, p)
}

// Apply splices every hunk of p into content. Either all hunks apply or
// content is left as it was and an error is returned.
func Apply(content string, p *Patch) (string, error) {
	if p == nil || len(p.Hunks) == 0 {
		return "", apperr.ErrEmptyPatch
	}

	lines := SplitLines(content)
	var b strings.Builder
	b.Grow(len(content))

	cursor := 0
	for i, h := range p.Hunks {
		idx := i + 1
		start := h.OldStart - 1
		if h.OldCount == 0 {
			start = h.OldStart
		}
		if start < 0 {
			start = 0
		}
		if start < cursor {
			return "", &MismatchError{Hunk: idx, Line: start + 1, Reason: "overlaps the previous hunk"}
		}
		if start > len(lines) {
			return "", &MismatchError{Hunk: idx, Line: start + 1,
				Reason: fmt.Sprintf("starts beyond end of file (%d lines)", len(lines))}
		}

		pos := start
		for _, l := range h.Lines {
			if l.Op == Add {
				continue
			}
			want := lineText(l)
			if pos >= len(lines) {
				return "", &MismatchError{Hunk: idx, Line: pos + 1, Expected: trimEOL(want), EOF: true}
			}
			if lines[pos] != want {
				return "", &MismatchError{Hunk: idx, Line: pos + 1, Expected: trimEOL(want), Actual: trimEOL(lines[pos])}
			}
			pos++
		}

		for _, l := range lines[cursor:start] {
			b.WriteString(l)
		}
		for _, l := range h.Lines {
			if l.Op == Delete {
				continue
			}
			b.WriteString(lineText(l))
		}
		cursor = pos
	}
	for _, l := range lines[cursor:] {
		b.WriteString(l)
	}
	return b.String(), nil
}

// SplitLines splits s after each "\n", keeping terminators. A final line
// without a terminator is kept as is; an empty string has no lines.
func SplitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// lineText restores the terminator. A "\ No newline" marker on a context
// line applies to both sides of the diff.
func lineText(l Line) string {
	if l.NoNewline {
		return l.Text
	}
	return l.Text + "\n"
}

func trimEOL(s string) string {
	return strings.TrimSuffix(s, "\n")
}
