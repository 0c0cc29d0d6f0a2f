// Package termui prints notes to the terminal.
package termui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
)

// DefaultWidth is the word-wrap width used when none is configured.
const DefaultWidth = 80

// Printer writes note content, rendering Markdown when the output is a
// terminal and passing it through unchanged otherwise.
type Printer struct {
	Out   io.Writer
	Style string // glamour standard style, "dark" when empty
	Width int
	// ForceRender renders even when Out is not a terminal.
	ForceRender bool
}

// NewPrinter returns a Printer for out with default settings.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{Out: out}
}

// IsTerminal reports whether w is a file attached to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// RenderMarkdown renders content with the given glamour style.
func RenderMarkdown(content, style string, width int) (string, error) {
	if width <= 0 {
		width = DefaultWidth
	}
	if style == "" {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	out, err := r.Render(content)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n") + "\n", nil
}

// PrintNote writes a one-line header naming path followed by content.
func (p *Printer) PrintNote(path, content string, created bool) error {
	status := "existing"
	if created {
		status = "created"
	}

	if !p.ForceRender && !IsTerminal(p.Out) {
		_, err := io.WriteString(p.Out, content)
		return err
	}

	if _, err := fmt.Fprintf(p.Out, "%s (%s)\n", path, status); err != nil {
		return err
	}
	if strings.TrimSpace(content) == "" {
		return nil
	}
	rendered, err := RenderMarkdown(content, p.Style, p.Width)
	if err != nil {
		return fmt.Errorf("termui: render %s: %w", path, err)
	}
	_, err = io.WriteString(p.Out, rendered)
	return err
}
