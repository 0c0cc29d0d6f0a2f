package termui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))
}

func TestPrintNotePlainOutput(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	require.NoError(t, p.PrintNote("daily/2024/2024-05-01.md", "# Today\n\n- item\n", true))
	assert.Equal(t, "# Today\n\n- item\n", buf.String())
}

func TestPrintNoteRendered(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{Out: &buf, Style: "notty", Width: 40, ForceRender: true}

	require.NoError(t, p.PrintNote("daily/2024/2024-05-01.md", "# Today\n\nSome **bold** text.\n", false))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "daily/2024/2024-05-01.md (existing)\n"), out)
	assert.Contains(t, out, "Today")
	assert.Contains(t, out, "bold")
}

func TestPrintNoteEmptyContent(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{Out: &buf, ForceRender: true}

	require.NoError(t, p.PrintNote("daily/x.md", "", true))
	assert.Equal(t, "daily/x.md (created)\n", buf.String())
}

func TestRenderMarkdownUnknownStyle(t *testing.T) {
	_, err := RenderMarkdown("# x", "no-such-style", 0)
	assert.Error(t, err)
}
