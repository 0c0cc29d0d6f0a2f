package daily

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/notevault/internal/apperr"
	"github.com/starford/notevault/internal/storage"
	"github.com/starford/notevault/internal/vaultpath"
)

type countingRenderer struct {
	mu    sync.Mutex
	calls int
	out   string
	err   error
}

func (r *countingRenderer) Render(_ context.Context, _ string, d Data) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	return r.out + d.Date, nil
}

func setup(t *testing.T) (vaultpath.Root, *storage.FS) {
	t.Helper()
	root, err := vaultpath.NewRoot(t.TempDir())
	require.NoError(t, err)
	return root, storage.NewFS(root)
}

var day = time.Date(2024, time.March, 7, 9, 30, 0, 0, time.UTC)

func TestPathForDefaultFormat(t *testing.T) {
	root, store := setup(t)
	g := New(root, store, nil, Config{})

	p, err := g.PathFor(day)
	require.NoError(t, err)
	assert.Equal(t, "daily/2024/2024-03-07.md", p.Rel())
}

func TestPathForRejectsEscapingFormat(t *testing.T) {
	root, store := setup(t)

	_, err := New(root, store, nil, Config{DateFormat: "../%Y.md"}).PathFor(day)
	assert.ErrorIs(t, err, apperr.ErrPathEscape)

	_, err = New(root, store, nil, Config{DateFormat: ".trash/%F.md"}).PathFor(day)
	assert.ErrorIs(t, err, apperr.ErrReservedPath)

	_, err = New(root, store, nil, Config{DateFormat: "journal/%Y/"}).PathFor(day)
	assert.ErrorIs(t, err, apperr.ErrInvalidPath)
}

func TestGetOrCreateRendersOnce(t *testing.T) {
	root, store := setup(t)
	r := &countingRenderer{out: "# "}
	g := New(root, store, r, Config{Template: "templates/daily.md"})

	first, err := g.GetOrCreate(context.Background(), day)
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, "# 2024-03-07", first.Content)

	second, err := g.GetOrCreate(context.Background(), day)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Content, second.Content)
	assert.Equal(t, first.Path, second.Path)
	assert.Equal(t, 1, r.calls)
}

func TestGetOrCreateConcurrent(t *testing.T) {
	root, store := setup(t)
	r := &countingRenderer{out: "x"}
	g := New(root, store, r, Config{Template: "t.md"})

	var wg sync.WaitGroup
	created := make(chan bool, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := g.GetOrCreate(context.Background(), day)
			if assert.NoError(t, err) {
				created <- n.Created
			}
		}()
	}
	wg.Wait()
	close(created)

	count := 0
	for c := range created {
		if c {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, r.calls)
}

func TestGetOrCreateKeepsExistingNote(t *testing.T) {
	root, store := setup(t)
	dir := filepath.Join(root.Dir(), "daily", "2024")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2024-03-07.md"), []byte("hand written"), 0o644))

	r := &countingRenderer{}
	n, err := New(root, store, r, Config{Template: "t.md"}).GetOrCreate(context.Background(), day)
	require.NoError(t, err)
	assert.False(t, n.Created)
	assert.Equal(t, "hand written", n.Content)
	assert.Zero(t, r.calls)
}

func TestGetOrCreateWithoutTemplate(t *testing.T) {
	root, store := setup(t)
	n, err := New(root, store, nil, Config{}).GetOrCreate(context.Background(), day)
	require.NoError(t, err)
	assert.True(t, n.Created)
	assert.Empty(t, n.Content)
}

func TestGetOrCreateTemplateFailure(t *testing.T) {
	root, store := setup(t)
	r := &countingRenderer{err: errors.New("boom")}
	g := New(root, store, r, Config{Template: "t.md"})

	_, err := g.GetOrCreate(context.Background(), day)
	assert.ErrorIs(t, err, apperr.ErrTemplate)

	p, _ := g.PathFor(day)
	_, statErr := os.Stat(p.Abs())
	assert.True(t, os.IsNotExist(statErr), "no note is written when rendering fails")
}

func TestGetOrCreateTemplateFileAbsent(t *testing.T) {
	root, store := setup(t)
	g := New(root, store, NewTemplateRenderer(root), Config{Template: "templates/none.md"})

	n, err := g.GetOrCreate(context.Background(), day)
	require.NoError(t, err)
	assert.True(t, n.Created)
	assert.Empty(t, n.Content)

	data, err := os.ReadFile(n.Path.Abs())
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestTemplateRenderer(t *testing.T) {
	root, store := setup(t)
	tmpl := "# {{ .Title }}\n{{ strftime \"%A\" .Now }} / {{ slug \"Daily Review!\" }}\nprev: {{ (addDays -1 .Now).Format \"2006-01-02\" }}\n{{ .Path }}\n"
	require.NoError(t, os.MkdirAll(filepath.Join(root.Dir(), "templates"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root.Dir(), "templates", "daily.md"), []byte(tmpl), 0o644))

	g := New(root, store, NewTemplateRenderer(root), Config{Template: "templates/daily.md"})
	n, err := g.GetOrCreate(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, "# 2024-03-07\nThursday / daily-review\nprev: 2024-03-06\ndaily/2024/2024-03-07.md\n", n.Content)

	data, err := os.ReadFile(n.Path.Abs())
	require.NoError(t, err)
	assert.Equal(t, n.Content, string(data))
}

func TestTemplateRendererErrors(t *testing.T) {
	root, _ := setup(t)
	r := NewTemplateRenderer(root)
	ctx := context.Background()

	_, err := r.Render(ctx, "missing.md", Data{})
	assert.ErrorIs(t, err, apperr.ErrTemplate)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = r.Render(ctx, "../outside.md", Data{})
	assert.ErrorIs(t, err, apperr.ErrTemplate)
	assert.ErrorIs(t, err, apperr.ErrPathEscape)

	require.NoError(t, os.WriteFile(filepath.Join(root.Dir(), "bad.md"), []byte("{{ .Nope "), 0o644))
	_, err = r.Render(ctx, "bad.md", Data{})
	assert.ErrorIs(t, err, apperr.ErrTemplate)
	assert.NotErrorIs(t, err, fs.ErrNotExist)

	require.NoError(t, os.WriteFile(filepath.Join(root.Dir(), "unknown.md"), []byte("{{ .Missing }}"), 0o644))
	_, err = r.Render(ctx, "unknown.md", Data{})
	assert.ErrorIs(t, err, apperr.ErrTemplate)
}
