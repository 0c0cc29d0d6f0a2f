// Package daily implements the get-or-create daily note.
package daily

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	"github.com/ncruces/go-strftime"

	"github.com/starford/notevault/internal/apperr"
	"github.com/starford/notevault/internal/storage"
	"github.com/starford/notevault/internal/vaultpath"
)

// DefaultDateFormat names daily notes daily/<year>/<yyyy-mm-dd>.md.
const DefaultDateFormat = "daily/%Y/%Y-%m-%d.md"

// Config is the daily note naming and templating policy.
type Config struct {
	// Template is the template file; relative paths live inside the vault.
	// Empty means new notes start empty.
	Template string `yaml:"template" toml:"template"`
	// DateFormat is a strftime pattern producing the vault-relative path.
	DateFormat string `yaml:"date_format" toml:"date_format"`
}

// Data is passed to the template.
type Data struct {
	Now     time.Time
	Date    string
	Title   string
	Path    string
	Weekday string
}

// Renderer turns a template file into note content.
type Renderer interface {
	Render(ctx context.Context, templatePath string, data Data) (string, error)
}

// Note is the result of GetOrCreate.
type Note struct {
	Path    vaultpath.Path
	Content string
	Created bool
}

// Generator creates at most one note per day.
type Generator struct {
	root     vaultpath.Root
	store    storage.Provider
	renderer Renderer
	cfg      Config

	mu sync.Mutex
}

// New returns a Generator. An empty DateFormat falls back to DefaultDateFormat.
func New(root vaultpath.Root, store storage.Provider, renderer Renderer, cfg Config) *Generator {
	if cfg.DateFormat == "" {
		cfg.DateFormat = DefaultDateFormat
	}
	return &Generator{root: root, store: store, renderer: renderer, cfg: cfg}
}

// PathFor returns the resolved daily note location for day.
func (g *Generator) PathFor(day time.Time) (vaultpath.Path, error) {
	rel := strftime.Format(g.cfg.DateFormat, day)
	if rel == "" || strings.HasSuffix(rel, "/") {
		return vaultpath.Path{}, &apperr.PathError{Path: rel, Err: apperr.ErrInvalidPath}
	}
	p, err := g.root.Resolve(rel)
	if err != nil {
		return vaultpath.Path{}, err
	}
	if p.InTrash() {
		return vaultpath.Path{}, &apperr.PathError{Path: p.Rel(), Err: apperr.ErrReservedPath}
	}
	return p, nil
}

// GetOrCreate returns the note for day, rendering and writing it first when
// it does not exist yet. An existing note is returned unchanged. A renderer
// error wrapping fs.ErrNotExist means the template file is absent and the note
// starts empty.
func (g *Generator) GetOrCreate(ctx context.Context, day time.Time) (*Note, error) {
	p, err := g.PathFor(day)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if note, err := g.read(p); err == nil || !errors.Is(err, apperr.ErrNotFound) {
		return note, err
	}

	content := ""
	if g.cfg.Template != "" {
		content, err = g.renderer.Render(ctx, g.cfg.Template, Data{
			Now:     day,
			Date:    day.Format(time.DateOnly),
			Title:   day.Format(time.DateOnly),
			Path:    p.Rel(),
			Weekday: day.Weekday().String(),
		})
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// A configured template that is not there yet gives an empty note.
			content = ""
		case err != nil:
			if !errors.Is(err, apperr.ErrTemplate) {
				err = fmt.Errorf("%w: %w", apperr.ErrTemplate, err)
			}
			return nil, err
		}
	}

	if err := g.store.Create(p, []byte(content)); err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			// Another process created it between our read and create.
			return g.read(p)
		}
		return nil, err
	}
	return &Note{Path: p, Content: content, Created: true}, nil
}

func (g *Generator) read(p vaultpath.Path) (*Note, error) {
	data, err := g.store.Read(p)
	if err != nil {
		return nil, err
	}
	return &Note{Path: p, Content: string(data)}, nil
}
