// Package search scans the vault for content and file name matches.
package search

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/gobwas/glob"

	"github.com/starford/notevault/internal/apperr"
	"github.com/starford/notevault/internal/models"
	"github.com/starford/notevault/internal/storage"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500

	snippetWidth = 160
)

// ContentExtensions lists the file types searched by Content.
var ContentExtensions = []string{".md", ".markdown", ".txt"}

// Options tune a search.
type Options struct {
	Limit      int
	IgnoreCase bool
}

func (o Options) limit() int {
	switch {
	case o.Limit <= 0:
		return DefaultLimit
	case o.Limit > MaxLimit:
		return MaxLimit
	}
	return o.Limit
}

// Searcher walks a storage provider on every call; there is no index.
type Searcher struct {
	store storage.Provider
}

// New creates a Searcher over store.
func New(store storage.Provider) *Searcher {
	return &Searcher{store: store}
}

// errStop ends a walk once the limit is reached.
var errStop = errors.New("search: limit reached")

// Content returns lines containing query, one hit per line, in path order.
func (s *Searcher) Content(ctx context.Context, query string, opts Options) ([]models.ContentHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", apperr.ErrInvalidArgument)
	}
	needle := []byte(query)
	if opts.IgnoreCase {
		needle = bytes.ToLower(needle)
	}
	limit := opts.limit()

	hits := []models.ContentHit{}
	err := s.store.Walk(func(e models.Entry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !searchable(e.Rel) {
			return nil
		}
		data, err := s.store.Read(e.Path)
		if err != nil {
			// Raced with a delete or rename.
			return nil
		}
		sc := bufio.NewScanner(bytes.NewReader(data))
		sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for n := 1; sc.Scan(); n++ {
			line := sc.Bytes()
			hay := line
			if opts.IgnoreCase {
				hay = bytes.ToLower(line)
			}
			if !bytes.Contains(hay, needle) {
				continue
			}
			hits = append(hits, models.ContentHit{Path: e.Rel, Line: n, Snippet: snippet(string(line))})
			if len(hits) >= limit {
				return errStop
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return nil, err
	}
	return hits, nil
}

// Filename returns files whose name contains query. A query holding glob
// metacharacters is matched as a pattern instead: against the whole
// relative path when it contains a slash, otherwise against the base name.
func (s *Searcher) Filename(ctx context.Context, query string, opts Options) ([]models.FileHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", apperr.ErrInvalidArgument)
	}
	match, err := matcher(query, opts.IgnoreCase)
	if err != nil {
		return nil, err
	}
	limit := opts.limit()

	hits := []models.FileHit{}
	err = s.store.Walk(func(e models.Entry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !match(e.Rel) {
			return nil
		}
		hits = append(hits, models.FileHit{
			Path:      e.Rel,
			Name:      path.Base(e.Rel),
			Size:      e.Size,
			UpdatedAt: e.ModTime,
		})
		if len(hits) >= limit {
			return errStop
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return nil, err
	}
	return hits, nil
}

func matcher(query string, ignoreCase bool) (func(rel string) bool, error) {
	fold := func(s string) string { return s }
	if ignoreCase {
		fold = strings.ToLower
	}
	q := fold(query)

	if !strings.ContainsAny(query, "*?[{") {
		return func(rel string) bool {
			return strings.Contains(fold(path.Base(rel)), q)
		}, nil
	}

	g, err := glob.Compile(q, '/')
	if err != nil {
		return nil, fmt.Errorf("%w: bad pattern %q: %v", apperr.ErrInvalidArgument, query, err)
	}
	if strings.Contains(query, "/") {
		return func(rel string) bool { return g.Match(fold(rel)) }, nil
	}
	return func(rel string) bool { return g.Match(fold(path.Base(rel))) }, nil
}

func searchable(rel string) bool {
	ext := strings.ToLower(path.Ext(rel))
	for _, e := range ContentExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

func snippet(line string) string {
	line = strings.TrimSpace(line)
	if len(line) <= snippetWidth {
		return line
	}
	cut := snippetWidth
	for cut > 0 && !utf8.RuneStart(line[cut]) {
		cut--
	}
	return line[:cut] + "…"
}
