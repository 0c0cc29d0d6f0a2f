package noteservice

import (
	"context"
	"fmt"
	"time"

	"github.com/starford/notevault/internal/apperr"
	"github.com/starford/notevault/internal/checksum"
	"github.com/starford/notevault/internal/daily"
	"github.com/starford/notevault/internal/models"
	"github.com/starford/notevault/internal/parser"
	"github.com/starford/notevault/internal/patch"
	"github.com/starford/notevault/internal/search"
	"github.com/starford/notevault/internal/storage"
	"github.com/starford/notevault/internal/vaultpath"
)

// File is the full representation of a vault file.
type File struct {
	Path        string         `json:"path"`
	Content     string         `json:"content"`
	Checksum    string         `json:"checksum"`
	Size        int64          `json:"size"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Title       string         `json:"title,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Links       []string       `json:"links,omitempty"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
}

// Trashed reports where a trashed file went.
type Trashed struct {
	Path      string `json:"path"`
	TrashPath string `json:"trash_path"`
}

// DailyNote is the response of the daily note operation.
type DailyNote struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Checksum string `json:"checksum"`
	Created  bool   `json:"created"`
}

// Service is the single entry point used by the HTTP and MCP facades. It
// resolves caller paths, enforces preconditions and serializes writers of
// the same file.
type Service struct {
	root   vaultpath.Root
	store  storage.Provider
	daily  *daily.Generator
	search *search.Searcher
	locks  *pathLocks
	now    func() time.Time
}

// NewService creates a new note service.
func NewService(root vaultpath.Root, store storage.Provider, gen *daily.Generator) *Service {
	return &Service{
		root:   root,
		store:  store,
		daily:  gen,
		search: search.New(store),
		locks:  newPathLocks(),
		now:    time.Now,
	}
}

// Root returns the vault root.
func (s *Service) Root() vaultpath.Root { return s.root }

// Read returns the current content of a file. Trashed files can be read.
func (s *Service) Read(_ context.Context, rel string) (*File, error) {
	p, err := s.root.Resolve(rel)
	if err != nil {
		return nil, err
	}
	data, err := s.store.Read(p)
	if err != nil {
		return nil, err
	}
	return s.fileOf(p, data)
}

// Create writes a new file and fails if the path is taken.
func (s *Service) Create(_ context.Context, rel, content string) (*File, error) {
	p, err := s.writable(rel)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.lock(p.Abs())
	defer unlock()

	if err := s.store.Create(p, []byte(content)); err != nil {
		return nil, err
	}
	return s.fileOf(p, []byte(content))
}

// Replace overwrites an existing file. A non-empty ifMatch must match the
// checksum of the current content.
func (s *Service) Replace(_ context.Context, rel, content, ifMatch string) (*File, error) {
	p, err := s.writable(rel)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.lock(p.Abs())
	defer unlock()

	if ifMatch != "" {
		current, err := s.store.Read(p)
		if err != nil {
			return nil, err
		}
		if !checksum.Matches(ifMatch, current) {
			return nil, &apperr.PathError{Path: p.Rel(), Err: apperr.ErrConflict}
		}
	}
	if err := s.store.Replace(p, []byte(content)); err != nil {
		return nil, err
	}
	return s.fileOf(p, []byte(content))
}

// Patch applies a unified diff to a file. The read, verify and write happen
// under the file's lock so concurrent patches in this process serialize.
func (s *Service) Patch(_ context.Context, rel, diff, ifMatch string) (*File, error) {
	p, err := s.writable(rel)
	if err != nil {
		return nil, err
	}
	parsed, err := patch.Parse(diff)
	if err != nil {
		return nil, err
	}
	if !parsed.Targets(p.Rel()) {
		return nil, fmt.Errorf("%w: diff targets %q, not %q", apperr.ErrInvalidPatch, targetName(parsed), p.Rel())
	}

	unlock := s.locks.lock(p.Abs())
	defer unlock()

	current, err := s.store.Read(p)
	if err != nil {
		return nil, err
	}
	if !checksum.Matches(ifMatch, current) {
		return nil, &apperr.PathError{Path: p.Rel(), Err: apperr.ErrConflict}
	}
	updated, err := patch.Apply(string(current), parsed)
	if err != nil {
		return nil, err
	}
	if err := s.store.Replace(p, []byte(updated)); err != nil {
		return nil, err
	}
	return s.fileOf(p, []byte(updated))
}

// Trash moves a file under the trash directory.
func (s *Service) Trash(_ context.Context, rel string) (*Trashed, error) {
	p, err := s.writable(rel)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.lock(p.Abs())
	defer unlock()

	dst, err := s.store.Trash(p)
	if err != nil {
		return nil, err
	}
	return &Trashed{Path: p.Rel(), TrashPath: dst.Rel()}, nil
}

// Delete permanently removes a file.
func (s *Service) Delete(_ context.Context, rel string) error {
	p, err := s.writable(rel)
	if err != nil {
		return err
	}
	unlock := s.locks.lock(p.Abs())
	defer unlock()

	return s.store.Delete(p)
}

// Daily returns today's note, creating it from the template if needed.
func (s *Service) Daily(ctx context.Context) (*DailyNote, error) {
	n, err := s.daily.GetOrCreate(ctx, s.now())
	if err != nil {
		return nil, err
	}
	return &DailyNote{
		Path:     n.Path.Rel(),
		Content:  n.Content,
		Checksum: checksum.Sum([]byte(n.Content)),
		Created:  n.Created,
	}, nil
}

// SearchContent returns matching lines across text files.
func (s *Service) SearchContent(ctx context.Context, query string, opts search.Options) ([]models.ContentHit, error) {
	return s.search.Content(ctx, query, opts)
}

// SearchFilename returns files whose name matches query.
func (s *Service) SearchFilename(ctx context.Context, query string, opts search.Options) ([]models.FileHit, error) {
	return s.search.Filename(ctx, query, opts)
}

// writable resolves rel and refuses the reserved trash tree.
func (s *Service) writable(rel string) (vaultpath.Path, error) {
	p, err := s.root.Resolve(rel)
	if err != nil {
		return vaultpath.Path{}, err
	}
	if p.InTrash() {
		return vaultpath.Path{}, &apperr.PathError{Path: p.Rel(), Err: apperr.ErrReservedPath}
	}
	return p, nil
}

// fileOf builds a File from data without re-reading the file.
func (s *Service) fileOf(p vaultpath.Path, data []byte) (*File, error) {
	f := &File{
		Path:      p.Rel(),
		Content:   string(data),
		Checksum:  checksum.Sum(data),
		Size:      int64(len(data)),
		UpdatedAt: s.now(),
	}
	if e, err := s.store.Stat(p); err == nil {
		f.UpdatedAt = e.ModTime
	}
	// Broken frontmatter only costs the metadata, never the content.
	if parser.IsMarkdown(p.Rel()) {
		if res, err := parser.Parse(data); err == nil {
			f.Title = res.Title
			f.Tags = res.Tags
			f.Links = res.Links
			f.Frontmatter = res.Frontmatter
		}
	}
	return f, nil
}

func targetName(p *patch.Patch) string {
	if p.NewName != "" {
		return p.NewName
	}
	return p.OldName
}
