package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/notevault/internal/apperr"
	"github.com/starford/notevault/internal/models"
	"github.com/starford/notevault/internal/vaultpath"
)

// TempPrefix marks files staged by Create and Replace.
const TempPrefix = ".notevault-tmp-"

// FS implements Provider backed by the local file system.
type FS struct {
	root vaultpath.Root

	// beforeRename runs after the temp file is synced and before it is
	// published. Tests use it to simulate a crash mid-replace.
	beforeRename func(tmp string) error
}

// NewFS creates a new FS provider for the given vault root.
func NewFS(root vaultpath.Root) *FS {
	return &FS{root: root}
}

// Root returns the vault root the provider serves.
func (f *FS) Root() vaultpath.Root { return f.root }

// Read returns the raw bytes of a vault file.
func (f *FS) Read(p vaultpath.Path) ([]byte, error) {
	if err := f.requireFile(p); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p.Abs())
	if err != nil {
		return nil, f.wrap("read", p, err)
	}
	return data, nil
}

// Stat returns size and modification time of a vault file.
func (f *FS) Stat(p vaultpath.Path) (models.Entry, error) {
	info, err := os.Stat(p.Abs())
	if err != nil {
		return models.Entry{}, f.wrap("stat", p, err)
	}
	if !info.Mode().IsRegular() {
		return models.Entry{}, &apperr.PathError{Path: p.Rel(), Err: apperr.ErrNotAFile}
	}
	return entryOf(p, info), nil
}

// Create publishes content at p only if nothing exists there. The content is
// staged in a temp file and hard-linked into place, so readers never observe
// a partially written file and a concurrent creator cannot be overwritten.
func (f *FS) Create(p vaultpath.Path, content []byte) error {
	if _, err := os.Lstat(p.Abs()); err == nil {
		return &apperr.PathError{Path: p.Rel(), Err: apperr.ErrAlreadyExists}
	}
	dir := filepath.Dir(p.Abs())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmpName, err := writeTemp(dir, content, 0o644)
	if err != nil {
		return err
	}
	defer os.Remove(tmpName)

	err = os.Link(tmpName, p.Abs())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrExist):
		return &apperr.PathError{Path: p.Rel(), Err: apperr.ErrAlreadyExists}
	default:
		// Some file systems refuse hard links; fall back to an exclusive create.
		return f.createExclusive(p, content)
	}
}

func (f *FS) createExclusive(p vaultpath.Path, content []byte) error {
	out, err := os.OpenFile(p.Abs(), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return &apperr.PathError{Path: p.Rel(), Err: apperr.ErrAlreadyExists}
		}
		return fmt.Errorf("storage: create %s: %w", p.Rel(), err)
	}
	if _, err := out.Write(content); err != nil {
		_ = out.Close()
		_ = os.Remove(p.Abs())
		return fmt.Errorf("storage: write %s: %w", p.Rel(), err)
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return fmt.Errorf("storage: fsync: %w", err)
	}
	return out.Close()
}

// Replace atomically overwrites an existing file: tmp file → fsync → rename.
// The original file mode is kept.
func (f *FS) Replace(p vaultpath.Path, content []byte) error {
	info, err := os.Stat(p.Abs())
	if err != nil {
		return f.wrap("replace", p, err)
	}
	if !info.Mode().IsRegular() {
		return &apperr.PathError{Path: p.Rel(), Err: apperr.ErrNotAFile}
	}

	tmpName, err := writeTemp(filepath.Dir(p.Abs()), content, info.Mode().Perm())
	if err != nil {
		return err
	}

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpName)
		}
	}()

	if f.beforeRename != nil {
		if err := f.beforeRename(tmpName); err != nil {
			return fmt.Errorf("storage: replace %s: %w", p.Rel(), err)
		}
	}
	if err := os.Rename(tmpName, p.Abs()); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes a file from the vault.
func (f *FS) Delete(p vaultpath.Path) error {
	if err := f.requireFile(p); err != nil {
		return err
	}
	if err := os.Remove(p.Abs()); err != nil {
		return f.wrap("delete", p, err)
	}
	return nil
}

// Trash moves a file to .trash/<rel>, keeping its directory structure.
func (f *FS) Trash(p vaultpath.Path) (vaultpath.Path, error) {
	if err := f.requireFile(p); err != nil {
		return vaultpath.Path{}, err
	}
	dst, err := f.root.TrashPath(p)
	if err != nil {
		return vaultpath.Path{}, err
	}
	if _, err := os.Lstat(dst.Abs()); err == nil {
		return vaultpath.Path{}, &apperr.PathError{Path: dst.Rel(), Err: apperr.ErrAlreadyExists}
	}
	if err := os.MkdirAll(filepath.Dir(dst.Abs()), 0o755); err != nil {
		return vaultpath.Path{}, fmt.Errorf("storage: mkdir for trash: %w", err)
	}
	if err := os.Rename(p.Abs(), dst.Abs()); err != nil {
		return vaultpath.Path{}, f.wrap("trash", p, err)
	}
	return dst, nil
}

// Walk visits every regular file below the vault root in lexical order.
func (f *FS) Walk(fn func(models.Entry) error) error {
	base := f.root.Dir()
	err := filepath.WalkDir(base, func(abs string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if abs == base {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(base, abs)
		if err != nil {
			return err
		}
		p, err := f.root.Resolve(filepath.ToSlash(rel))
		if err != nil {
			// Symlinked entries pointing outside the vault are not listed.
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		return fn(entryOf(p, info))
	})
	if err != nil {
		return fmt.Errorf("storage: walk: %w", err)
	}
	return nil
}

func (f *FS) requireFile(p vaultpath.Path) error {
	info, err := os.Stat(p.Abs())
	if err != nil {
		return f.wrap("stat", p, err)
	}
	if !info.Mode().IsRegular() {
		return &apperr.PathError{Path: p.Rel(), Err: apperr.ErrNotAFile}
	}
	return nil
}

// wrap maps OS errors to the vault taxonomy. Only the relative path is
// reported for typed errors.
func (f *FS) wrap(op string, p vaultpath.Path, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &apperr.PathError{Path: p.Rel(), Err: apperr.ErrNotFound}
	case errors.Is(err, fs.ErrExist):
		return &apperr.PathError{Path: p.Rel(), Err: apperr.ErrAlreadyExists}
	}
	return fmt.Errorf("storage: %s %s: %w", op, p.Rel(), err)
}

func writeTemp(dir string, content []byte, perm fs.FileMode) (string, error) {
	tmp, err := os.CreateTemp(dir, TempPrefix+"*")
	if err != nil {
		return "", fmt.Errorf("storage: create temp: %w", err)
	}
	name := tmp.Name()

	fail := func(format string, err error) (string, error) {
		_ = tmp.Close()
		_ = os.Remove(name)
		return "", fmt.Errorf(format, err)
	}
	if _, err := tmp.Write(content); err != nil {
		return fail("storage: write temp: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fail("storage: chmod temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("storage: close temp: %w", err)
	}
	return name, nil
}

func entryOf(p vaultpath.Path, info fs.FileInfo) models.Entry {
	return models.Entry{
		Path:    p,
		Rel:     p.Rel(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
}
