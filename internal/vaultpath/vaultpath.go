// Package vaultpath is the single trust boundary between caller-supplied
// paths and the filesystem: it maps vault-relative strings to canonical
// locations strictly inside the vault root.
package vaultpath

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/starford/notevault/internal/apperr"
)

// TrashDir is the reserved vault subdirectory that receives trashed files.
const TrashDir = ".trash"

// maxLinkHops bounds manual resolution of dangling symlink chains.
const maxLinkHops = 40

var driveRe = regexp.MustCompile(`^[A-Za-z]:`)

// Root is a canonical, existing vault directory.
type Root struct {
	dir string
}

// NewRoot makes dir absolute and symlink-free and checks that it is a directory.
func NewRoot(dir string) (Root, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Root{}, fmt.Errorf("vaultpath: resolve root: %w", err)
	}
	canon, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return Root{}, fmt.Errorf("vaultpath: canonicalize root: %w", err)
	}
	info, err := os.Stat(canon)
	if err != nil {
		return Root{}, fmt.Errorf("vaultpath: stat root: %w", err)
	}
	if !info.IsDir() {
		return Root{}, fmt.Errorf("vaultpath: root is not a directory: %s", canon)
	}
	return Root{dir: canon}, nil
}

// Dir returns the canonical absolute vault directory.
func (r Root) Dir() string { return r.dir }

// Path is a location validated by Root.Resolve. The zero value is invalid and
// cannot be produced outside this package.
type Path struct {
	rel string
	abs string
}

// Rel returns the slash-separated path relative to the vault root.
func (p Path) Rel() string { return p.rel }

// Abs returns the canonical absolute filesystem path.
func (p Path) Abs() string { return p.abs }

// IsZero reports whether p was not produced by Resolve.
func (p Path) IsZero() bool { return p.abs == "" }

// InTrash reports whether p lives under the reserved trash directory.
func (p Path) InTrash() bool {
	return p.rel == TrashDir || strings.HasPrefix(p.rel, TrashDir+"/")
}

func (p Path) String() string { return p.rel }

// Resolve validates raw as a vault-relative path and returns its canonical
// location. It never creates, removes or modifies anything; existence is
// not required.
func (r Root) Resolve(raw string) (Path, error) {
	if r.dir == "" {
		return Path{}, errors.New("vaultpath: root not initialised")
	}
	cleaned, err := clean(raw)
	if err != nil {
		return Path{}, err
	}

	canon, err := canonicalize(filepath.Join(r.dir, cleaned))
	if err != nil {
		// The underlying error may name absolute locations; report only the input.
		return Path{}, &apperr.PathError{Path: raw, Err: apperr.ErrInvalidPath}
	}

	rel, err := filepath.Rel(r.dir, canon)
	if err != nil || escapes(rel) {
		return Path{}, &apperr.PathError{Path: raw, Err: apperr.ErrPathEscape}
	}
	if rel == "." {
		return Path{}, &apperr.PathError{Path: raw, Err: apperr.ErrInvalidPath}
	}
	return Path{rel: filepath.ToSlash(rel), abs: canon}, nil
}

// TrashPath returns the trash location mirroring p.
func (r Root) TrashPath(p Path) (Path, error) {
	if p.IsZero() {
		return Path{}, &apperr.PathError{Err: apperr.ErrInvalidPath}
	}
	return r.Resolve(path.Join(TrashDir, p.rel))
}

// clean performs the lexical checks and returns an OS-specific relative path.
func clean(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", &apperr.PathError{Err: apperr.ErrInvalidPath}
	}
	if strings.ContainsRune(raw, 0) {
		return "", &apperr.PathError{Path: raw, Err: apperr.ErrInvalidPath}
	}
	if strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, `\`) ||
		filepath.IsAbs(raw) || driveRe.MatchString(raw) || filepath.VolumeName(raw) != "" {
		return "", &apperr.PathError{Path: raw, Err: apperr.ErrPathEscape}
	}
	cleaned := filepath.Clean(filepath.FromSlash(raw))
	if cleaned == "." {
		return "", &apperr.PathError{Path: raw, Err: apperr.ErrInvalidPath}
	}
	if escapes(cleaned) {
		return "", &apperr.PathError{Path: raw, Err: apperr.ErrPathEscape}
	}
	return cleaned, nil
}

func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// canonicalize resolves symlinks in the deepest existing ancestor of p and
// re-appends the missing tail. Dangling links are followed by hand so that a
// link pointing outside the vault cannot be used to create files there.
func canonicalize(p string) (string, error) {
	var tail []string
	cur := p
	for hops := 0; ; {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			parts := make([]string, 0, len(tail)+1)
			parts = append(parts, resolved)
			for i := len(tail) - 1; i >= 0; i-- {
				parts = append(parts, tail[i])
			}
			return filepath.Join(parts...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}

		if info, lerr := os.Lstat(cur); lerr == nil && info.Mode()&fs.ModeSymlink != 0 {
			if hops++; hops > maxLinkHops {
				return "", fmt.Errorf("too many links: %w", err)
			}
			target, rerr := os.Readlink(cur)
			if rerr != nil {
				return "", rerr
			}
			if !filepath.IsAbs(target) {
				// The link's own directory may sit behind a symlink too.
				parent, perr := canonicalize(filepath.Dir(cur))
				if perr != nil {
					return "", perr
				}
				target = filepath.Join(parent, target)
			}
			cur = filepath.Clean(target)
			continue
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return "", err
		}
		tail = append(tail, filepath.Base(cur))
		cur = parent
	}
}
