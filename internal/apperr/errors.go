// Package apperr defines the error taxonomy shared by the vault core and its facades.
package apperr

import "errors"

var (
	ErrPathEscape        = errors.New("path escapes vault")
	ErrInvalidPath       = errors.New("invalid path")
	ErrReservedPath      = errors.New("path is reserved")
	ErrNotFound          = errors.New("not found")
	ErrNotAFile          = errors.New("not a file")
	ErrAlreadyExists     = errors.New("already exists")
	ErrConflict          = errors.New("conflict")
	ErrEmptyPatch        = errors.New("empty patch")
	ErrInvalidPatch      = errors.New("invalid patch")
	ErrPatchDoesNotApply = errors.New("patch does not apply")
	ErrTemplate          = errors.New("template error")
	ErrInvalidArgument   = errors.New("invalid argument")
)

// PathError reports a rejected caller path. Path is always the caller's
// vault-relative input; absolute locations are never recorded here.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	if e.Path == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Path
}

func (e *PathError) Unwrap() error { return e.Err }

var taxonomy = []error{
	ErrPathEscape, ErrInvalidPath, ErrReservedPath, ErrNotFound, ErrNotAFile,
	ErrAlreadyExists, ErrConflict, ErrEmptyPatch, ErrInvalidPatch,
	ErrPatchDoesNotApply, ErrTemplate, ErrInvalidArgument,
}

// Known reports whether err belongs to the taxonomy. Messages of known errors
// only carry vault-relative paths and are safe to show callers.
func Known(err error) bool {
	for _, e := range taxonomy {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
