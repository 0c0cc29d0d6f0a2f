// Package models defines the domain types shared across the vault packages.
package models

import (
	"time"

	"github.com/starford/notevault/internal/vaultpath"
)

// Entry is a regular file found in the vault.
type Entry struct {
	Path    vaultpath.Path `json:"-"`
	Rel     string         `json:"path"`
	Size    int64          `json:"size"`
	ModTime time.Time      `json:"updated_at"`
}

// ContentHit is a single line matching a content search.
type ContentHit struct {
	Path    string `json:"path"`
	Line    int    `json:"line"`
	Snippet string `json:"snippet"`
}

// FileHit is a file whose name matches a filename search.
type FileHit struct {
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}
