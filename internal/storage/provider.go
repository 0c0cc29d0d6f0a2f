// Package storage defines the vault file-system abstraction.
package storage

import (
	"github.com/starford/notevault/internal/models"
	"github.com/starford/notevault/internal/vaultpath"
)

// Provider is the interface for vault file operations. Every method takes a
// path already validated by vaultpath.Root.Resolve.
type Provider interface {
	// Read returns the raw bytes of the file at p.
	Read(p vaultpath.Path) ([]byte, error)
	// Create writes a new file; it fails if anything already exists at p.
	Create(p vaultpath.Path, content []byte) error
	// Replace atomically overwrites an existing file.
	Replace(p vaultpath.Path, content []byte) error
	// Delete permanently removes the file at p.
	Delete(p vaultpath.Path) error
	// Trash moves the file at p under the vault trash directory and returns
	// its new location.
	Trash(p vaultpath.Path) (vaultpath.Path, error)
	// Stat returns metadata for the file at p.
	Stat(p vaultpath.Path) (models.Entry, error)
	// Walk calls fn for every regular file in the vault, skipping the trash,
	// hidden directories and in-flight temp files.
	Walk(fn func(models.Entry) error) error
}
