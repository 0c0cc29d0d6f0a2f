// Package testutil provides shared test helpers for setting up vaults.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/notevault/internal/storage"
	"github.com/starford/notevault/internal/vaultpath"
)

// TestVault creates a temporary vault directory with a storage provider.
func TestVault(t *testing.T) (vaultpath.Root, *storage.FS) {
	t.Helper()
	root, err := vaultpath.NewRoot(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return root, storage.NewFS(root)
}

// WriteFiles seeds the vault with files keyed by slash-separated relative path.
func WriteFiles(t *testing.T, root vaultpath.Root, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		abs := filepath.Join(root.Dir(), filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

// ReadFile returns the content of a vault file, failing the test if absent.
func ReadFile(t *testing.T, root vaultpath.Root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root.Dir(), filepath.FromSlash(rel)))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

// Exists reports whether rel exists in the vault.
func Exists(t *testing.T, root vaultpath.Root, rel string) bool {
	t.Helper()
	_, err := os.Lstat(filepath.Join(root.Dir(), filepath.FromSlash(rel)))
	return err == nil
}
