package storage

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/starford/notevault/internal/apperr"
	"github.com/starford/notevault/internal/models"
	"github.com/starford/notevault/internal/vaultpath"
)

func tempVault(t *testing.T) *FS {
	t.Helper()
	root, err := vaultpath.NewRoot(t.TempDir())
	if err != nil {
		t.Fatalf("NewRoot: %v", err)
	}
	return NewFS(root)
}

func resolve(t *testing.T, s *FS, rel string) vaultpath.Path {
	t.Helper()
	p, err := s.Root().Resolve(rel)
	if err != nil {
		t.Fatalf("Resolve(%q): %v", rel, err)
	}
	return p
}

func tempFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, TempPrefix+"*"))
	if err != nil {
		t.Fatal(err)
	}
	return matches
}

func TestCreateAndRead(t *testing.T) {
	s := tempVault(t)
	p := resolve(t, s, "note.md")
	content := []byte("# Hello\nWorld\n")
	if err := s.Create(p, content); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := s.Read(p)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
	if left := tempFiles(t, s.Root().Dir()); len(left) != 0 {
		t.Errorf("leftover temp files: %v", left)
	}
}

func TestCreateCreatesSubdirs(t *testing.T) {
	s := tempVault(t)
	p := resolve(t, s, "a/b/c.md")
	if err := s.Create(p, []byte("deep")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := s.Read(p)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestCreateEmptyContent(t *testing.T) {
	s := tempVault(t)
	p := resolve(t, s, "empty.md")
	if err := s.Create(p, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := s.Read(p)
	if err != nil || len(got) != 0 {
		t.Fatalf("Read = %q, %v", got, err)
	}
}

func TestCreateTwiceFails(t *testing.T) {
	s := tempVault(t)
	p := resolve(t, s, "dup.md")
	if err := s.Create(p, []byte("first")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := s.Create(p, []byte("second"))
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Fatalf("second Create err = %v, want ErrAlreadyExists", err)
	}
	got, _ := s.Read(p)
	if string(got) != "first" {
		t.Errorf("content overwritten: %q", got)
	}
}

func TestCreateOverDirectoryFails(t *testing.T) {
	s := tempVault(t)
	if err := os.Mkdir(filepath.Join(s.Root().Dir(), "folder"), 0o755); err != nil {
		t.Fatal(err)
	}
	err := s.Create(resolve(t, s, "folder"), []byte("x"))
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestReadMissingAndDirectory(t *testing.T) {
	s := tempVault(t)
	if _, err := s.Read(resolve(t, s, "nope.md")); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing: err = %v, want ErrNotFound", err)
	}
	if err := os.Mkdir(filepath.Join(s.Root().Dir(), "dir"), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Read(resolve(t, s, "dir")); !errors.Is(err, apperr.ErrNotAFile) {
		t.Errorf("dir: err = %v, want ErrNotAFile", err)
	}
}

func TestReplace(t *testing.T) {
	s := tempVault(t)
	p := resolve(t, s, "atomic.md")
	if err := s.Create(p, []byte("original content")); err != nil {
		t.Fatal(err)
	}
	if err := s.Replace(p, []byte("updated content")); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	got, _ := s.Read(p)
	if string(got) != "updated content" {
		t.Errorf("expected updated content, got %q", got)
	}
	if left := tempFiles(t, s.Root().Dir()); len(left) != 0 {
		t.Errorf("leftover temp files: %v", left)
	}
}

func TestReplaceMissing(t *testing.T) {
	s := tempVault(t)
	err := s.Replace(resolve(t, s, "ghost.md"), []byte("x"))
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, statErr := os.Stat(filepath.Join(s.Root().Dir(), "ghost.md")); !os.IsNotExist(statErr) {
		t.Error("replace must not create the file")
	}
}

func TestReplacePreservesMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	s := tempVault(t)
	p := resolve(t, s, "private.md")
	if err := s.Create(p, []byte("a")); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(p.Abs(), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := s.Replace(p, []byte("b")); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(p.Abs())
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestReplaceCrashLeavesOriginal(t *testing.T) {
	s := tempVault(t)
	p := resolve(t, s, "keep.md")
	if err := s.Create(p, []byte("original")); err != nil {
		t.Fatal(err)
	}

	crash := errors.New("simulated crash")
	var staged string
	s.beforeRename = func(tmp string) error {
		staged = tmp
		return crash
	}
	err := s.Replace(p, []byte("half written"))
	if !errors.Is(err, crash) {
		t.Fatalf("err = %v, want simulated crash", err)
	}

	got, _ := s.Read(p)
	if string(got) != "original" {
		t.Errorf("original damaged: %q", got)
	}
	if staged == "" {
		t.Fatal("hook did not run")
	}
	if _, err := os.Stat(staged); !os.IsNotExist(err) {
		t.Errorf("temp file %s not removed", staged)
	}
}

func TestDelete(t *testing.T) {
	s := tempVault(t)
	p := resolve(t, s, "del.md")
	_ = s.Create(p, []byte("bye"))
	if err := s.Delete(p); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read(p); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("read after delete: err = %v", err)
	}
	if err := s.Delete(p); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete: err = %v, want ErrNotFound", err)
	}
}

func TestTrash(t *testing.T) {
	s := tempVault(t)
	p := resolve(t, s, "sub/old.md")
	_ = s.Create(p, []byte("data"))

	dst, err := s.Trash(p)
	if err != nil {
		t.Fatalf("Trash: %v", err)
	}
	if dst.Rel() != ".trash/sub/old.md" {
		t.Errorf("trash path = %q", dst.Rel())
	}
	got, err := os.ReadFile(filepath.Join(s.Root().Dir(), ".trash", "sub", "old.md"))
	if err != nil || string(got) != "data" {
		t.Errorf("trashed content = %q, %v", got, err)
	}
	if _, err := s.Read(p); !errors.Is(err, apperr.ErrNotFound) {
		t.Error("old path should not exist")
	}
}

func TestTrashCollision(t *testing.T) {
	s := tempVault(t)
	p := resolve(t, s, "twice.md")
	_ = s.Create(p, []byte("one"))
	if _, err := s.Trash(p); err != nil {
		t.Fatal(err)
	}
	_ = s.Create(p, []byte("two"))
	if _, err := s.Trash(p); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
	got, _ := s.Read(p)
	if string(got) != "two" {
		t.Errorf("source must stay in place, got %q", got)
	}
}

func TestTrashMissing(t *testing.T) {
	s := tempVault(t)
	if _, err := s.Trash(resolve(t, s, "none.md")); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestWalkSkipsTrashAndHidden(t *testing.T) {
	s := tempVault(t)
	for _, rel := range []string{"a.md", "sub/b.md", "readme.txt", "gone.md"} {
		if err := s.Create(resolve(t, s, rel), []byte(rel)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.Trash(resolve(t, s, "gone.md")); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(s.Root().Dir(), ".obsidian"), 0o755); err != nil {
		t.Fatal(err)
	}
	_ = os.WriteFile(filepath.Join(s.Root().Dir(), ".obsidian", "app.json"), []byte("{}"), 0o644)
	_ = os.WriteFile(filepath.Join(s.Root().Dir(), TempPrefix+"123"), []byte("x"), 0o644)

	var seen []string
	err := s.Walk(func(e models.Entry) error {
		seen = append(seen, e.Rel)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	want := []string{"a.md", "readme.txt", "sub/b.md"}
	if len(seen) != len(want) {
		t.Fatalf("seen = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("seen[%d] = %q, want %q", i, seen[i], want[i])
		}
	}
}

func TestWalkStopsOnError(t *testing.T) {
	s := tempVault(t)
	_ = s.Create(resolve(t, s, "a.md"), []byte("a"))
	_ = s.Create(resolve(t, s, "b.md"), []byte("b"))

	stop := errors.New("stop")
	calls := 0
	err := s.Walk(func(models.Entry) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Errorf("err = %v, calls = %d", err, calls)
	}
}
