// Package watch turns filesystem notifications under the vault root into
// debounced per-file change events.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/notevault/internal/models"
	"github.com/starford/notevault/internal/storage"
	"github.com/starford/notevault/internal/vaultpath"
)

// Kind of change reported to the callback.
type Kind string

const (
	Created Kind = "created"
	Updated Kind = "updated"
	Deleted Kind = "deleted"
)

// DefaultSettle is how long a path must stay quiet before its change is
// reported.
const DefaultSettle = 150 * time.Millisecond

// Callback receives one event per changed vault-relative path.
type Callback func(kind Kind, rel string)

// Watcher reports changes to visible vault files. Hidden entries, the trash
// and in-flight temp files are ignored.
type Watcher struct {
	root   vaultpath.Root
	store  storage.Provider
	logger *slog.Logger
	settle time.Duration

	// known holds the files seen so far; it lets an atomic replace
	// (rename onto an existing name) be reported as an update.
	known   map[string]struct{}
	pending map[string]struct{}
}

// New creates a watcher over root. store seeds the set of existing files.
func New(root vaultpath.Root, store storage.Provider, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		root:    root,
		store:   store,
		logger:  logger,
		settle:  DefaultSettle,
		known:   make(map[string]struct{}),
		pending: make(map[string]struct{}),
	}
}

// SetSettle overrides the debounce window.
func (w *Watcher) SetSettle(d time.Duration) { w.settle = d }

// Run watches the vault until ctx is cancelled, calling cb for every settled
// change. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context, cb Callback) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := w.addDirs(fw, w.root.Dir()); err != nil {
		return err
	}
	if err := w.store.Walk(func(e models.Entry) error {
		w.known[e.Rel] = struct{}{}
		return nil
	}); err != nil {
		return err
	}

	w.logger.Info("watcher: started",
		slog.String("root", w.root.Dir()),
		slog.Int("files", len(w.known)))

	timer := time.NewTimer(w.settle)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher: stopped")
			return nil

		case <-timer.C:
			w.flush(cb)

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.handle(fw, ev) {
				timer.Reset(w.settle)
			}

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// handle records ev and reports whether anything became pending.
func (w *Watcher) handle(fw *fsnotify.Watcher, ev fsnotify.Event) bool {
	rel, ok := w.relOf(ev.Name)
	if !ok {
		return false
	}

	if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
		info, err := os.Lstat(ev.Name)
		if err != nil {
			// Gone again before we looked; a later Remove/Rename covers it.
			return false
		}
		if info.IsDir() {
			if ev.Op&fsnotify.Create == 0 {
				return false
			}
			if err := w.addDirs(fw, ev.Name); err != nil {
				w.logger.Warn("watcher: add new dir failed",
					slog.String("path", rel),
					slog.String("error", err.Error()))
			}
			return w.markTree(ev.Name)
		}
		if !info.Mode().IsRegular() {
			return false
		}
		w.mark(rel)
		return true
	}

	if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		changed := false
		prefix := rel + "/"
		for k := range w.known {
			if k == rel || strings.HasPrefix(k, prefix) {
				w.mark(k)
				changed = true
			}
		}
		return changed
	}
	return false
}

// mark queues rel for the next flush, which decides the kind by comparing
// the disk with the known set.
func (w *Watcher) mark(rel string) {
	w.pending[rel] = struct{}{}
}

// markTree marks every visible file below dir as touched. Files moved in
// together with a directory produce no events of their own.
func (w *Watcher) markTree(dir string) bool {
	changed := false
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if p != dir && hidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if rel, ok := w.relOf(p); ok {
			w.mark(rel)
			changed = true
		}
		return nil
	})
	return changed
}

func (w *Watcher) flush(cb Callback) {
	rels := make([]string, 0, len(w.pending))
	for rel := range w.pending {
		rels = append(rels, rel)
	}
	sort.Strings(rels)

	for _, rel := range rels {
		_, wasKnown := w.known[rel]
		info, err := os.Lstat(filepath.Join(w.root.Dir(), filepath.FromSlash(rel)))
		exists := err == nil && info.Mode().IsRegular()

		var kind Kind
		switch {
		case exists && wasKnown:
			kind = Updated
		case exists:
			kind = Created
			w.known[rel] = struct{}{}
		case wasKnown:
			kind = Deleted
			delete(w.known, rel)
		default:
			// Created and removed within one window.
			continue
		}
		w.logger.Debug("watcher: change", slog.String("path", rel), slog.String("op", string(kind)))
		if cb != nil {
			cb(kind, rel)
		}
	}
	clear(w.pending)
}

// relOf maps an absolute event path to a visible vault-relative path.
func (w *Watcher) relOf(abs string) (string, bool) {
	rel, err := filepath.Rel(w.root.Dir(), abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	for _, seg := range strings.Split(rel, "/") {
		if hidden(seg) {
			return "", false
		}
	}
	return rel, true
}

// addDirs adds root and all its visible subdirectories to the watcher.
func (w *Watcher) addDirs(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.root.Dir() && hidden(d.Name()) {
			return filepath.SkipDir
		}
		return fw.Add(p)
	})
}

// hidden covers dot-files, the trash and storage temp files.
func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
