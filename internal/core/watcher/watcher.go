// # internal/core/watcher/watcher.go
package watcher

import (
	"context"
	"crypto/sha256"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"csguard/internal/shared/observability"
	"csguard/internal/shared/util"

	"github.com/fsnotify/fsnotify"
)

type digest [sha256.Size]byte

// Watcher reports batches of changed source files. Events are debounced and
// a write that leaves a file's content unchanged is not reported.
type Watcher struct {
	fsWatcher  *fsnotify.Watcher
	filter     *Filter
	onChange   func([]string)
	callbackMu sync.Mutex

	roots []string

	pendingMu sync.Mutex
	debounce  time.Duration
	pending   map[string]struct{}
	timer     *time.Timer

	hashMu sync.Mutex
	hashes map[string]digest

	closeOnce sync.Once
}

func NewWatcher(debounce time.Duration, filter *Filter, onChange func([]string)) (*Watcher, error) {
	if onChange == nil || filter == nil {
		return nil, os.ErrInvalid
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsWatcher: fsw,
		filter:    filter,
		debounce:  debounce,
		onChange:  onChange,
		pending:   make(map[string]struct{}),
		hashes:    make(map[string]digest),
	}, nil
}

func (w *Watcher) SetDebounce(debounce time.Duration) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	w.debounce = debounce
}

// Prime records the current content of paths so that the first event on an
// unchanged file is ignored.
func (w *Watcher) Prime(paths []string) {
	for _, p := range paths {
		if sum, ok := hashFile(p); ok {
			w.hashMu.Lock()
			w.hashes[p] = sum
			w.hashMu.Unlock()
		}
	}
}

// Watch adds every non-excluded directory below paths and processes events
// until ctx is done or the watcher is closed.
func (w *Watcher) Watch(ctx context.Context, paths []string) error {
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			abs = filepath.Dir(abs)
		}
		w.roots = append(w.roots, abs)
		if err := w.watchRecursive(abs, abs); err != nil {
			return err
		}
	}
	// Longest root first so rootOf finds the closest one.
	sort.Slice(w.roots, func(i, j int) bool { return len(w.roots[i]) > len(w.roots[j]) })

	go w.run(ctx)
	return nil
}

func (w *Watcher) watchRecursive(root, dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.filter.SkipDir(root, path) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			_ = w.Close()
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			observability.WatcherEventsTotal.Inc()
			w.handle(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	root := w.rootOf(event.Name)
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if w.filter.SkipDir(root, event.Name) {
				return
			}
			if err := w.watchRecursive(root, event.Name); err != nil {
				slog.Warn("failed to watch new directory", "path", event.Name, "error", err)
				return
			}
			w.enqueueExistingFiles(root, event.Name)
			return
		}
	}
	if !w.filter.Accept(root, event.Name) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
		w.scheduleChange(event.Name)
	}
}

func (w *Watcher) rootOf(path string) string {
	for _, r := range w.roots {
		if util.HasPathPrefix(path, r) {
			return r
		}
	}
	return filepath.Dir(path)
}

func (w *Watcher) scheduleChange(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flushChanges)
}

func (w *Watcher) flushChanges() {
	w.pendingMu.Lock()
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.pending = make(map[string]struct{})
	w.pendingMu.Unlock()

	paths = w.changedContent(paths)
	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)

	w.callbackMu.Lock()
	defer w.callbackMu.Unlock()
	w.onChange(paths)
}

// changedContent drops paths whose content hash is unchanged. Deleted
// files are always kept.
func (w *Watcher) changedContent(paths []string) []string {
	w.hashMu.Lock()
	defer w.hashMu.Unlock()

	out := paths[:0]
	for _, p := range paths {
		sum, ok := hashFile(p)
		if !ok {
			delete(w.hashes, p)
			out = append(out, p)
			continue
		}
		if prev, seen := w.hashes[p]; seen && prev == sum {
			continue
		}
		w.hashes[p] = sum
		out = append(out, p)
	}
	return out
}

func hashFile(path string) (digest, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return digest{}, false
	}
	return sha256.Sum256(data), true
}

func (w *Watcher) enqueueExistingFiles(root, dir string) {
	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if w.filter.Accept(root, path) {
			w.scheduleChange(path)
		}
		return nil
	})
}

func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.pendingMu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.pendingMu.Unlock()
		err = w.fsWatcher.Close()
	})
	return err
}
