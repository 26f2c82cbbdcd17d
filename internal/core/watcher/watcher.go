// Package watcher reports batches of changed Java sources under a set of
// roots.
package watcher

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"j2k/internal/shared/observability"
)

// Watcher debounces file events and calls onChange with the sorted set of
// paths touched since the last call. Calls never overlap.
//
// Exclude globs use the same rules as group discovery: directory globs match
// a directory's base name, file globs match the base name or the path
// relative to the watched root.
type Watcher struct {
	fsw      *fsnotify.Watcher
	onChange func([]string)
	filter   filter

	mu       sync.Mutex
	roots    []string
	debounce time.Duration
	pending  map[string]struct{}
	timer    *time.Timer
	closed   bool

	callbackMu sync.Mutex
}

type filter struct {
	dirs  []glob.Glob
	files []glob.Glob
	exts  map[string]bool
}

func NewWatcher(debounce time.Duration, excludeDirs, excludeFiles []string, onChange func([]string)) (*Watcher, error) {
	if onChange == nil {
		return nil, os.ErrInvalid
	}
	dirs, err := compile(excludeDirs)
	if err != nil {
		return nil, err
	}
	files, err := compile(excludeFiles)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsw:      fsw,
		onChange: onChange,
		filter:   filter{dirs: dirs, files: files, exts: map[string]bool{".java": true}},
		debounce: debounce,
		pending:  make(map[string]struct{}),
	}, nil
}

func compile(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// SetExtensions replaces the source extensions that trigger a change. It
// must be called before Watch.
func (w *Watcher) SetExtensions(extensions []string) {
	exts := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		if ext = strings.ToLower(strings.TrimSpace(ext)); ext != "" {
			exts[ext] = true
		}
	}
	w.filter.exts = exts
}

// SetDebounce changes the quiet period applied to the next batch.
func (w *Watcher) SetDebounce(debounce time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounce = debounce
}

// Watch adds every non-excluded directory under roots and starts delivering
// batches.
func (w *Watcher) Watch(roots []string) error {
	for _, root := range roots {
		root = filepath.Clean(root)
		if err := w.addTree(root, root); err != nil {
			return err
		}
		w.mu.Lock()
		w.roots = append(w.roots, root)
		w.mu.Unlock()
	}
	go w.run()
	return nil
}

func (w *Watcher) addTree(root, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.filter.skipDir(path) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			observability.WatcherEventsTotal.Inc()
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.addCreatedDir(event.Name)
			return
		}
	}
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return
	}
	if w.skipFile(event.Name) {
		return
	}
	w.schedule(event.Name)
}

// addCreatedDir starts watching a directory created after Watch and reports
// the sources that were moved or written into it before the watch was added.
func (w *Watcher) addCreatedDir(dir string) {
	if w.filter.skipDir(dir) {
		return
	}
	root := w.rootOf(dir)
	if err := w.addTree(root, dir); err != nil {
		slog.Warn("failed to watch new directory", "path", dir, "error", err)
		return
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && w.filter.skipDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !w.skipFile(path) {
			w.schedule(path)
		}
		return nil
	})
}

func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.pending[path] = struct{}{}
	if w.timer == nil {
		w.timer = time.AfterFunc(w.debounce, w.flush)
		return
	}
	w.timer.Reset(w.debounce)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.pending = make(map[string]struct{})
	closed := w.closed
	w.mu.Unlock()

	if closed || len(paths) == 0 {
		return
	}
	sort.Strings(paths)
	w.callbackMu.Lock()
	defer w.callbackMu.Unlock()
	w.onChange(paths)
}

// rootOf returns the watched root containing path, or path's directory when
// it lies outside every root.
func (w *Watcher) rootOf(path string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	best := ""
	for _, root := range w.roots {
		if rel, err := filepath.Rel(root, path); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			if len(root) > len(best) {
				best = root
			}
		}
	}
	if best == "" {
		return filepath.Dir(path)
	}
	return best
}

func (w *Watcher) skipFile(path string) bool {
	rel, err := filepath.Rel(w.rootOf(path), path)
	if err != nil {
		rel = path
	}
	return w.filter.skipFile(path, filepath.ToSlash(rel))
}

func (f filter) skipDir(path string) bool {
	base := filepath.Base(path)
	for _, g := range f.dirs {
		if g.Match(base) {
			return true
		}
	}
	return false
}

func (f filter) skipFile(path, rel string) bool {
	base := filepath.Base(path)
	if len(f.exts) > 0 && !f.exts[strings.ToLower(filepath.Ext(base))] {
		return true
	}
	for _, g := range f.files {
		if g.Match(base) || g.Match(rel) {
			return true
		}
	}
	return false
}

// Close stops event delivery; a batch that has not fired yet is dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.fsw.Close()
}
