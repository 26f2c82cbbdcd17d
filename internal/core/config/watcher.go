package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 100 * time.Millisecond

// Watcher reloads j2k.toml when its content changes and hands the valid
// result to a callback. Invalid edits are logged and skipped; saves that leave
// the bytes unchanged are ignored.
type Watcher struct {
	path     string
	callback func(*Config)
	stop     chan struct{}
	once     sync.Once
	wg       sync.WaitGroup

	last  []byte
	paths Paths
}

func NewWatcher(path string, callback func(*Config)) *Watcher {
	return &Watcher{
		path:     filepath.Clean(path),
		callback: callback,
		stop:     make(chan struct{}),
	}
}

// Start snapshots the current file and watches its directory, so editors that
// save by rename are seen too.
func (w *Watcher) Start(ctx context.Context) error {
	if cfg, data, err := w.read(); err == nil {
		w.last, w.paths = data, cfg.Paths
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		fw.Close()
		return err
	}

	w.wg.Add(1)
	go w.loop(ctx, fw)
	return nil
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher) {
	defer w.wg.Done()
	defer fw.Close()
	slog.Debug("watching config", "path", w.path)

	timer := time.NewTimer(reloadDebounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			timer.Reset(reloadDebounce)
		case <-timer.C:
			w.reload()
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "error", err)
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends the watch loop; it is safe to call more than once.
func (w *Watcher) Stop() {
	w.once.Do(func() { close(w.stop) })
	w.wg.Wait()
}

func (w *Watcher) read() (*Config, []byte, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := Load(w.path)
	return cfg, data, err
}

func (w *Watcher) reload() {
	cfg, data, err := w.read()
	if err != nil {
		slog.Warn("config reload failed", "path", w.path, "error", err)
		return
	}
	if bytes.Equal(data, w.last) {
		return
	}
	w.last = data
	if cfg.Paths != w.paths {
		slog.Warn("config [paths] changes apply after restart", "path", w.path)
	}
	slog.Info("config reloaded", "path", w.path)
	if w.callback != nil {
		w.callback(cfg)
	}
}
