package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the config file when it changes on disk.
type Watcher struct {
	path     string
	onChange func(Config)
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
}

// NewWatcher watches the directory holding path, since editors often replace files instead of
// writing them in place.
func NewWatcher(path string, onChange func(Config), logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: watch: %w", err)
	}

	if err := fsWatcher.Add(filepath.Dir(path)); err != nil {
		_ = fsWatcher.Close()
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}

	return &Watcher{
		path:     filepath.Clean(path),
		onChange: onChange,
		logger:   logger,
		watcher:  fsWatcher,
	}, nil
}

// Run delivers reloaded configs until ctx is cancelled. A file that fails to parse is logged and
// the previous config stays in effect.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("config reload failed", "path", w.path, "error", err)
		return
	}

	cfg = ApplyEnv(cfg)
	w.logger.Debug("config reloaded", "path", w.path)
	w.onChange(cfg)
}
