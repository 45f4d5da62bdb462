package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Watcher reloads the config file whenever it changes on disk.
type Watcher struct {
	v        *viper.Viper
	path     string
	watcher  *fsnotify.Watcher
	onChange func(*Config)
	logger   *zap.Logger
}

// NewWatcher watches the directory holding v's config file. Editors usually
// replace files by rename, so watching the file itself would miss updates.
func NewWatcher(v *viper.Viper, onChange func(*Config), logger *zap.Logger) (*Watcher, error) {
	path := v.ConfigFileUsed()
	if path == "" {
		return nil, fmt.Errorf("no config file loaded")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating config watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", path, err)
	}

	return &Watcher{
		v:        v,
		path:     filepath.Clean(path),
		watcher:  watcher,
		onChange: onChange,
		logger:   logger,
	}, nil
}

// Run processes filesystem events until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	if err := w.v.ReadInConfig(); err != nil {
		w.logger.Warn("reloading config", zap.String("path", w.path), zap.Error(err))
		return
	}
	cfg, err := decode(w.v)
	if err != nil {
		w.logger.Warn("invalid config after reload", zap.String("path", w.path), zap.Error(err))
		return
	}

	w.logger.Info("config reloaded", zap.String("path", w.path))
	w.onChange(cfg)
}
