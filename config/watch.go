package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reloads path whenever it changes and passes the new configuration to onChange.
// Invalid files are logged and skipped. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, log *zap.Logger, onChange func(AppConfig)) error {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config")

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("could not create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	// the directory is watched because editors replace files by rename
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := ReadFile(abs)
			if err != nil {
				log.Warn("config reload failed", zap.String("file", abs), zap.Error(err))
				continue
			}
			log.Info("config reloaded", zap.String("file", abs))
			onChange(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("watcher error", zap.Error(err))
		}
	}
}
