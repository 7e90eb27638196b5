package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/fsnotify/fsnotify"
)

const debounceWindow = 200 * time.Millisecond

// Watch reloads the file at path whenever it changes and hands each valid
// new configuration to onChange. Invalid reloads are logged and skipped;
// the previous configuration stays in effect. Watching stops when ctx is
// done.
func Watch(ctx context.Context, path string, logger *slog.Logger, onChange func(Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	// Watch the directory, not the file: editors replace the file on save
	// and a direct watch would be lost after the first write.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", path, err)
	}

	target, err := filepath.Abs(path)
	if err != nil {
		_ = watcher.Close()
		return err
	}

	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer watcher.Close()

		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return nil

			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				name, err := filepath.Abs(event.Name)
				if err != nil || name != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(debounceWindow)
					fire = timer.C
				} else {
					timer.Reset(debounceWindow)
				}

			case <-fire:
				timer = nil
				fire = nil
				cfg, err := Load(path)
				if err != nil {
					logger.Warn("config reload skipped", "error", err)
					continue
				}
				logger.Info("config reloaded", "path", path)
				onChange(cfg)

			case wErr, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				logger.Error("config watcher error", "error", wErr)
			}
		}
	}, lifecycle.WithErrorHandler(func(err error) {
		logger.Error("config watcher stopped", "error", err)
	}))

	return nil
}
