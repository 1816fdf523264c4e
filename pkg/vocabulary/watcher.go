package vocabulary

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the vocabulary when its file changes. Editors often
// write via rename, so the parent directory is watched and events are
// debounced before reloading.
func (v *Vocabulary) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating vocabulary watcher: %w", err)
	}

	dir := filepath.Dir(v.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	go func() {
		defer func() {
			_ = watcher.Close()
		}()

		var pending <-chan time.Time
		target := filepath.Clean(v.path)

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				pending = time.After(250 * time.Millisecond)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				v.logger.Warn("vocabulary watcher error", "error", err)
			case <-pending:
				pending = nil
				if err := v.Load(); err != nil {
					v.logger.Error("vocabulary reload failed, keeping previous snapshot", "error", err)
				} else {
					v.logger.Info("vocabulary reloaded", "path", v.path)
				}
			}
		}
	}()

	return nil
}
