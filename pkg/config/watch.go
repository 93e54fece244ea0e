package config

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the config file whenever it changes on disk and passes each
// successfully parsed Config to onChange. Parse and validation failures are
// logged and the previous config stays in effect. Watch blocks until ctx is
// cancelled.
//
// The parent directory is watched rather than the file itself so that
// editors and config management tools that replace the file atomically
// (write to temp, rename over) are still observed.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(abs)
			if err != nil {
				log.Printf("config reload failed, keeping previous: %v", err)
				continue
			}
			log.Printf("config reloaded from %s", abs)
			onChange(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("config watch error: %v", err)
		}
	}
}
