package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"veil/internal/logging"
)

// reloadDebounce coalesces editor write bursts into one reload.
const reloadDebounce = 250 * time.Millisecond

// Watch monitors the config file and invokes onReload with each validated
// new configuration until the context is canceled. Invalid or unreadable
// configs are logged and skipped; the previous config stays in effect.
//
// The watch is placed on the directory, not the file: editors replace
// config files by rename, which drops a file-level watch.
func Watch(ctx context.Context, path string, log *logging.Logger, onReload func(*Config)) error {
	if path == "" {
		path = ConfigPath()
	}
	if log == nil {
		log = logging.Default()
	}
	log = log.WithComponent("config")

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := fsWatcher.Add(dir); err != nil {
		fsWatcher.Close()
		return err
	}

	go func() {
		defer fsWatcher.Close()

		var pending <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-fsWatcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(path) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				pending = time.After(reloadDebounce)

			case err, ok := <-fsWatcher.Errors:
				if !ok {
					return
				}
				log.Warn("config watch error", "error", err)

			case <-pending:
				pending = nil
				cfg, err := Load(path)
				if err != nil {
					log.Warn("config reload skipped", "error", err)
					continue
				}
				log.Info("config reloaded", "path", path)
				onReload(cfg)
			}
		}
	}()

	return nil
}
