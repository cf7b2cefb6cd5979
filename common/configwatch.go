package common

import (
	"context"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the config whenever its file changes on disk, until ctx is
// cancelled. The scheduler re-reads its interval every cycle, so an edited
// refresh cadence takes effect without a restart.
//
// The watch is on the containing directory rather than the file itself:
// editors that write-and-rename would otherwise silently detach the watch.
func (c *Config) Watch(ctx context.Context) error {
	if c.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dir := filepath.Dir(c.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	target := filepath.Clean(c.path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				if err := c.Reload(); err != nil {
					log.Printf("config: reload after change failed: %v", err)
					continue
				}
				log.Printf("config: reloaded %s", c.path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("config: watch error: %v", err)
			}
		}
	}()
	return nil
}
