package catalog

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// reloadOps are the events on the seed file that trigger a reload. An atomic
// save (temp file renamed over the seed) arrives as Create or Rename on the
// seed's name in its directory.
const reloadOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename

// Watch monitors the seed file at path and reloads the catalog each time it
// is written or replaced. It runs until ctx is cancelled.
//
// The containing directory is watched rather than the file, so the watch
// survives the file being replaced. If a reload fails (e.g., invalid YAML),
// the error is logged and the previous catalog stays in place.
func (c *Catalog) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}

	slog.Info("catalog: watching seed file", "path", target)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || event.Op&reloadOps == 0 {
				continue
			}

			if err := c.LoadSeedFile(target); err != nil {
				slog.Error("catalog: reload failed, keeping previous catalog",
					"path", target, "op", event.Op.String(), "err", err)
				continue
			}
			slog.Info("catalog: reloaded", "path", target, "products", c.Len())

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("catalog: watcher error", "err", err)
		}
	}
}
