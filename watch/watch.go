// Package watch re-runs a project whenever its program or corpus files
// change.
package watch

import (
	"context"
	"os"
	"strings"

	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Exts are the file extensions whose changes trigger a re-run.
var Exts = []string{".mixup", ".txt", ".yaml"}

// Watch blocks watching dirs and calls run after every relevant write or
// create event, until ctx is done. Run failures are logged, not fatal:
// the next change gets another chance.
func Watch(ctx context.Context, dirs []string, log *slog.Logger, run func() error) error {
	if log == nil {
		log = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, dir := range dirs {
		if _, err := os.Stat(dir); err == nil {
			if err := watcher.Add(dir); err != nil {
				return err
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			log.Info("file changed", "path", event.Name)
			if err := run(); err != nil {
				log.Error("run failed", "error", err)
			} else {
				log.Info("run complete")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("watcher error", "error", err)
		}
	}
}

func relevant(event fsnotify.Event) bool {
	if event.Op&fsnotify.Write != fsnotify.Write && event.Op&fsnotify.Create != fsnotify.Create {
		return false
	}
	for _, ext := range Exts {
		if strings.HasSuffix(event.Name, ext) {
			return true
		}
	}
	return false
}
