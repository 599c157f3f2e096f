package exif

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch observes an offload folder and invokes handler for every image
// that is created or finishes writing. Blocks until the context is
// cancelled.
func Watch(ctx context.Context, dir, imageType string, logger *slog.Logger, handler func(path string)) error {
	if imageType == "" {
		imageType = ".jpg"
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	logger.Info("watching for new images", "dir", dir, "image_type", imageType)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), imageType) {
				continue
			}
			logger.Debug("image event", "path", event.Name, "op", event.Op.String())
			handler(event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)
		}
	}
}
