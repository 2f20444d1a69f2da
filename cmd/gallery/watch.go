package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// watchDir sends the path of every file written or created in dir until ctx
// is done. The returned function stops the watcher.
func watchDir(ctx context.Context, dir string, logger *slog.Logger) (<-chan string, func() error, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("gallery: watch: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, nil, fmt.Errorf("gallery: watch %s: %w", dir, err)
	}

	out := make(chan string)
	go func() {
		defer close(out)
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				select {
				case out <- ev.Name:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("watch error", "dir", dir, "error", err)
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, w.Close, nil
}
