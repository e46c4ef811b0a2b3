package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

var debounceDelay = time.Second

type Watcher struct {
	cfgs chan *Config
	err  error
}

func (w *Watcher) Configs() <-chan *Config {
	return w.cfgs
}

// Err is valid once Configs is closed.
func (w *Watcher) Err() error {
	return w.err
}

// Watch delivers the config at path every time the file settles after a
// change. The directory is watched so that editors replacing the file are
// noticed.
func Watch(ctx context.Context, path string) *Watcher {
	if path == "" {
		path = DefaultPath
	}
	w := &Watcher{cfgs: make(chan *Config)}

	go func() {
		defer close(w.cfgs)

		watcher, err := createWatcher(path)
		if err != nil {
			w.err = err
			return
		}
		defer watcher.Close()

		name := filepath.Clean(path)
		var debounce <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				w.err = ctx.Err()
				return

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("watcher error", "error", err)

			case event, ok := <-watcher.Events:
				if !ok {
					slog.Debug("watcher events closed")
					return
				}
				if filepath.Clean(event.Name) != name {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				slog.Trace("watcher event", "event", event)
				debounce = time.After(debounceDelay)

			case <-debounce:
				debounce = nil
				cfg, err := ReadConfig(path)
				if err != nil {
					slog.Warn("failed to read config", "error", err)
					continue
				}
				select {
				case w.cfgs <- cfg:
				case <-ctx.Done():
					w.err = ctx.Err()
					return
				}
			}
		}
	}()

	return w
}

func createWatcher(path string) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to add path: %w", err)
	}
	return watcher, nil
}
