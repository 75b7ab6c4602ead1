package bootstrap

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay coalesces the event bursts editors produce on save into a
// single rebuild.
const debounceDelay = 200 * time.Millisecond

// templateWatcher rebuilds the route table when the template file changes.
// It watches the directory rather than the file itself, so atomic saves
// (write to temp, rename over) are still seen.
type templateWatcher struct {
	app     *App
	watcher *fsnotify.Watcher
	stopCh  chan struct{}

	mu   sync.Mutex
	path string
	dir  string
}

func newTemplateWatcher(a *App, path string) (*templateWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("absolute path: %w", err)
	}

	w := &templateWatcher{
		app:     a,
		watcher: watcher,
		stopCh:  make(chan struct{}),
		path:    abs,
		dir:     filepath.Dir(abs),
	}

	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch directory: %w", err)
	}

	go w.watchLoop()
	return w, nil
}

// Retarget moves the watch to a new template path, after a config reload
// changed template.path.
func (w *templateWatcher) Retarget(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if abs == w.path {
		return nil
	}

	dir := filepath.Dir(abs)
	if dir != w.dir {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("watch directory: %w", err)
		}
		// Remove after Add so the old dir keeps its watch if Add fails.
		if err := w.watcher.Remove(w.dir); err != nil {
			w.app.Logger.Debug().Err(err).Str("dir", w.dir).Msg("unwatch old template directory")
		}
		w.dir = dir
	}
	w.path = abs

	w.app.Logger.Info().Str("path", abs).Msg("template watcher retargeted")
	return nil
}

// Stop stops the watcher.
func (w *templateWatcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
}

func (w *templateWatcher) matches(name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return abs == w.path
}

func (w *templateWatcher) watchLoop() {
	var debounce *time.Timer

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if !w.matches(event.Name) {
				continue
			}

			// Write, create and rename cover plain saves and atomic saves.
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			w.app.Logger.Debug().
				Str("event", event.Op.String()).
				Str("file", event.Name).
				Msg("template file changed")

			if debounce == nil {
				debounce = time.AfterFunc(debounceDelay, func() {
					w.app.rebuild(context.Background(), "template change")
				})
			} else {
				debounce.Reset(debounceDelay)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.app.Logger.Error().Err(err).Msg("template watcher error")

		case <-w.stopCh:
			if debounce != nil {
				debounce.Stop()
			}
			return
		}
	}
}
