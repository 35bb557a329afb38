package config

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a model config file whenever it changes on disk and
// invokes onChange with the freshly decoded Config. Grounded on the
// teacher's internal/templates.Registry file-watch loop (fsnotify.Watcher,
// debounced via time.AfterFunc, a background goroutine draining
// Events/Errors until Close), trimmed to a single file instead of a
// directory tree since a model config document has one path.
type Watcher struct {
	path      string
	onChange  func(*Config)
	debounce  time.Duration
	watcher   *fsnotify.Watcher
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewWatcher starts watching path, calling onChange (on a background
// goroutine) after each debounced burst of filesystem events. Intended use
// is a Repl wrapper looping in a long-running tree process, per SPEC_FULL's
// "hot-reload while a Repl wrapper is looping" note.
func NewWatcher(path string, onChange func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{path: path, onChange: onChange, debounce: 250 * time.Millisecond, watcher: fw, cancel: cancel}
	w.wg.Add(1)
	go w.loop(ctx)
	return w, nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	var mu sync.Mutex
	var timer *time.Timer
	scheduleReload := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(w.debounce, func() {
			cfg, err := Load(w.path)
			if err != nil {
				slog.Warn("config watch: reload failed", "path", w.path, "error", err)
				return
			}
			w.onChange(cfg)
		})
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				scheduleReload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("config watch error", "path", w.path, "error", err)
		}
	}
}

// Close stops the watch goroutine and releases the underlying fsnotify
// watcher.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}
