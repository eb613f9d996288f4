package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher signals when a file on disk changes, for hot-reloading the
// rules file while the server runs.
type Watcher struct {
	path string
	log  *zap.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	closed  bool
}

// NewWatcher creates a watcher for the given file.
func NewWatcher(path string, log *zap.Logger) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{path: absPath, log: log}, nil
}

// Watch starts watching and returns a channel that receives a value
// when the file changes. Rapid successive writes are coalesced. The
// channel closes when ctx is done or the watcher is closed.
func (w *Watcher) Watch(ctx context.Context) (<-chan struct{}, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, fmt.Errorf("watcher is closed")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	w.watcher = watcher

	// Watch the directory, not the file: editors that replace the file
	// by rename would otherwise drop the watch.
	dir := filepath.Dir(w.path)
	name := filepath.Base(w.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching directory %s: %w", dir, err)
	}

	ch := make(chan struct{}, 1)
	go w.watchLoop(ctx, watcher, name, ch)

	w.log.Info("watching file", zap.String("path", w.path))
	return ch, nil
}

func (w *Watcher) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, name string, ch chan<- struct{}) {
	defer close(ch)
	defer watcher.Close()

	var debounce *time.Timer
	const debounceDelay = 100 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(debounceDelay, func() {
					select {
					case ch <- struct{}{}:
						w.log.Debug("file changed", zap.String("path", w.path))
					default:
						// A change is already pending.
					}
				})
			} else if event.Op&fsnotify.Remove != 0 {
				w.log.Warn("watched file was deleted", zap.String("path", w.path))
				go w.tryRewatch(ctx, watcher, ch)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("file watcher error", zap.Error(err))
		}
	}
}

// tryRewatch polls for the file to reappear after deletion, which is
// how some tools rewrite files, and signals a change once it does.
func (w *Watcher) tryRewatch(ctx context.Context, watcher *fsnotify.Watcher, ch chan<- struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for i := 0; i < 10; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := os.Stat(w.path); err != nil {
				continue
			}
			if err := watcher.Add(filepath.Dir(w.path)); err != nil {
				continue
			}
			w.log.Info("re-established watch", zap.String("path", w.path))
			select {
			case ch <- struct{}{}:
			default:
			}
			return
		}
	}
	w.log.Warn("failed to re-establish watch", zap.String("path", w.path))
}

// Close stops watching and releases resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closed = true
	if w.watcher != nil {
		err := w.watcher.Close()
		w.watcher = nil
		return err
	}
	return nil
}
