// Package watcher provides settings-file watching for live reload.
//
// The watcher monitors the settings file and invokes its handlers when
// the file changes, debouncing bursts (editors typically produce
// several filesystem events per save). The directory rather than the
// file is watched, because many editors replace files by rename.
package watcher

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the default change-coalescing window.
const DefaultDebounce = 200 * time.Millisecond

// Watcher errors.
var (
	ErrAlreadyRunning = errors.New("watcher already running")
	ErrNotRunning     = errors.New("watcher not running")
)

// Handler is called after a debounced change to the watched file.
type Handler func()

// Watcher monitors one settings file for changes.
type Watcher struct {
	path     string
	debounce time.Duration

	mu       sync.Mutex
	handlers []Handler
	fsw      *fsnotify.Watcher
	timer    *time.Timer
	done     chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the change-coalescing window.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// New creates a watcher for the given file path.
func New(path string, opts ...Option) *Watcher {
	w := &Watcher{
		path:     filepath.Clean(path),
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// OnChange adds a change handler. Handlers run on the watcher
// goroutine and must not block.
func (w *Watcher) OnChange(h Handler) {
	if h == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, h)
}

// Start begins watching. The watched directory must exist.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fsw != nil {
		return ErrAlreadyRunning
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(w.path), err)
	}

	w.fsw = fsw
	w.done = make(chan struct{})
	go w.loop(fsw, w.done)
	return nil
}

// Stop stops watching. Pending debounced changes are discarded.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fsw == nil {
		return ErrNotRunning
	}
	close(w.done)
	err := w.fsw.Close()
	w.fsw = nil
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	return err
}

// IsRunning reports whether the watcher is active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fsw != nil
}

func (w *Watcher) loop(fsw *fsnotify.Watcher, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleNotify(done)
		case _, ok := <-fsw.Errors:
			if !ok {
				return
			}
			// Watch errors are transient; the next event re-arms us.
		}
	}
}

// scheduleNotify resets the debounce timer so a burst of events yields
// a single handler invocation.
func (w *Watcher) scheduleNotify(done chan struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-done:
			return
		default:
		}
		w.notify()
	})
}

func (w *Watcher) notify() {
	w.mu.Lock()
	handlers := make([]Handler, len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.Unlock()

	for _, h := range handlers {
		h()
	}
}
