// Package watch reruns an action whenever a file is written.
package watch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sambeau/tether/pkg/tether/logging"
)

// Watcher monitors one file and calls onChange after writes settle
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration
	onChange func(path string)
	logger   logging.Logger

	running sync.Mutex // Held while onChange runs

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool   // Set once Run returns; pending timers do nothing
	changes uint64 // Number of times onChange has been called
}

// New creates a watcher for path. The file's directory is watched rather
// than the file itself so editors that replace the file on save are seen.
func New(path string, debounce time.Duration, logger logging.Logger, onChange func(path string)) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NullLogger()
	}
	return &Watcher{
		watcher:  fsWatcher,
		path:     absPath,
		debounce: debounce,
		onChange: onChange,
		logger:   logger,
	}, nil
}

// Run watches until ctx is cancelled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	w.logger.Infof("watching %s", w.path)
	defer w.stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debugf("%s: %s", event.Op, event.Name)
			w.schedule()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Errorf("watcher error: %v", err)
		}
	}
}

// relevant reports whether event is a write or create of the watched file.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	name, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return name == w.path
}

// schedule restarts the debounce timer; onChange runs once the file has
// been quiet for the debounce period.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

// fire runs onChange while holding running, so stop can wait for a call
// already in progress.
func (w *Watcher) fire() {
	w.running.Lock()
	defer w.running.Unlock()

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.changes++
	w.mu.Unlock()
	w.onChange(w.path)
}

// Changes returns how many times onChange has run.
func (w *Watcher) Changes() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.changes
}

// stop cancels any pending change and waits for a running onChange to
// return. No onChange call starts after stop.
func (w *Watcher) stop() {
	w.mu.Lock()
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	// Wait out a fire that got past the stopped check.
	w.running.Lock()
	w.running.Unlock()
}

// Close stops the watcher
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
