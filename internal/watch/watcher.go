// Package watch monitors a directory for new and modified files and
// reports them for submission, the same fsnotify-driven loop the teacher
// uses to keep its code index current, retargeted here at one content
// root instead of a source tree.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event is a single debounced filesystem change ready for submission.
type Event struct {
	Path string
}

// Watcher recursively watches a root directory and delivers a debounced
// stream of create/write events on Events. Renames and removes are not
// submitted; this engine has no notion of updating or retracting a
// submission in place, only Delete by file identifier.
type Watcher struct {
	fsw    *fsnotify.Watcher
	debounce time.Duration

	Events chan Event
	Errors chan error

	mu      sync.Mutex
	pending map[string]*time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Watcher with the given debounce window, default 300ms to
// absorb editors that write a file in several rapid operations.
func New(debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		fsw:      fsw,
		debounce: debounce,
		Events:   make(chan Event, 64),
		Errors:   make(chan error, 16),
		pending:  make(map[string]*time.Timer),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start walks root adding a watch on every directory, then begins
// processing filesystem events in a background goroutine.
func (w *Watcher) Start(root string) error {
	if err := w.addWatches(root); err != nil {
		return err
	}
	w.wg.Add(1)
	go w.processEvents()
	return nil
}

// Stop cancels event processing, closes the underlying fsnotify watcher,
// and waits for the processing goroutine to exit.
func (w *Watcher) Stop() error {
	w.cancel()
	err := w.fsw.Close()
	w.wg.Wait()

	w.mu.Lock()
	for _, t := range w.pending {
		t.Stop()
	}
	w.mu.Unlock()

	close(w.Events)
	close(w.Errors)
	return err
}

func (w *Watcher) addWatches(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.Errors <- err:
			default:
			}
		}
	}
}

// handleEvent debounces Create/Write events per path, coalescing the
// editor-save-as-several-syscalls pattern into one submission.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	info, err := os.Stat(event.Name)
	if err != nil || info.IsDir() {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[event.Name]; ok {
		t.Stop()
	}
	path := event.Name
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		select {
		case w.Events <- Event{Path: path}:
		case <-w.ctx.Done():
		}
	})
}
