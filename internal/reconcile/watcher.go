package reconcile

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher turns filesystem events under watched working copies into
// coalesced nudges. Many editor saves within one tick collapse into a
// single nudge; the loop recomputes from disk anyway, so individual
// events carry no information beyond "something changed."
type Watcher struct {
	watcher *fsnotify.Watcher
	nudge   chan struct{}
	done    chan struct{}
	log     *slog.Logger
	wg      sync.WaitGroup

	mu      sync.Mutex
	running bool
	watched map[string]bool
}

// NewWatcher creates a watcher. Start must be called before it emits
// nudges.
func NewWatcher(log *slog.Logger) (*Watcher, error) {
	inner, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{
		watcher: inner,
		nudge:   make(chan struct{}, 1),
		done:    make(chan struct{}),
		log:     log,
		watched: map[string]bool{},
	}, nil
}

// Start begins processing events.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.wg.Add(1)
	go w.processEvents()
}

// Watch adds a directory. Adding the same directory twice is a no-op,
// and a directory that does not exist yet is skipped silently; it gets
// picked up on a later call once a download created it.
func (w *Watcher) Watch(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watched[dir] {
		return
	}
	if err := w.watcher.Add(dir); err != nil {
		w.log.Debug("not watching directory", "dir", dir, "error", err)
		return
	}
	w.watched[dir] = true
}

// Nudges returns the coalesced change channel.
func (w *Watcher) Nudges() <-chan struct{} {
	return w.nudge
}

// Stop shuts the watcher down and waits for the event goroutine.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	w.wg.Wait()
	return nil
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			select {
			case w.nudge <- struct{}{}:
			default:
				// A nudge is already pending; this event rides along.
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("filesystem watcher error", "error", err)
		}
	}
}
