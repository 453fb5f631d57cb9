package sync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rjeczalik/notify"
)

const eventBufferSize = 64

// FilterCallback returns true if events for the path should be dropped.
type FilterCallback func(path string) bool

// Watcher turns bursty filesystem events into a single coalesced "changed"
// signal. Editors fire many write events per save; the debounce window folds
// them into one kick, and the cap-1 signal channel folds kicks that arrive
// while a cycle is already running into a single pending rerun.
type Watcher struct {
	watchDir  string
	rawEvents chan notify.EventInfo
	signal    chan struct{}
	debounce  time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	filter   FilterCallback
	filterMu sync.RWMutex

	done chan struct{}
	wg   sync.WaitGroup
}

func NewWatcher(watchDir string, debounce time.Duration) *Watcher {
	return &Watcher{
		watchDir: watchDir,
		signal:   make(chan struct{}, 1),
		debounce: debounce,
		done:     make(chan struct{}),
	}
}

// FilterPaths sets a callback to drop raw events before debouncing.
func (w *Watcher) FilterPaths(callback FilterCallback) {
	w.filterMu.Lock()
	defer w.filterMu.Unlock()
	w.filter = callback
}

func (w *Watcher) Start(ctx context.Context) error {
	slog.Info("file watcher start", "dir", w.watchDir)

	w.rawEvents = make(chan notify.EventInfo, eventBufferSize)

	recursivePath := w.watchDir + "/..."
	if err := notify.Watch(recursivePath, w.rawEvents, notify.Write, notify.Create, notify.Remove, notify.Rename); err != nil {
		return err
	}

	w.wg.Add(1)
	go w.collectEvents(ctx)

	return nil
}

func (w *Watcher) Stop() {
	slog.Info("file watcher stopping")

	close(w.done)
	if w.rawEvents != nil {
		notify.Stop(w.rawEvents)
	}
	w.wg.Wait()

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	slog.Info("file watcher stopped")
}

// Changed delivers one signal per coalesced burst of events.
func (w *Watcher) Changed() <-chan struct{} {
	return w.signal
}

func (w *Watcher) collectEvents(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.rawEvents:
			if !ok {
				return
			}

			w.filterMu.RLock()
			filter := w.filter
			w.filterMu.RUnlock()
			if filter != nil && filter(event.Path()) {
				continue
			}

			slog.Debug("file watcher", "event", event.Event(), "path", event.Path())
			w.kickAfterDebounce()
		}
	}
}

// kickAfterDebounce (re)arms the debounce timer. Each new event during the
// window pushes the signal further out, so a burst yields exactly one kick.
func (w *Watcher) kickAfterDebounce() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case w.signal <- struct{}{}:
		default:
			// a signal is already pending
		}
	})
}
