// Package activity turns writes to the gateway's usage store into activity signals.
package activity

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/j-veylop/gateway-usage-tui/internal/logger"
)

// DefaultDebounce collapses a burst of writes (a sqlite commit touches the database,
// its WAL and its shared-memory file) into one signal.
const DefaultDebounce = 250 * time.Millisecond

// Event is one activity signal. Err is set when the watcher itself failed.
type Event struct {
	At  time.Time
	Err error
}

// Watcher watches a file and its sqlite side files for writes.
type Watcher struct {
	mu            sync.Mutex
	path          string
	debounce      time.Duration
	watcher       *fsnotify.Watcher
	eventChan     chan Event
	stopChan      chan struct{}
	stopOnce      sync.Once
	debounceTimer *time.Timer
}

// New starts watching path. The directory must exist; the file need not.
func New(path string, debounce time.Duration) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("activity watch path is empty")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Watch the directory so the file can be created or replaced.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		if closeErr := fw.Close(); closeErr != nil {
			logger.Error("failed to close watcher", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	w := &Watcher{
		path:      path,
		debounce:  debounce,
		watcher:   fw,
		eventChan: make(chan Event, 16),
		stopChan:  make(chan struct{}),
	}
	go w.watchLoop()
	return w, nil
}

// Events returns the channel of activity signals.
func (w *Watcher) Events() <-chan Event {
	return w.eventChan
}

// Path returns the watched file.
func (w *Watcher) Path() string {
	return w.path
}

// matches reports whether name is the watched file or one of its sqlite side files.
func (w *Watcher) matches(name string) bool {
	base := filepath.Base(w.path)
	got := filepath.Base(name)
	if got == base {
		return true
	}
	return strings.HasPrefix(got, base+"-") && (strings.HasSuffix(got, "-wal") || strings.HasSuffix(got, "-journal"))
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.matches(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.schedule()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("activity watcher error", "path", w.path, "error", err)
			w.sendEvent(Event{At: time.Now(), Err: err})

		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounce, func() {
		w.sendEvent(Event{At: time.Now()})
	})
}

// sendEvent never blocks; when the channel is full the oldest signal is dropped.
func (w *Watcher) sendEvent(event Event) {
	select {
	case <-w.stopChan:
		return
	default:
	}
	select {
	case w.eventChan <- event:
	default:
		select {
		case <-w.eventChan:
		default:
		}
		select {
		case w.eventChan <- event:
		default:
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopChan)
		w.mu.Lock()
		if w.debounceTimer != nil {
			w.debounceTimer.Stop()
		}
		w.mu.Unlock()
		err = w.watcher.Close()
	})
	return err
}
