package source

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/lucvincent/photoloop/util/log"
)

// Watcher observes local source directories and fires a debounced callback
// when their contents change, so the orchestrator can pull the next sync
// forward instead of waiting out the full interval.
type Watcher struct {
	fsw      *fsnotify.Watcher
	onChange func()

	mu       sync.Mutex
	debounce time.Duration
	timer    *time.Timer
	done     chan struct{}
}

const defaultWatchDebounce = 5 * time.Second

// WatchLocal starts watching the given directories. Directories that cannot
// be watched are skipped with a warning.
func WatchLocal(paths []string, onChange func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{fsw: fsw, onChange: onChange, debounce: defaultWatchDebounce, done: make(chan struct{})}
	for _, p := range paths {
		if err := fsw.Add(p); err != nil {
			log.Printf("Watcher: cannot watch %s: %v", p, err)
		}
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.schedule()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("Watcher: %v", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		log.Print("Watcher: local source changed, requesting sync")
		w.onChange()
	})
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.fsw.Close()
}
