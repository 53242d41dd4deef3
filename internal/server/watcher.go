package server

import (
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors filesystem paths for changes and invokes a callback with
// the batch of changed events once they have settled. It uses debouncing to
// coalesce rapid successive changes into a single callback invocation, so a
// caller can classify every path in the batch (e.g. into the incremental
// build controller's ChangeEvents) instead of blindly rebuilding on any
// filesystem activity.
type Watcher struct {
	paths    []string
	onChange func(events []fsnotify.Event)
	debounce time.Duration
	watcher  *fsnotify.Watcher
	done     chan struct{}
	once     sync.Once
}

// NewWatcher creates a new Watcher that monitors the given paths for changes.
// The onChange callback is invoked with the debounced batch of fsnotify
// events once no further changes have arrived for the specified duration.
func NewWatcher(paths []string, debounce time.Duration, onChange func(events []fsnotify.Event)) *Watcher {
	return &Watcher{
		paths:    paths,
		onChange: onChange,
		debounce: debounce,
		done:     make(chan struct{}),
	}
}

// Start begins watching the configured paths for changes. It blocks until
// Stop is called or a fatal error occurs.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = fsw

	// Add paths to the watcher. For directories, recursively add
	// subdirectories as fsnotify does not watch recursively by default.
	for _, p := range w.paths {
		info, err := os.Stat(p)
		if err != nil {
			// Path may not exist (e.g. no assets/ directory); skip.
			continue
		}
		if info.IsDir() {
			if err := w.addRecursive(p); err != nil {
				log.Printf("warning: failed to watch %s: %v", p, err)
			}
		} else {
			if err := fsw.Add(p); err != nil {
				log.Printf("warning: failed to watch %s: %v", p, err)
			}
		}
	}

	// Event processing loop with debouncing. Events accumulate in batch
	// until debounce elapses with no further activity, then the whole
	// batch is handed to onChange at once.
	var timer *time.Timer
	var mu sync.Mutex
	var batch []fsnotify.Event

	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			// Only trigger on write, create, remove, and rename events.
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			// If a new directory is created, watch it recursively.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.addRecursive(event.Name)
				}
			}

			mu.Lock()
			batch = append(batch, event)
			mu.Unlock()

			// Reset debounce timer.
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				mu.Lock()
				pending := batch
				batch = nil
				mu.Unlock()
				if len(pending) > 0 {
					w.onChange(pending)
				}
			})

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Printf("watcher error: %v", err)

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return fsw.Close()
		}
	}
}

// Stop signals the watcher to stop monitoring files.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.done)
	})
}

// addRecursive adds a directory and all its subdirectories to the watcher.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := w.watcher.Add(path); err != nil {
				return err
			}
		}
		return nil
	})
}
