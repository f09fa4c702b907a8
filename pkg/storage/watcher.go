package storage

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"authbridge/pkg/logging"
)

// DefaultDebounceInterval is the time to wait after the last file change
// before notifying, so a dual-write of plain and secure-prefixed entries
// surfaces as a single change.
const DefaultDebounceInterval = 500 * time.Millisecond

// JarWatcher watches a file backend's directory for external mutations of a
// set of storage keys. It lets a long-running client observe a sign-in or
// sign-out performed by another process (for example the CLI) against the
// same jar.
type JarWatcher struct {
	mu sync.Mutex

	backend  *File
	keys     map[string]string // file name -> logical key
	onChange func(key string)

	fsWatcher *fsnotify.Watcher
	stopCh    chan struct{}
	running   bool

	debounceMu    sync.Mutex
	debounceTimer *time.Timer
	pendingKeys   map[string]struct{}
}

// NewJarWatcher creates a watcher for the given storage keys on a file
// backend. onChange receives the logical key that changed.
func NewJarWatcher(backend *File, keys []string, onChange func(key string)) *JarWatcher {
	byFile := make(map[string]string, len(keys))
	for _, key := range keys {
		byFile[FileName(key)] = key
	}

	return &JarWatcher{
		backend:     backend,
		keys:        byFile,
		onChange:    onChange,
		pendingKeys: make(map[string]struct{}),
	}
}

// Start begins watching. It is a no-op when already running.
func (w *JarWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(w.backend.Dir()); err != nil {
		watcher.Close()
		return err
	}

	w.fsWatcher = watcher
	w.stopCh = make(chan struct{})
	w.running = true

	// Capture channels before releasing the lock to avoid racing Stop.
	eventsCh := watcher.Events
	errorsCh := watcher.Errors
	go w.processEvents(eventsCh, errorsCh)

	logging.Debug("Storage", "Watching %s for external credential changes", w.backend.Dir())
	return nil
}

// Stop stops watching.
func (w *JarWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	w.running = false
	close(w.stopCh)
	if w.fsWatcher != nil {
		w.fsWatcher.Close()
		w.fsWatcher = nil
	}
}

// processEvents handles fsnotify events until stopped.
func (w *JarWatcher) processEvents(eventsCh <-chan fsnotify.Event, errorsCh <-chan error) {
	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-eventsCh:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-errorsCh:
			if !ok {
				return
			}
			logging.Error("Storage", err, "fsnotify error")
		}
	}
}

// handleEvent records a change to a watched key and schedules notification.
func (w *JarWatcher) handleEvent(event fsnotify.Event) {
	key, ok := w.keys[filepath.Base(event.Name)]
	if !ok {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) == 0 {
		return
	}

	logging.Debug("Storage", "Credential key changed externally: %s", key)

	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	w.pendingKeys[key] = struct{}{}
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(DefaultDebounceInterval, w.flushPending)
}

// flushPending notifies for every key touched during the debounce window.
func (w *JarWatcher) flushPending() {
	w.debounceMu.Lock()
	pending := w.pendingKeys
	w.pendingKeys = make(map[string]struct{})
	w.debounceMu.Unlock()

	w.mu.Lock()
	running := w.running
	callback := w.onChange
	w.mu.Unlock()

	if !running || callback == nil {
		return
	}
	for key := range pending {
		callback(key)
	}
}
