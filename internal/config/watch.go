package config

import (
	"path/filepath"
	"sync"
	"time"

	"codenerd-cognitive/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the config file on disk and reloads it on write events,
// handing the freshly loaded configuration to onReload. Reload failures
// are logged and leave the previously loaded configuration in place.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	path        string
	debounceDur time.Duration
	lastEvent   time.Time
	stopCh      chan struct{}
	running     bool
}

// NewWatcher creates a config file watcher. It does not start watching
// until Start is called.
func NewWatcher(path string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:     w,
		path:        path,
		debounceDur: 300 * time.Millisecond,
		stopCh:      make(chan struct{}),
	}, nil
}

// Start begins watching the config file's parent directory (fsnotify
// cannot watch a single not-yet-existing file reliably) and invokes
// onReload with the newly loaded configuration after each debounced
// write event that touches the watched path.
func (w *Watcher) Start(onReload func(*Config)) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return err
	}

	go func() {
		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(w.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if !w.debounce() {
					continue
				}
				cfg, err := Load(w.path)
				if err != nil {
					logging.ConfigLog("config reload failed: %v (keeping previous configuration)", err)
					continue
				}
				if err := cfg.Validate(); err != nil {
					logging.ConfigLog("reloaded config failed validation: %v (keeping previous configuration)", err)
					continue
				}
				logging.ConfigLog("config reloaded from %s", w.path)
				onReload(cfg)
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				logging.ConfigLog("config watcher error: %v", err)
			case <-w.stopCh:
				return
			}
		}
	}()
	return nil
}

func (w *Watcher) debounce() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := time.Now()
	if now.Sub(w.lastEvent) < w.debounceDur {
		w.lastEvent = now
		return false
	}
	w.lastEvent = now
	return true
}

// Stop halts the watcher goroutine and releases the underlying fsnotify
// watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.running = false
	close(w.stopCh)
	w.watcher.Close()
}
