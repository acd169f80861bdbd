package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"videoshelf/internal/logging"
)

// Watcher reloads the configuration file when it changes on disk and
// broadcasts the new configuration to subscribers. Subscribers receive
// complete Config values over a channel; there is no shared mutable
// settings object.
type Watcher struct {
	path string

	mu   sync.Mutex
	subs []chan Config

	fw   *fsnotify.Watcher
	done chan struct{}
}

// NewWatcher starts watching the directory containing the configuration
// file. Watching the directory rather than the file survives the
// write-rename dance most editors do.
func NewWatcher(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch config dir: %w", err)
	}

	w := &Watcher{
		path: abs,
		fw:   fw,
		done: make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Subscribe returns a channel that receives each successfully reloaded
// configuration. The channel is buffered; a slow subscriber misses
// intermediate updates rather than blocking the watcher.
func (w *Watcher) Subscribe() <-chan Config {
	ch := make(chan Config, 1)
	w.mu.Lock()
	w.subs = append(w.subs, ch)
	w.mu.Unlock()
	return ch
}

// Close stops the watcher and closes all subscriber channels.
func (w *Watcher) Close() error {
	close(w.done)
	err := w.fw.Close()

	w.mu.Lock()
	for _, ch := range w.subs {
		close(ch)
	}
	w.subs = nil
	w.mu.Unlock()
	return err
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.reload()

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			logging.Error("config watcher error: %v", err)

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		logging.Warn("config change ignored, reload failed: %v", err)
		return
	}

	logging.Info("configuration reloaded from %s", w.path)

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, ch := range w.subs {
		select {
		case ch <- cfg:
		default:
			// Replace the stale pending update with the newest one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- cfg:
			default:
			}
		}
	}
}
