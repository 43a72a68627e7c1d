package config

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher hot-reloads the YAML overlay file when it changes on disk.
// Only enabled in development; production configuration is immutable
// for the life of the process.
type Watcher struct {
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
	logger    *zap.Logger
	watcher   *fsnotify.Watcher
	stopCh    chan struct{}
}

// NewWatcher creates a configuration watcher over the initial config.
// When no overlay file is configured, or outside development, the
// watcher is inert.
func NewWatcher(initial *Config, logger *zap.Logger) (*Watcher, error) {
	w := &Watcher{
		config: initial,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	if initial.Environment != "development" || initial.ConfigFile == "" {
		logger.Info("configuration hot reloading disabled",
			zap.String("environment", initial.Environment),
		)
		return w, nil
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsWatcher.Add(initial.ConfigFile); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch config file: %w", err)
	}
	w.watcher = fsWatcher

	go w.watchLoop()
	logger.Info("configuration hot reloading enabled",
		zap.String("file", initial.ConfigFile),
	)
	return w, nil
}

// Current returns the latest configuration
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// OnReload registers a callback invoked after every successful reload
func (w *Watcher) OnReload(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

// Stop shuts the watcher down
func (w *Watcher) Stop() {
	close(w.stopCh)
	if w.watcher != nil {
		w.watcher.Close()
	}
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	fresh, err := LoadConfig()
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous configuration", zap.Error(err))
		return
	}

	w.mu.Lock()
	w.config = fresh
	callbacks := append([]func(*Config){}, w.callbacks...)
	w.mu.Unlock()

	w.logger.Info("configuration reloaded", zap.String("file", fresh.ConfigFile))
	for _, fn := range callbacks {
		fn(fresh)
	}
}
