package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"sdx-topology/domain/events"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const debounceDelay = 200 * time.Millisecond

// EventSetsWatcher reloads the event sets file when it changes and swaps the new
// classifier in. A file that fails to load leaves the previous classifier in place.
type EventSetsWatcher struct {
	path       string
	classifier *events.SwappableClassifier
	logger     *zap.Logger
	watcher    *fsnotify.Watcher
	stopCh     chan struct{}
	done       chan struct{}
	stopOnce   sync.Once

	mu       sync.Mutex
	onReload []func(events.EventSets)
}

// NewEventSetsWatcher starts watching path. The directory is watched rather than the
// file so that editors replacing the file by rename are noticed.
func NewEventSetsWatcher(path string, classifier *events.SwappableClassifier, logger *zap.Logger) (*EventSetsWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	path = filepath.Clean(path)
	if err := fsWatcher.Add(filepath.Dir(path)); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}

	w := &EventSetsWatcher{
		path:       path,
		classifier: classifier,
		logger:     logger,
		watcher:    fsWatcher,
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	go w.watchLoop()

	logger.Info("Watching event sets file", zap.String("path", path))
	return w, nil
}

// OnReload registers a callback invoked after each successful reload
func (w *EventSetsWatcher) OnReload(callback func(events.EventSets)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = append(w.onReload, callback)
}

// Stop stops the watcher and waits for its goroutine
func (w *EventSetsWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
	<-w.done
}

func (w *EventSetsWatcher) watchLoop() {
	defer close(w.done)
	defer w.watcher.Close()

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceDelay, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))

		case <-w.stopCh:
			w.logger.Info("Stopping event sets watcher")
			return
		}
	}
}

func (w *EventSetsWatcher) reload() {
	next, err := LoadClassifier(w.path)
	if err != nil {
		w.logger.Error("Rejected event sets reload, keeping previous sets",
			zap.String("path", w.path),
			zap.Error(err),
		)
		return
	}

	w.classifier.Swap(next)
	sets := next.Sets()
	w.logger.Info("Event sets reloaded",
		zap.Int("administrative", len(sets.Administrative)),
		zap.Int("operational", len(sets.Operational)),
	)

	w.mu.Lock()
	callbacks := append([]func(events.EventSets){}, w.onReload...)
	w.mu.Unlock()
	for _, callback := range callbacks {
		callback(sets)
	}
}
