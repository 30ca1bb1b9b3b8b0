// Package eventlog decouples event log writes from the publication pipeline.
package eventlog

import (
	"context"
	"errors"
	"sync"
	"time"

	"sdx-topology/application/ports"
	"sdx-topology/pkg/observability"

	"go.uber.org/zap"
)

var (
	// ErrBufferFull is returned when an append had to be dropped
	ErrBufferFull = errors.New("event log buffer is full")
	// ErrStopped is returned by Append after Stop
	ErrStopped = errors.New("event log writer is stopped")
)

type entry struct {
	name    string
	barrier chan struct{}
}

// Async writes event names to an underlying log from a background goroutine.
// Append never blocks: when the buffer is full the name is dropped.
type Async struct {
	inner        ports.EventLog
	writeTimeout time.Duration
	logger       *zap.Logger
	metrics      *observability.Collector

	entries     chan entry
	mu          sync.RWMutex
	stopped     bool
	stoppedChan chan struct{}
}

// NewAsync starts a writer in front of inner with room for bufferSize pending names
func NewAsync(inner ports.EventLog, bufferSize int, writeTimeout time.Duration, logger *zap.Logger, metrics *observability.Collector) *Async {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &Async{
		inner:        inner,
		writeTimeout: writeTimeout,
		logger:       logger,
		metrics:      metrics,
		entries:      make(chan entry, bufferSize),
		stoppedChan:  make(chan struct{}),
	}
	go a.writeLoop()
	return a
}

// Append queues name for writing
func (a *Async) Append(ctx context.Context, name string) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.stopped {
		return ErrStopped
	}

	select {
	case a.entries <- entry{name: name}:
		return nil
	default:
		a.metrics.RecordEventLogDrop()
		return ErrBufferFull
	}
}

// List returns the log once every name appended before the call has been written
func (a *Async) List(ctx context.Context) ([]string, error) {
	if err := a.Flush(ctx); err != nil {
		return nil, err
	}
	return a.inner.List(ctx)
}

// Flush waits until every name appended before the call has been written
func (a *Async) Flush(ctx context.Context) error {
	a.mu.RLock()
	if a.stopped {
		a.mu.RUnlock()
		return nil
	}
	barrier := make(chan struct{})
	select {
	case a.entries <- entry{barrier: barrier}:
		a.mu.RUnlock()
	case <-ctx.Done():
		a.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop writes the remaining buffered names and stops the writer
func (a *Async) Stop() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	close(a.entries)
	a.mu.Unlock()

	<-a.stoppedChan
}

func (a *Async) writeLoop() {
	defer close(a.stoppedChan)

	for e := range a.entries {
		if e.barrier != nil {
			close(e.barrier)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), a.writeTimeout)
		err := a.inner.Append(ctx, e.name)
		cancel()

		if err != nil {
			a.metrics.RecordEventLogAppend("failed")
			a.logger.Warn("Failed to write event log entry",
				zap.String("event", e.name),
				zap.Error(err),
			)
			continue
		}
		a.metrics.RecordEventLogAppend("written")
	}
}
