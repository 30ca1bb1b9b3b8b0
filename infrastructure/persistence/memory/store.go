// Package memory provides in-process stores for tests and single-shot tools.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"sdx-topology/domain/topology"
	apperrors "sdx-topology/pkg/errors"
)

// VersionStore keeps the encoded record in memory. Records are stored encoded so that
// callers never share slices with the store.
type VersionStore struct {
	mu   sync.RWMutex
	data []byte
}

// NewVersionStore creates an uninitialized store
func NewVersionStore() *VersionStore {
	return &VersionStore{}
}

func (s *VersionStore) Read(ctx context.Context) (topology.VersionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.decode()
}

func (s *VersionStore) Initialize(ctx context.Context, identity topology.Identity, timestamp string) (topology.VersionRecord, error) {
	if err := identity.Validate(); err != nil {
		return topology.VersionRecord{}, apperrors.NewValidationError(err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data != nil {
		return s.decode()
	}
	record := topology.NewVersionRecord(identity, timestamp)
	data, err := json.Marshal(record)
	if err != nil {
		return topology.VersionRecord{}, apperrors.NewInternalError("encode version record").WithCause(err)
	}
	s.data = data
	return record, nil
}

func (s *VersionStore) Commit(ctx context.Context, base, next topology.VersionRecord) error {
	if err := next.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	data, err := json.Marshal(next)
	if err != nil {
		return apperrors.NewInternalError("encode version record").WithCause(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	stored, err := s.decode()
	if err != nil {
		return err
	}
	if !stored.SameRevision(base) {
		return apperrors.NewVersionConflictError(base.Version, stored.Version)
	}
	s.data = data
	return nil
}

// Raw returns the stored bytes
func (s *VersionStore) Raw() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]byte(nil), s.data...)
}

func (s *VersionStore) decode() (topology.VersionRecord, error) {
	if s.data == nil {
		return topology.VersionRecord{}, apperrors.NewStoreNotInitializedError()
	}
	var record topology.VersionRecord
	if err := json.Unmarshal(s.data, &record); err != nil {
		return topology.VersionRecord{}, apperrors.NewInternalError("decode version record").WithCause(err)
	}
	return record, nil
}

// EventLog keeps event names in memory, trimming the oldest beyond maxEntries
type EventLog struct {
	mu         sync.RWMutex
	names      []string
	maxEntries int
}

// NewEventLog creates an empty log. maxEntries <= 0 disables trimming.
func NewEventLog(maxEntries int) *EventLog {
	return &EventLog{names: []string{}, maxEntries: maxEntries}
}

func (l *EventLog) Append(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.names = append(l.names, name)
	if l.maxEntries > 0 && len(l.names) > l.maxEntries {
		l.names = append([]string{}, l.names[len(l.names)-l.maxEntries:]...)
	}
	return nil
}

func (l *EventLog) List(ctx context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string{}, l.names...), nil
}
