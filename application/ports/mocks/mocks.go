package mocks

import (
	"context"
	"time"

	"sdx-topology/application/ports"
	"sdx-topology/domain/events"
	"sdx-topology/domain/topology"

	"github.com/stretchr/testify/mock"
)

// MockVersionStore is a mock implementation of ports.VersionStore
type MockVersionStore struct {
	mock.Mock
}

func (m *MockVersionStore) Read(ctx context.Context) (topology.VersionRecord, error) {
	args := m.Called(ctx)
	return args.Get(0).(topology.VersionRecord), args.Error(1)
}

func (m *MockVersionStore) Initialize(ctx context.Context, identity topology.Identity, timestamp string) (topology.VersionRecord, error) {
	args := m.Called(ctx, identity, timestamp)
	return args.Get(0).(topology.VersionRecord), args.Error(1)
}

func (m *MockVersionStore) Commit(ctx context.Context, base, next topology.VersionRecord) error {
	args := m.Called(ctx, base, next)
	return args.Error(0)
}

// MockEventLog is a mock implementation of ports.EventLog
type MockEventLog struct {
	mock.Mock
}

func (m *MockEventLog) Append(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockEventLog) List(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockTopologySource is a mock implementation of ports.TopologySource
type MockTopologySource struct {
	mock.Mock
}

func (m *MockTopologySource) Fetch(ctx context.Context) (topology.ForeignTopology, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(topology.ForeignTopology), args.Error(1)
}

// MockSchemaValidator is a mock implementation of ports.SchemaValidator
type MockSchemaValidator struct {
	mock.Mock
}

func (m *MockSchemaValidator) Validate(ctx context.Context, doc topology.Document) ([]ports.ValidationError, error) {
	args := m.Called(ctx, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ports.ValidationError), args.Error(1)
}

// MockDownstreamPublisher is a mock implementation of ports.DownstreamPublisher
type MockDownstreamPublisher struct {
	mock.Mock
}

func (m *MockDownstreamPublisher) Publish(ctx context.Context, doc topology.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

// MockLocker is a mock implementation of ports.Locker
type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) AcquireLock(ctx context.Context, resourceID string, ttl time.Duration) (ports.Lock, error) {
	args := m.Called(ctx, resourceID, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(ports.Lock), args.Error(1)
}

// MockLock is a mock implementation of ports.Lock
type MockLock struct {
	mock.Mock
}

func (m *MockLock) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockEventPublisher is a mock implementation of ports.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
