package pipeline

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"sdx-topology/application/ports"
	"sdx-topology/application/ports/mocks"
	"sdx-topology/domain/events"
	"sdx-topology/domain/topology"
	"sdx-topology/infrastructure/persistence/memory"
	apperrors "sdx-topology/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	linkUp        = "kytos/topology.link_up"
	switchMetrics = "kytos/topology.switch_metrics"
	clockNow      = "2024-06-01T12:00:00Z"
)

var foreign = topology.ForeignTopology(`{
	"switches": {
		"00:01": {"id": "00:01", "enabled": true, "active": true,
			"metadata": {"node_name": "Ampath1"},
			"interfaces": {"00:01:1": {"id": "00:01:1", "name": "eth1", "speed": 1250000000, "enabled": true, "active": true}}},
		"00:02": {"id": "00:02", "enabled": true, "active": true,
			"metadata": {"node_name": "Sax01"},
			"interfaces": {"00:02:1": {"id": "00:02:1", "name": "eth1", "speed": 1250000000, "enabled": true, "active": true}}}
	},
	"links": {
		"l1": {"enabled": true, "active": true, "endpoint_a": {"id": "00:01:1"}, "endpoint_b": {"id": "00:02:1"}}
	}
}`)

type fixture struct {
	store     *memory.VersionStore
	log       *memory.EventLog
	source    *mocks.MockTopologySource
	validator *mocks.MockSchemaValidator
	publisher *mocks.MockDownstreamPublisher
	deps      Dependencies
	config    Config
}

func newFixture(t *testing.T, version int) *fixture {
	t.Helper()
	ctx := context.Background()

	store := memory.NewVersionStore()
	if version >= 0 {
		record, err := store.Initialize(ctx, topology.Identity{OXPName: "AmLight", OXPURL: "amlight.net", ModelVersion: "1.0"}, "2023-12-31T00:00:00Z")
		require.NoError(t, err)
		next := record
		next.Version = version
		require.NoError(t, store.Commit(ctx, record, next))
	}

	classifier, err := events.NewClassifier(events.DefaultEventSets())
	require.NoError(t, err)

	f := &fixture{
		store:     store,
		log:       memory.NewEventLog(0),
		source:    new(mocks.MockTopologySource),
		validator: new(mocks.MockSchemaValidator),
		publisher: new(mocks.MockDownstreamPublisher),
		config:    Config{QueueSize: 8, CallTimeout: time.Second},
	}
	f.deps = Dependencies{
		Classifier: classifier,
		Store:      f.store,
		EventLog:   f.log,
		Source:     f.source,
		Validator:  f.validator,
		Publisher:  f.publisher,
		Clock:      topology.FixedClock(clockNow),
		Logger:     zap.NewNop(),
	}
	return f
}

func (f *fixture) happyPath() {
	f.source.On("Fetch", mock.Anything).Return(foreign, nil)
	f.validator.On("Validate", mock.Anything, mock.AnythingOfType("topology.Document")).Return([]ports.ValidationError{}, nil)
	f.publisher.On("Publish", mock.Anything, mock.AnythingOfType("topology.Document")).Return(nil)
}

func (f *fixture) start(t *testing.T) *Pipeline {
	t.Helper()
	p, err := New(f.deps, f.config)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func (f *fixture) record(t *testing.T) topology.VersionRecord {
	t.Helper()
	record, err := f.store.Read(context.Background())
	require.NoError(t, err)
	return record
}

func (f *fixture) logged(t *testing.T) []string {
	t.Helper()
	names, err := f.log.List(context.Background())
	require.NoError(t, err)
	return names
}

func TestPipeline_IncrementPublishesNextVersion(t *testing.T) {
	f := newFixture(t, 3)
	f.happyPath()
	p := f.start(t)

	result, err := p.Handle(context.Background(), events.NewChangeEvent(linkUp))

	require.NoError(t, err)
	assert.Equal(t, StatusPublished, result.Status)
	assert.Equal(t, events.Increment, result.Action)
	require.NotNil(t, result.Document)
	assert.Equal(t, 4, result.Document.Version)
	assert.Equal(t, clockNow, result.Document.Timestamp)
	assert.Equal(t, "urn:sdx:topology:amlight.net", result.Document.ID)
	assert.Len(t, result.Document.Nodes, 2)
	assert.Len(t, result.Document.Links, 1)

	record := f.record(t)
	assert.Equal(t, 4, record.Version)
	assert.Equal(t, clockNow, record.Timestamp)
	assert.Equal(t, "AmLight", record.Name)
	assert.Len(t, record.Nodes, 2)
	assert.Equal(t, []string{linkUp}, f.logged(t))

	f.publisher.AssertNumberOfCalls(t, "Publish", 1)
}

func TestPipeline_RejectedPublishLeavesStoreUntouched(t *testing.T) {
	f := newFixture(t, 3)
	f.source.On("Fetch", mock.Anything).Return(foreign, nil)
	f.validator.On("Validate", mock.Anything, mock.Anything).Return(nil, nil)
	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(apperrors.NewPublishRejectedError("schema mismatch"))
	before := f.store.Raw()
	p := f.start(t)

	result, err := p.Handle(context.Background(), events.NewChangeEvent(linkUp))

	require.NoError(t, err)
	assert.Equal(t, StatusPublishFailed, result.Status)
	assert.Equal(t, ReasonPublishRejected, result.Reason)
	assert.Contains(t, result.Message, "schema mismatch")
	assert.Nil(t, result.Document)
	assert.Equal(t, before, f.store.Raw())
	assert.Equal(t, 3, f.record(t).Version)
}

func TestPipeline_PublishTimeout(t *testing.T) {
	f := newFixture(t, 3)
	f.config.CallTimeout = 50 * time.Millisecond
	f.source.On("Fetch", mock.Anything).Return(foreign, nil)
	f.validator.On("Validate", mock.Anything, mock.Anything).Return(nil, nil)
	f.publisher.On("Publish", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(errors.New("downstream did not answer"))
	before := f.store.Raw()
	p := f.start(t)

	result, err := p.Handle(context.Background(), events.NewChangeEvent(linkUp))

	require.NoError(t, err)
	assert.Equal(t, StatusPublishFailed, result.Status)
	assert.Equal(t, ReasonPublishTimeout, result.Reason)
	assert.Equal(t, before, f.store.Raw())
}

func TestPipeline_DownstreamUnavailable(t *testing.T) {
	f := newFixture(t, 3)
	f.source.On("Fetch", mock.Anything).Return(foreign, nil)
	f.validator.On("Validate", mock.Anything, mock.Anything).Return(nil, nil)
	f.publisher.On("Publish", mock.Anything, mock.Anything).
		Return(errors.New("sdx-controller returned 503 Service Unavailable"))
	before := f.store.Raw()
	p := f.start(t)

	result, err := p.Handle(context.Background(), events.NewChangeEvent(linkUp))

	require.NoError(t, err)
	assert.Equal(t, StatusPublishFailed, result.Status)
	assert.Equal(t, ReasonDownstreamUnavailable, result.Reason)
	assert.Equal(t, before, f.store.Raw())
}

func TestPipeline_CommitLosesToConcurrentWriter(t *testing.T) {
	f := newFixture(t, 3)
	f.source.On("Fetch", mock.Anything).Return(foreign, nil)
	f.validator.On("Validate", mock.Anything, mock.Anything).Return(nil, nil)
	var competitor topology.VersionRecord
	f.publisher.On("Publish", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			// another replica commits version 4 while this publication is in flight
			ctx := context.Background()
			base, err := f.store.Read(ctx)
			if assert.NoError(t, err) {
				competitor = base
				competitor.Version = 4
				competitor.Timestamp = "2024-02-01T00:00:00Z"
				assert.NoError(t, f.store.Commit(ctx, base, competitor))
			}
		}).
		Return(nil)
	p := f.start(t)

	result, err := p.Handle(context.Background(), events.NewChangeEvent(linkUp))

	require.Error(t, err)
	assert.True(t, apperrors.IsVersionConflict(err))
	assert.False(t, result.Published())

	record := f.record(t)
	assert.Equal(t, 4, record.Version)
	assert.True(t, record.SameRevision(competitor))
}

func TestPipeline_RefreshKeepsVersion(t *testing.T) {
	f := newFixture(t, 5)
	f.happyPath()
	p := f.start(t)

	result, err := p.Handle(context.Background(), events.NewTimedChangeEvent(switchMetrics, "2024-01-01T00:00:00Z"))

	require.NoError(t, err)
	assert.Equal(t, StatusPublished, result.Status)
	assert.Equal(t, events.Refresh, result.Action)

	record := f.record(t)
	assert.Equal(t, 5, record.Version)
	assert.Equal(t, "2024-01-01T00:00:00Z", record.Timestamp)
	assert.Equal(t, []string{switchMetrics}, f.logged(t))
}

func TestPipeline_OperationalWithoutTimestampIsNotActionable(t *testing.T) {
	f := newFixture(t, 5)
	before := f.store.Raw()
	p := f.start(t)

	result, err := p.Handle(context.Background(), events.NewChangeEvent(switchMetrics))

	require.NoError(t, err)
	assert.Equal(t, StatusNotActionable, result.Status)
	assert.Equal(t, ReasonIgnored, result.Reason)
	assert.Empty(t, f.logged(t))
	assert.Equal(t, before, f.store.Raw())
	f.source.AssertNotCalled(t, "Fetch", mock.Anything)
}

func TestPipeline_RejectsMalformedTimestamp(t *testing.T) {
	f := newFixture(t, 5)
	before := f.store.Raw()
	p := f.start(t)

	_, err := p.Handle(context.Background(), events.NewTimedChangeEvent(switchMetrics, "yesterday"))

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Equal(t, before, f.store.Raw())
	assert.Empty(t, f.logged(t))
	f.source.AssertNotCalled(t, "Fetch", mock.Anything)
}

func TestPipeline_UninitializedStore(t *testing.T) {
	f := newFixture(t, -1)
	p := f.start(t)

	_, err := p.Handle(context.Background(), events.NewChangeEvent(linkUp))

	require.Error(t, err)
	assert.True(t, apperrors.IsStoreNotInitialized(err))
	f.source.AssertNotCalled(t, "Fetch", mock.Anything)
}

func TestPipeline_UpstreamUnavailable(t *testing.T) {
	f := newFixture(t, 3)
	f.source.On("Fetch", mock.Anything).Return(nil, apperrors.NewUpstreamUnavailableError("kytos", errors.New("connection refused")))
	before := f.store.Raw()
	p := f.start(t)

	result, err := p.Handle(context.Background(), events.NewChangeEvent(linkUp))

	require.NoError(t, err)
	assert.Equal(t, StatusPublishFailed, result.Status)
	assert.Equal(t, ReasonUpstreamUnavailable, result.Reason)
	assert.Equal(t, before, f.store.Raw())
	f.validator.AssertNotCalled(t, "Validate", mock.Anything, mock.Anything)
}

func TestPipeline_ConversionError(t *testing.T) {
	f := newFixture(t, 3)
	f.source.On("Fetch", mock.Anything).Return(topology.ForeignTopology(`{"links": {}}`), nil)
	before := f.store.Raw()
	p := f.start(t)

	result, err := p.Handle(context.Background(), events.NewChangeEvent(linkUp))

	require.NoError(t, err)
	assert.Equal(t, StatusPublishFailed, result.Status)
	assert.Equal(t, ReasonConversionError, result.Reason)
	assert.Equal(t, before, f.store.Raw())
	f.validator.AssertNotCalled(t, "Validate", mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestPipeline_ValidationFailed(t *testing.T) {
	f := newFixture(t, 3)
	f.source.On("Fetch", mock.Anything).Return(foreign, nil)
	f.validator.On("Validate", mock.Anything, mock.Anything).Return([]ports.ValidationError{
		{Message: "'ports' is a required property", Path: "nodes/0"},
	}, nil)
	before := f.store.Raw()
	p := f.start(t)

	result, err := p.Handle(context.Background(), events.NewChangeEvent(linkUp))

	require.NoError(t, err)
	assert.Equal(t, StatusValidationFailed, result.Status)
	assert.Equal(t, ReasonValidationFailed, result.Reason)
	assert.Equal(t, "'ports' is a required property", result.Message)
	require.Len(t, result.ValidationErrors, 1)
	assert.Equal(t, "nodes/0", result.ValidationErrors[0].Path)
	assert.Equal(t, before, f.store.Raw())
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestPipeline_ValidatorUnavailable(t *testing.T) {
	f := newFixture(t, 3)
	f.source.On("Fetch", mock.Anything).Return(foreign, nil)
	f.validator.On("Validate", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))
	p := f.start(t)

	result, err := p.Handle(context.Background(), events.NewChangeEvent(linkUp))

	require.NoError(t, err)
	assert.Equal(t, StatusValidationFailed, result.Status)
	assert.Equal(t, ReasonValidatorUnavailable, result.Reason)
	assert.Equal(t, 3, f.record(t).Version)
}

func TestPipeline_Monotonicity(t *testing.T) {
	f := newFixture(t, 0)
	f.happyPath()
	p := f.start(t)
	ctx := context.Background()

	sequence := []struct {
		event   events.ChangeEvent
		version int
	}{
		{events.NewChangeEvent(linkUp), 1},
		{events.NewTimedChangeEvent(switchMetrics, "2024-02-01T00:00:00Z"), 1},
		{events.NewChangeEvent("kytos/topology.switch.enabled"), 2},
		{events.NewChangeEvent("kytos/of_core.unrelated"), 2},
		{events.NewChangeEvent("kytos/topology.link.deleted"), 3},
		{events.NewTimedChangeEvent(switchMetrics, "2024-02-02T00:00:00Z"), 3},
	}

	for _, step := range sequence {
		_, err := p.Handle(ctx, step.event)
		require.NoError(t, err)
		assert.Equal(t, step.version, f.record(t).Version, step.event.Name)
	}
	assert.Len(t, f.logged(t), 5)
}

func TestPipeline_ConcurrentIncrementsAreSerialized(t *testing.T) {
	f := newFixture(t, 0)
	f.happyPath()
	p := f.start(t)

	const n = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		versions []int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := p.Handle(context.Background(), events.NewChangeEvent(linkUp))
			if assert.NoError(t, err) && assert.True(t, result.Published()) {
				mu.Lock()
				versions = append(versions, result.Document.Version)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	sort.Ints(versions)
	expected := make([]int, n)
	for i := range expected {
		expected[i] = i + 1
	}
	assert.Equal(t, expected, versions)
	assert.Equal(t, n, f.record(t).Version)
}

func TestPipeline_EventLogFailureDoesNotAbort(t *testing.T) {
	f := newFixture(t, 1)
	f.happyPath()
	failingLog := new(mocks.MockEventLog)
	failingLog.On("Append", mock.Anything, linkUp).Return(errors.New("disk full"))
	f.deps.EventLog = failingLog
	p := f.start(t)

	result, err := p.Handle(context.Background(), events.NewChangeEvent(linkUp))

	require.NoError(t, err)
	assert.True(t, result.Published())
	assert.Equal(t, 2, f.record(t).Version)
	failingLog.AssertExpectations(t)
}

func TestPipeline_LockAndNotification(t *testing.T) {
	f := newFixture(t, 1)
	f.happyPath()
	lock := new(mocks.MockLock)
	lock.On("Release", mock.Anything).Return(nil)
	locker := new(mocks.MockLocker)
	locker.On("AcquireLock", mock.Anything, "urn:sdx:topology:amlight.net", time.Minute).Return(lock, nil)
	notifier := new(mocks.MockEventPublisher)
	notifier.On("Publish", mock.Anything, mock.MatchedBy(func(e events.DomainEvent) bool {
		published, ok := e.(events.TopologyPublished)
		return ok && published.TopologyVersion == 2 && published.Trigger == linkUp
	})).Return(nil)
	f.deps.Locker = locker
	f.deps.Notifier = notifier
	f.config.LockKey = "urn:sdx:topology:amlight.net"
	p := f.start(t)

	result, err := p.Handle(context.Background(), events.NewChangeEvent(linkUp))

	require.NoError(t, err)
	assert.True(t, result.Published())
	locker.AssertExpectations(t)
	lock.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestPipeline_LockUnavailable(t *testing.T) {
	f := newFixture(t, 1)
	locker := new(mocks.MockLocker)
	locker.On("AcquireLock", mock.Anything, "topology", mock.Anything).Return(nil, errors.New("lock already held"))
	f.deps.Locker = locker
	f.config.LockKey = "topology"
	p := f.start(t)

	_, err := p.Handle(context.Background(), events.NewChangeEvent(linkUp))

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnavailable))
	assert.Equal(t, 1, f.record(t).Version)
}

func TestPipeline_HandleAfterClose(t *testing.T) {
	f := newFixture(t, 1)
	p, err := New(f.deps, f.config)
	require.NoError(t, err)
	p.Close()
	p.Close()

	_, err = p.Handle(context.Background(), events.NewChangeEvent(linkUp))

	assert.ErrorIs(t, err, ErrClosed)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Dependencies{}, Config{})
	assert.Error(t, err)
}
