package services

import (
	"context"
	"errors"
	"testing"

	"sdx-topology/application/pipeline"
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

var amlight = topology.Identity{OXPName: "AmLight", OXPURL: "amlight.net", ModelVersion: "1.0.0"}

type stubHandler struct {
	result pipeline.Result
	err    error
	events []events.ChangeEvent
}

func (h *stubHandler) Handle(_ context.Context, event events.ChangeEvent) (pipeline.Result, error) {
	h.events = append(h.events, event)
	return h.result, h.err
}

func newService(source ports.TopologySource, validator ports.SchemaValidator, handler EventHandler) (*TopologyService, *memory.VersionStore, *memory.EventLog) {
	store := memory.NewVersionStore()
	log := memory.NewEventLog(0)
	svc := NewTopologyService(store, log, source, validator, handler,
		topology.FixedClock("2024-01-01T00:00:00Z"), zap.NewNop())
	return svc, store, log
}

func TestBootstrap_SeedsVersionZero(t *testing.T) {
	svc, _, _ := newService(nil, nil, nil)
	ctx := context.Background()

	record, err := svc.Bootstrap(ctx, amlight)
	require.NoError(t, err)

	assert.Equal(t, "urn:sdx:topology:amlight.net", record.ID)
	assert.Equal(t, "AmLight", record.Name)
	assert.Equal(t, 0, record.Version)
	assert.Equal(t, "2024-01-01T00:00:00Z", record.Timestamp)
	assert.Empty(t, record.Nodes)
	assert.Empty(t, record.Links)
}

func TestBootstrap_Idempotent(t *testing.T) {
	svc, store, _ := newService(nil, nil, nil)
	ctx := context.Background()

	first, err := svc.Bootstrap(ctx, amlight)
	require.NoError(t, err)
	bumped := first
	bumped.Version = 7
	require.NoError(t, store.Commit(ctx, first, bumped))

	other := amlight
	other.OXPName = "Renamed"
	second, err := svc.Bootstrap(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, 7, second.Version)
	assert.Equal(t, "AmLight", second.Name)
}

func TestBootstrap_RejectsIncompleteIdentity(t *testing.T) {
	svc, _, _ := newService(nil, nil, nil)

	_, err := svc.Bootstrap(context.Background(), topology.Identity{OXPName: "AmLight"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestGetRecord_NotInitialized(t *testing.T) {
	svc, _, _ := newService(nil, nil, nil)

	_, err := svc.GetRecord(context.Background())
	assert.True(t, apperrors.IsStoreNotInitialized(err))

	_, err = svc.CurrentDocument(context.Background())
	assert.True(t, apperrors.IsStoreNotInitialized(err))
}

func TestListEvents(t *testing.T) {
	svc, _, log := newService(nil, nil, nil)
	ctx := context.Background()
	require.NoError(t, log.Append(ctx, "kytos/topology.link_up"))
	require.NoError(t, log.Append(ctx, "kytos/topology.switch_metrics"))

	names, err := svc.ListEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"kytos/topology.link_up", "kytos/topology.switch_metrics"}, names)
}

func TestListEvents_Error(t *testing.T) {
	log := new(mocks.MockEventLog)
	log.On("List", mock.Anything).Return(nil, errors.New("disk gone"))
	svc := NewTopologyService(memory.NewVersionStore(), log, nil, nil, nil, nil, zap.NewNop())

	_, err := svc.ListEvents(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
}

func TestHandleEvent(t *testing.T) {
	handler := &stubHandler{result: pipeline.Result{Status: pipeline.StatusPublished}}
	svc, _, _ := newService(nil, nil, handler)

	result, err := svc.HandleEvent(context.Background(), events.NewChangeEvent("kytos/topology.link_up"))
	require.NoError(t, err)
	assert.True(t, result.Published())
	assert.Equal(t, []events.ChangeEvent{events.NewChangeEvent("kytos/topology.link_up")}, handler.events)
}

func TestHandleEvent_WithoutPipeline(t *testing.T) {
	svc, _, _ := newService(nil, nil, nil)

	_, err := svc.HandleEvent(context.Background(), events.NewChangeEvent("kytos/topology.link_up"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnavailable))
}

func TestValidateDocument(t *testing.T) {
	validator := new(mocks.MockSchemaValidator)
	doc := topology.Document{ID: "urn:sdx:topology:amlight.net"}
	violations := []ports.ValidationError{{Message: "nodes is required", Path: "/nodes"}}
	validator.On("Validate", mock.Anything, doc).Return(violations, nil)

	svc, _, _ := newService(nil, validator, nil)
	got, err := svc.ValidateDocument(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, violations, got)
	validator.AssertExpectations(t)
}

func TestPreviewConversion(t *testing.T) {
	source := new(mocks.MockTopologySource)
	source.On("Fetch", mock.Anything).Return(topology.ForeignTopology(`{
		"switches": {"00:01": {"id": "00:01", "enabled": true, "active": true,
			"metadata": {"node_name": "Ampath1"}, "interfaces": {}}},
		"links": {}
	}`), nil)

	svc, store, _ := newService(source, nil, nil)
	ctx := context.Background()
	base, err := svc.Bootstrap(ctx, amlight)
	require.NoError(t, err)
	record := base
	record.Version = 3
	record.Timestamp = "2024-05-01T00:00:00Z"
	require.NoError(t, store.Commit(ctx, base, record))
	before := store.Raw()

	doc, err := svc.PreviewConversion(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, doc.Version)
	assert.Equal(t, "2024-05-01T00:00:00Z", doc.Timestamp)
	require.Len(t, doc.Nodes, 1)
	assert.Equal(t, "urn:sdx:node:amlight.net:Ampath1", doc.Nodes[0].ID)
	assert.Equal(t, before, store.Raw(), "preview must not touch the store")
}

func TestPreviewConversion_Failures(t *testing.T) {
	t.Run("not initialized", func(t *testing.T) {
		source := new(mocks.MockTopologySource)
		svc, _, _ := newService(source, nil, nil)

		_, err := svc.PreviewConversion(context.Background())
		assert.True(t, apperrors.IsStoreNotInitialized(err))
		source.AssertNotCalled(t, "Fetch", mock.Anything)
	})

	t.Run("upstream down", func(t *testing.T) {
		source := new(mocks.MockTopologySource)
		source.On("Fetch", mock.Anything).Return(nil, errors.New("connection refused"))
		svc, _, _ := newService(source, nil, nil)
		_, err := svc.Bootstrap(context.Background(), amlight)
		require.NoError(t, err)

		_, err = svc.PreviewConversion(context.Background())
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUpstreamUnavailable))
	})

	t.Run("malformed upstream", func(t *testing.T) {
		source := new(mocks.MockTopologySource)
		source.On("Fetch", mock.Anything).Return(topology.ForeignTopology(`{"links": {}}`), nil)
		svc, _, _ := newService(source, nil, nil)
		_, err := svc.Bootstrap(context.Background(), amlight)
		require.NoError(t, err)

		_, err = svc.PreviewConversion(context.Background())
		assert.True(t, apperrors.IsConversion(err))
	})
}
