// Package services exposes the read side of the topology and the operations that do not
// go through the publication pipeline.
package services

import (
	"context"
	"fmt"

	"sdx-topology/application/pipeline"
	"sdx-topology/application/ports"
	"sdx-topology/domain/events"
	"sdx-topology/domain/topology"
	apperrors "sdx-topology/pkg/errors"

	"go.uber.org/zap"
)

// EventHandler runs change events through the publication pipeline
type EventHandler interface {
	Handle(ctx context.Context, event events.ChangeEvent) (pipeline.Result, error)
}

// TopologyService is the entry point used by the HTTP handlers and the CLI
type TopologyService struct {
	store     ports.VersionStore
	eventLog  ports.EventLog
	source    ports.TopologySource
	validator ports.SchemaValidator
	converter *topology.Converter
	clock     topology.Clock
	handler   EventHandler
	logger    *zap.Logger
}

// NewTopologyService creates a new topology service. handler may be nil for tools that
// only inspect the store.
func NewTopologyService(
	store ports.VersionStore,
	eventLog ports.EventLog,
	source ports.TopologySource,
	validator ports.SchemaValidator,
	handler EventHandler,
	clock topology.Clock,
	logger *zap.Logger,
) *TopologyService {
	if clock == nil {
		clock = topology.SystemClock{}
	}
	return &TopologyService{
		store:     store,
		eventLog:  eventLog,
		source:    source,
		validator: validator,
		converter: topology.NewConverter(),
		clock:     clock,
		handler:   handler,
		logger:    logger,
	}
}

// Bootstrap seeds the version 0 record for identity unless a record already exists.
// Calling it again returns the stored record unchanged.
func (s *TopologyService) Bootstrap(ctx context.Context, identity topology.Identity) (topology.VersionRecord, error) {
	record, err := s.store.Initialize(ctx, identity, s.clock.Now())
	if err != nil {
		return topology.VersionRecord{}, err
	}

	if record.Identity() != identity {
		s.logger.Warn("Stored identity differs from configured identity, keeping stored",
			zap.String("storedId", record.ID),
			zap.String("configuredId", identity.TopologyID()),
		)
	}

	s.logger.Info("Topology store ready",
		zap.String("topologyId", record.ID),
		zap.Int("version", record.Version),
		zap.String("timestamp", record.Timestamp),
	)
	return record, nil
}

// GetRecord returns the persisted version record
func (s *TopologyService) GetRecord(ctx context.Context) (topology.VersionRecord, error) {
	return s.store.Read(ctx)
}

// CurrentDocument returns the last published document
func (s *TopologyService) CurrentDocument(ctx context.Context) (topology.Document, error) {
	record, err := s.store.Read(ctx)
	if err != nil {
		return topology.Document{}, err
	}
	return record.Document(), nil
}

// ListEvents returns the logged event names, oldest first
func (s *TopologyService) ListEvents(ctx context.Context) ([]string, error) {
	names, err := s.eventLog.List(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, "list events")
	}
	return names, nil
}

// HandleEvent submits a change event to the pipeline
func (s *TopologyService) HandleEvent(ctx context.Context, event events.ChangeEvent) (pipeline.Result, error) {
	if s.handler == nil {
		return pipeline.Result{}, apperrors.NewUnavailableError("publication pipeline")
	}
	return s.handler.Handle(ctx, event)
}

// ValidateDocument checks doc against the SDX schema without publishing it
func (s *TopologyService) ValidateDocument(ctx context.Context, doc topology.Document) ([]ports.ValidationError, error) {
	if s.validator == nil {
		return nil, apperrors.NewUnavailableError("schema validator")
	}
	return s.validator.Validate(ctx, doc)
}

// PreviewConversion converts the current upstream topology using the stored version and
// timestamp. Nothing is validated, published or committed.
func (s *TopologyService) PreviewConversion(ctx context.Context) (topology.Document, error) {
	if s.source == nil {
		return topology.Document{}, apperrors.NewUnavailableError("topology source")
	}

	record, err := s.store.Read(ctx)
	if err != nil {
		return topology.Document{}, err
	}

	foreign, err := s.source.Fetch(ctx)
	if err != nil {
		if apperrors.IsAppError(err) {
			return topology.Document{}, err
		}
		return topology.Document{}, apperrors.NewUpstreamUnavailableError("kytos", err)
	}

	identity := record.Identity()
	doc, err := s.converter.Convert(foreign, topology.ConvertParams{
		Version:      record.Version,
		Timestamp:    record.Timestamp,
		ModelVersion: identity.ModelVersion,
		OXPName:      identity.OXPName,
		OXPURL:       identity.OXPURL,
	})
	if err != nil {
		return topology.Document{}, fmt.Errorf("preview conversion: %w", err)
	}
	return doc, nil
}
