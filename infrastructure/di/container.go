// Package di wires the service together.
package di

import (
	"context"

	"sdx-topology/application/pipeline"
	"sdx-topology/application/services"
	"sdx-topology/domain/events"
	"sdx-topology/domain/topology"
	"sdx-topology/infrastructure/config"
	"sdx-topology/infrastructure/persistence/eventlog"
	"sdx-topology/pkg/observability"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *observability.Collector
	Tracing    *observability.TracerProvider
	Storage    *Storage
	EventLog   *eventlog.Async
	Classifier *events.SwappableClassifier
	Watcher    *config.EventSetsWatcher
	Pipeline   *pipeline.Pipeline
	Service    *services.TopologyService
}

// Bootstrap seeds the version store with the configured identity. It is safe to call on
// every start.
func Bootstrap(ctx context.Context, c *Container) (topology.VersionRecord, error) {
	return c.Service.Bootstrap(ctx, c.Config.Identity())
}

// Shutdown stops background work in dependency order: no new events, then the pending
// log entries, then telemetry
func (c *Container) Shutdown(ctx context.Context) error {
	if c.Watcher != nil {
		c.Watcher.Stop()
	}
	if c.Pipeline != nil {
		c.Pipeline.Close()
	}
	if c.EventLog != nil {
		c.EventLog.Stop()
	}

	var err error
	if c.Tracing != nil {
		err = c.Tracing.Shutdown(ctx)
	}
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
	return err
}
