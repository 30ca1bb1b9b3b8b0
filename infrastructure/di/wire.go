//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"sdx-topology/infrastructure/config"

	"github.com/google/wire"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideMetrics,
	ProvideTracerProvider,
	ProvideStorage,
	ProvideAsyncEventLog,
	ProvideClassifier,
	ProvideEventSetsWatcher,
	ProvideHTTPClient,
	ProvideTopologySource,
	ProvideSchemaValidator,
	ProvideDownstreamPublisher,
	ProvideEventPublisher,
	ProvidePipeline,
	ProvideTopologyService,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil // Wire will replace this
}
