package di

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"sdx-topology/application/pipeline"
	"sdx-topology/application/ports"
	"sdx-topology/application/services"
	"sdx-topology/domain/events"
	"sdx-topology/domain/topology"
	"sdx-topology/infrastructure/clients"
	"sdx-topology/infrastructure/config"
	"sdx-topology/infrastructure/messaging"
	"sdx-topology/infrastructure/persistence/dynamodb"
	"sdx-topology/infrastructure/persistence/eventlog"
	"sdx-topology/infrastructure/persistence/leveldb"
	"sdx-topology/infrastructure/persistence/memory"
	"sdx-topology/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	metricsNamespace  = "sdx_topology"
	eventWriteTimeout = 5 * time.Second
)

// Storage groups the persistence adapters selected by STORE_BACKEND
type Storage struct {
	Store    ports.VersionStore
	EventLog ports.EventLog
	// Locker is nil for single-process backends
	Locker ports.Locker
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideMetrics creates the Prometheus collector
func ProvideMetrics() *observability.Collector {
	return observability.NewCollector(metricsNamespace)
}

// ProvideTracerProvider installs tracing when ENABLE_TRACING is set
func ProvideTracerProvider(ctx context.Context, cfg *config.Config) (*observability.TracerProvider, error) {
	return observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.EnableTracing,
		ServiceName: "sdx-topology",
		Environment: cfg.Environment,
		Endpoint:    cfg.OTLPEndpoint,
	})
}

// ProvideStorage opens the store and event log of the configured backend
func ProvideStorage(cfg *config.Config, client *awsdynamodb.Client, logger *zap.Logger) (*Storage, error) {
	topologyID := cfg.Identity().TopologyID()

	switch cfg.StoreBackend {
	case config.StoreLevelDB:
		lockWait := leveldb.WithLockWait(cfg.UpstreamTimeout)
		store, err := leveldb.NewVersionStore(cfg.StoreDir, lockWait)
		if err != nil {
			return nil, err
		}
		log, err := leveldb.NewEventLog(cfg.StoreDir, cfg.EventLogMaxEntries, lockWait)
		if err != nil {
			return nil, err
		}
		return &Storage{Store: store, EventLog: log}, nil

	case config.StoreDynamoDB:
		lock := dynamodb.NewDistributedLock(client, cfg.DynamoDBTable, logger)
		return &Storage{
			Store:    dynamodb.NewVersionStore(client, cfg.DynamoDBTable, topologyID, logger),
			EventLog: dynamodb.NewEventLog(client, cfg.DynamoDBTable, topologyID, cfg.EventLogMaxEntries, logger),
			Locker:   dynamodb.NewLocker(lock, cfg.UpstreamTimeout),
		}, nil

	case config.StoreMemory:
		return &Storage{
			Store:    memory.NewVersionStore(),
			EventLog: memory.NewEventLog(cfg.EventLogMaxEntries),
		}, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

// ProvideAsyncEventLog puts the backend event log behind a bounded buffer
func ProvideAsyncEventLog(storage *Storage, cfg *config.Config, logger *zap.Logger, metrics *observability.Collector) *eventlog.Async {
	return eventlog.NewAsync(storage.EventLog, cfg.EventLogBuffer, eventWriteTimeout, logger, metrics)
}

// ProvideClassifier builds the classifier from EVENT_SETS_FILE or the default sets
func ProvideClassifier(cfg *config.Config) (*events.SwappableClassifier, error) {
	classifier, err := config.LoadClassifier(cfg.EventSetsFile)
	if err != nil {
		return nil, err
	}
	return events.NewSwappableClassifier(classifier), nil
}

// ProvideEventSetsWatcher starts reloading EVENT_SETS_FILE when WATCH_EVENT_SETS is set.
// It returns nil otherwise.
func ProvideEventSetsWatcher(cfg *config.Config, classifier *events.SwappableClassifier, logger *zap.Logger) (*config.EventSetsWatcher, error) {
	if !cfg.WatchEventSets || cfg.EventSetsFile == "" {
		return nil, nil
	}
	return config.NewEventSetsWatcher(cfg.EventSetsFile, classifier, logger)
}

// ProvideHTTPClient creates the client shared by the outbound collaborators
func ProvideHTTPClient(cfg *config.Config) *http.Client {
	return clients.NewHTTPClient(cfg.UpstreamTimeout)
}

// ProvideTopologySource creates the Kytos topology source
func ProvideTopologySource(cfg *config.Config, client *http.Client, logger *zap.Logger, metrics *observability.Collector) ports.TopologySource {
	return clients.NewKytosSource(cfg.KytosTopologyURL, client, logger, metrics)
}

// ProvideSchemaValidator creates the SDX validator client
func ProvideSchemaValidator(cfg *config.Config, client *http.Client, logger *zap.Logger, metrics *observability.Collector) ports.SchemaValidator {
	return clients.NewSchemaValidator(cfg.ValidateURL, client, logger, metrics)
}

// ProvideDownstreamPublisher creates the Local Controller client
func ProvideDownstreamPublisher(cfg *config.Config, client *http.Client, logger *zap.Logger, metrics *observability.Collector) ports.DownstreamPublisher {
	return clients.NewLCPublisher(cfg.LCTopologyURL, client, logger, metrics)
}

// ProvideEventPublisher creates the EventBridge notifier, or a logging one when
// notifications are disabled
func ProvideEventPublisher(cfg *config.Config, client *awseventbridge.Client, logger *zap.Logger) ports.EventPublisher {
	if !cfg.EnableEventNotifications {
		return messaging.NewLoggingPublisher(logger)
	}
	return messaging.NewEventBridgePublisher(client, cfg.EventBusName, messaging.DefaultSource, logger)
}

// ProvidePipeline creates and starts the publication pipeline
func ProvidePipeline(
	cfg *config.Config,
	classifier *events.SwappableClassifier,
	storage *Storage,
	eventLog *eventlog.Async,
	source ports.TopologySource,
	validator ports.SchemaValidator,
	publisher ports.DownstreamPublisher,
	notifier ports.EventPublisher,
	metrics *observability.Collector,
	tracing *observability.TracerProvider,
	logger *zap.Logger,
) (*pipeline.Pipeline, error) {
	return pipeline.New(pipeline.Dependencies{
		Classifier: classifier,
		Store:      storage.Store,
		EventLog:   eventLog,
		Source:     source,
		Validator:  validator,
		Publisher:  publisher,
		Converter:  topology.NewConverter(),
		Clock:      topology.SystemClock{},
		Locker:     storage.Locker,
		Notifier:   notifier,
		Metrics:    metrics,
		Tracer:     tracing.Tracer(),
		Logger:     logger,
	}, pipeline.Config{
		QueueSize:   cfg.PipelineQueueSize,
		CallTimeout: cfg.UpstreamTimeout,
		LockKey:     cfg.Identity().TopologyID(),
		LockTTL:     cfg.LockTTL,
	})
}

// ProvideTopologyService creates the topology service
func ProvideTopologyService(
	storage *Storage,
	eventLog *eventlog.Async,
	source ports.TopologySource,
	validator ports.SchemaValidator,
	p *pipeline.Pipeline,
	logger *zap.Logger,
) *services.TopologyService {
	return services.NewTopologyService(storage.Store, eventLog, source, validator, p, topology.SystemClock{}, logger)
}
