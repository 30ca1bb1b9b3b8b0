package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sdx-topology/application/ports"
	"sdx-topology/domain/events"
	"sdx-topology/domain/topology"
	apperrors "sdx-topology/pkg/errors"
	"sdx-topology/pkg/observability"
	"sdx-topology/pkg/utils"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// ErrClosed is returned by Handle after Close
var ErrClosed = errors.New("pipeline is closed")

// Classifier decides what to do with a change event
type Classifier interface {
	Classify(event events.ChangeEvent) events.Action
}

// Config tunes the pipeline
type Config struct {
	// QueueSize bounds the number of events waiting for the worker
	QueueSize int
	// CallTimeout bounds each collaborator call
	CallTimeout time.Duration
	// LockKey names the distributed lock taken around read-modify-write, usually the topology id
	LockKey string
	LockTTL time.Duration
}

// DefaultConfig returns the default pipeline settings
func DefaultConfig() Config {
	return Config{
		QueueSize:   64,
		CallTimeout: 10 * time.Second,
		LockTTL:     time.Minute,
	}
}

// Dependencies are the collaborators of the pipeline. Locker, Notifier, Metrics and
// Tracer are optional.
type Dependencies struct {
	Classifier Classifier
	Store      ports.VersionStore
	EventLog   ports.EventLog
	Source     ports.TopologySource
	Validator  ports.SchemaValidator
	Publisher  ports.DownstreamPublisher
	Converter  *topology.Converter
	Clock      topology.Clock
	Locker     ports.Locker
	Notifier   ports.EventPublisher
	Metrics    *observability.Collector
	Tracer     trace.Tracer
	Logger     *zap.Logger
}

type job struct {
	ctx    context.Context
	event  events.ChangeEvent
	action events.Action
	reply  chan outcome
}

type outcome struct {
	result Result
	err    error
}

// Pipeline turns change events into published topology versions. A single worker
// processes events one at a time in arrival order, so at most one read-modify-write
// of the version store is in progress per pipeline.
type Pipeline struct {
	deps   Dependencies
	config Config
	queue  chan *job

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// New creates a pipeline and starts its worker
func New(deps Dependencies, config Config) (*Pipeline, error) {
	if deps.Classifier == nil || deps.Store == nil || deps.EventLog == nil ||
		deps.Source == nil || deps.Validator == nil || deps.Publisher == nil {
		return nil, fmt.Errorf("pipeline requires classifier, store, event log, source, validator and publisher")
	}
	if deps.Converter == nil {
		deps.Converter = topology.NewConverter()
	}
	if deps.Clock == nil {
		deps.Clock = topology.SystemClock{}
	}
	if deps.Tracer == nil {
		deps.Tracer = noop.NewTracerProvider().Tracer(observability.TracerName)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	defaults := DefaultConfig()
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.CallTimeout <= 0 {
		config.CallTimeout = defaults.CallTimeout
	}
	if config.LockTTL <= 0 {
		config.LockTTL = defaults.LockTTL
	}

	p := &Pipeline{
		deps:   deps,
		config: config,
		queue:  make(chan *job, config.QueueSize),
	}
	p.wg.Add(1)
	go p.run()
	return p, nil
}

// Handle classifies event and, unless it is ignored, queues it for the worker and waits
// for the result. Failures of the upstream source, the converter, the validator and the
// downstream publisher are reported in the Result. The returned error is reserved for
// conditions that stop processing altogether, such as an uninitialized store.
//
// If ctx ends while the event is being processed, Handle returns ctx.Err() but the
// event still runs to completion.
func (p *Pipeline) Handle(ctx context.Context, event events.ChangeEvent) (Result, error) {
	if event.HasTimestamp() {
		if _, err := utils.ParseTimestamp(*event.Timestamp); err != nil {
			return Result{}, apperrors.NewValidationError(
				fmt.Sprintf("event %s: timestamp %q is not ISO-8601", event.Name, *event.Timestamp))
		}
	}

	action := p.deps.Classifier.Classify(event)
	if action == events.Ignore {
		p.deps.Logger.Debug("Ignoring change event", zap.String("event", event.Name))
		p.deps.Metrics.RecordPipelineResult(action.String(), string(StatusNotActionable), ReasonIgnored, 0)
		return notActionable(), nil
	}

	j := &job{
		ctx:    context.WithoutCancel(ctx),
		event:  event,
		action: action,
		reply:  make(chan outcome, 1),
	}
	if err := p.enqueue(ctx, j); err != nil {
		return Result{}, err
	}

	select {
	case out := <-j.reply:
		return out.result, out.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (p *Pipeline) enqueue(ctx context.Context, j *job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	select {
	case p.queue <- j:
		p.deps.Metrics.SetQueueDepth(len(p.queue))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events, waits for queued events to finish and stops the worker
func (p *Pipeline) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pipeline) run() {
	defer p.wg.Done()
	for j := range p.queue {
		p.deps.Metrics.SetQueueDepth(len(p.queue))
		result, err := p.process(j.ctx, j.event, j.action)
		j.reply <- outcome{result: result, err: err}
	}
}

func (p *Pipeline) process(ctx context.Context, event events.ChangeEvent, action events.Action) (result Result, err error) {
	start := time.Now()
	ctx, span := p.deps.Tracer.Start(ctx, "pipeline.handle", trace.WithAttributes(
		attribute.String("sdx.event", event.Name),
		attribute.String("sdx.action", action.String()),
	))
	defer func() {
		status, reason := string(result.Status), result.Reason
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			status, reason = "error", errorCode(err)
		}
		span.SetAttributes(attribute.String("sdx.status", status))
		span.End()
		p.deps.Metrics.RecordPipelineResult(action.String(), status, reason, time.Since(start))
	}()

	p.appendLog(ctx, event.Name)

	if p.deps.Locker != nil && p.config.LockKey != "" {
		lock, err := p.deps.Locker.AcquireLock(ctx, p.config.LockKey, p.config.LockTTL)
		if err != nil {
			return Result{}, apperrors.NewUnavailableError("topology lock").WithCode("lock_unavailable").WithCause(err)
		}
		defer func() {
			if releaseErr := lock.Release(context.WithoutCancel(ctx)); releaseErr != nil {
				p.deps.Logger.Warn("Failed to release topology lock", zap.Error(releaseErr))
			}
		}()
	}

	record, err := p.deps.Store.Read(ctx)
	if err != nil {
		return Result{}, err
	}

	version, timestamp := record.Version, p.deps.Clock.Now()
	if action == events.Increment {
		version = record.Version + 1
	} else if event.Timestamp != nil {
		timestamp = *event.Timestamp
	}

	logger := p.deps.Logger.With(
		zap.String("event", event.Name),
		zap.String("action", action.String()),
		zap.Int("currentVersion", record.Version),
		zap.Int("nextVersion", version),
	)

	var foreign topology.ForeignTopology
	if err := p.call(ctx, "fetch", func(ctx context.Context) error {
		var fetchErr error
		foreign, fetchErr = p.deps.Source.Fetch(ctx)
		return fetchErr
	}); err != nil {
		logger.Warn("Upstream topology unavailable", zap.Error(err))
		return publishFailed(action, ReasonUpstreamUnavailable, err), nil
	}

	identity := record.Identity()
	doc, err := p.deps.Converter.Convert(foreign, topology.ConvertParams{
		Version:      version,
		Timestamp:    timestamp,
		ModelVersion: identity.ModelVersion,
		OXPName:      identity.OXPName,
		OXPURL:       identity.OXPURL,
	})
	if err != nil {
		logger.Error("Failed to convert upstream topology", zap.Error(err))
		return publishFailed(action, ReasonConversionError, err), nil
	}

	var violations []ports.ValidationError
	if err := p.call(ctx, "validate", func(ctx context.Context) error {
		var validateErr error
		violations, validateErr = p.deps.Validator.Validate(ctx, doc)
		return validateErr
	}); err != nil {
		logger.Warn("Schema validator unavailable", zap.Error(err))
		return Result{
			Status:  StatusValidationFailed,
			Action:  action,
			Reason:  ReasonValidatorUnavailable,
			Message: err.Error(),
		}, nil
	}
	if len(violations) > 0 {
		logger.Warn("Topology failed schema validation",
			zap.String("error", violations[0].Message),
			zap.String("path", violations[0].Path),
		)
		return Result{
			Status:           StatusValidationFailed,
			Action:           action,
			Reason:           ReasonValidationFailed,
			Message:          violations[0].Message,
			ValidationErrors: violations,
		}, nil
	}

	if err := p.call(ctx, "publish", func(ctx context.Context) error {
		return p.deps.Publisher.Publish(ctx, doc)
	}); err != nil {
		reason := ReasonDownstreamUnavailable
		switch {
		case apperrors.IsType(err, apperrors.ErrorTypePublishRejected):
			reason = ReasonPublishRejected
		case errors.Is(err, context.DeadlineExceeded):
			reason = ReasonPublishTimeout
		}
		logger.Warn("Downstream did not acknowledge topology", zap.String("reason", reason), zap.Error(err))
		return publishFailed(action, reason, err), nil
	}

	if err := p.call(ctx, "commit", func(ctx context.Context) error {
		return p.deps.Store.Commit(ctx, record, record.Advance(doc))
	}); err != nil {
		if apperrors.IsVersionConflict(err) {
			logger.Error("Topology version advanced during publication; lock lease was lost", zap.Error(err))
			return Result{}, err
		}
		logger.Error("Failed to commit published topology", zap.Error(err))
		return Result{}, apperrors.Wrap(err, "commit published topology")
	}

	p.deps.Metrics.SetTopologyVersion(doc.Version)
	logger.Info("Topology published",
		zap.String("timestamp", doc.Timestamp),
		zap.Int("nodes", len(doc.Nodes)),
		zap.Int("links", len(doc.Links)),
	)
	p.notify(ctx, doc, event, action)

	return Result{Status: StatusPublished, Action: action, Document: &doc}, nil
}

// call runs fn under its own timeout and span
func (p *Pipeline) call(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, p.config.CallTimeout)
	defer cancel()

	ctx, span := p.deps.Tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			return fmt.Errorf("%s: %w: %w", name, ctxErr, err)
		}
		return err
	}
	return nil
}

func (p *Pipeline) appendLog(ctx context.Context, name string) {
	if err := p.deps.EventLog.Append(ctx, name); err != nil {
		p.deps.Logger.Warn("Event log append failed",
			zap.String("event", name),
			zap.Error(apperrors.NewLogAppendFailedError(name, err)),
		)
	}
}

func (p *Pipeline) notify(ctx context.Context, doc topology.Document, event events.ChangeEvent, action events.Action) {
	if p.deps.Notifier == nil {
		return
	}
	published := events.NewTopologyPublished(doc.ID, doc.Version, doc.Timestamp, event, action,
		len(doc.Nodes), len(doc.Links), time.Now().UTC())
	if err := p.deps.Notifier.Publish(ctx, published); err != nil {
		p.deps.Logger.Warn("Failed to send publish notification", zap.Error(err))
	}
}

func errorCode(err error) string {
	if appErr := apperrors.GetAppError(err); appErr != nil && appErr.Code != "" {
		return appErr.Code
	}
	return "internal"
}
