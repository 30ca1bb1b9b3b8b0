// Package messaging notifies other systems about published topologies.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"sdx-topology/application/ports"
	"sdx-topology/domain/events"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"
)

// DefaultSource is the EventBridge source of every entry put by this service
const DefaultSource = "sdx.topology"

// PutEventsAPI is the part of the EventBridge client the publisher needs
type PutEventsAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

var _ PutEventsAPI = (*eventbridge.Client)(nil)

// EventBridgePublisher puts domain events on an EventBridge bus
type EventBridgePublisher struct {
	client   PutEventsAPI
	eventBus string
	source   string
	logger   *zap.Logger
	now      func() time.Time
}

var _ ports.EventPublisher = (*EventBridgePublisher)(nil)

// NewEventBridgePublisher creates a publisher for eventBus
func NewEventBridgePublisher(client PutEventsAPI, eventBus, source string, logger *zap.Logger) *EventBridgePublisher {
	if eventBus == "" {
		eventBus = "default"
	}
	if source == "" {
		source = DefaultSource
	}
	return &EventBridgePublisher{
		client:   client,
		eventBus: eventBus,
		source:   source,
		logger:   logger,
		now:      time.Now,
	}
}

// Publish puts a single event on the bus
func (p *EventBridgePublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	detail, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	output, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{{
			EventBusName: aws.String(p.eventBus),
			Source:       aws.String(p.source),
			DetailType:   aws.String(event.GetEventType()),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(p.now()),
			Resources:    []string{event.GetAggregateID()},
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to put events: %w", err)
	}
	if output.FailedEntryCount > 0 {
		reason := ""
		if len(output.Entries) > 0 && output.Entries[0].ErrorMessage != nil {
			reason = *output.Entries[0].ErrorMessage
		}
		return fmt.Errorf("event %s rejected by bus %s: %s", event.GetEventType(), p.eventBus, reason)
	}

	p.logger.Debug("Published event",
		zap.String("eventType", event.GetEventType()),
		zap.String("aggregateId", event.GetAggregateID()),
		zap.String("eventBus", p.eventBus),
	)
	return nil
}

// LoggingPublisher records events in the log only. It is used when bus notifications
// are disabled.
type LoggingPublisher struct {
	logger *zap.Logger
}

// NewLoggingPublisher creates a LoggingPublisher
func NewLoggingPublisher(logger *zap.Logger) *LoggingPublisher {
	return &LoggingPublisher{logger: logger}
}

// Publish logs the event
func (p *LoggingPublisher) Publish(_ context.Context, event events.DomainEvent) error {
	p.logger.Info("Domain event",
		zap.String("eventType", event.GetEventType()),
		zap.String("aggregateId", event.GetAggregateID()),
		zap.Time("occurredAt", event.GetTimestamp()),
	)
	return nil
}
