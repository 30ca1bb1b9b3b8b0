// Package main implements the Lambda handler that feeds Kytos change events delivered by
// EventBridge into the publication pipeline.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"sdx-topology/application/pipeline"
	domainevents "sdx-topology/domain/events"
	"sdx-topology/infrastructure/config"
	"sdx-topology/infrastructure/di"
	"sdx-topology/pkg/utils"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"
)

type eventHandler interface {
	HandleEvent(ctx context.Context, event domainevents.ChangeEvent) (pipeline.Result, error)
}

var container *di.Container

func setup(ctx context.Context) {

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, err = di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	if _, err := di.Bootstrap(ctx, container); err != nil {
		log.Fatalf("Failed to initialize topology store: %v", err)
	}
}

// changeEvent reads the ChangeEvent carried by an EventBridge entry. The detail may omit
// the name, in which case the detail type is used.
func changeEvent(event events.CloudWatchEvent) (domainevents.ChangeEvent, error) {
	var change domainevents.ChangeEvent
	if len(event.Detail) > 0 {
		if err := json.Unmarshal(event.Detail, &change); err != nil {
			return domainevents.ChangeEvent{}, fmt.Errorf("failed to unmarshal event detail: %w", err)
		}
	}
	if change.Name == "" {
		change.Name = event.DetailType
	}
	if change.Name == "" {
		return domainevents.ChangeEvent{}, fmt.Errorf("event %s has no name", event.ID)
	}
	if err := utils.ValidateStruct(change); err != nil {
		return domainevents.ChangeEvent{}, fmt.Errorf("event %s: %w", event.ID, err)
	}
	return change, nil
}

// handle returns an error only when the event should be retried. Collaborator failures
// are final for this event and are logged instead.
func handle(ctx context.Context, handler eventHandler, logger *zap.Logger, event events.CloudWatchEvent) error {
	change, err := changeEvent(event)
	if err != nil {
		logger.Error("Dropping malformed event", zap.String("eventId", event.ID), zap.Error(err))
		return nil
	}

	result, err := handler.HandleEvent(ctx, change)
	if err != nil {
		return fmt.Errorf("handle %s: %w", change.Name, err)
	}

	fields := []zap.Field{
		zap.String("eventId", event.ID),
		zap.String("event", change.Name),
		zap.String("status", string(result.Status)),
	}
	switch result.Status {
	case pipeline.StatusPublished:
		logger.Info("Topology published", append(fields,
			zap.Int("version", result.Document.Version),
			zap.String("timestamp", result.Document.Timestamp),
		)...)
	case pipeline.StatusNotActionable:
		logger.Debug("Event not actionable", fields...)
	default:
		logger.Warn("Topology not published", append(fields,
			zap.String("reason", result.Reason),
			zap.String("message", result.Message),
		)...)
	}
	return nil
}

// HandleRequest processes change events from EventBridge
func HandleRequest(ctx context.Context, event events.CloudWatchEvent) error {
	err := handle(ctx, container.Service, container.Logger, event)
	if flushErr := container.EventLog.Flush(ctx); flushErr != nil {
		container.Logger.Warn("Failed to flush event log", zap.Error(flushErr))
	}
	return err
}

func main() {
	setup(context.Background())
	lambda.Start(HandleRequest)
}
