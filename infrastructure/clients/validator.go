package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sdx-topology/application/ports"
	"sdx-topology/domain/topology"
	apperrors "sdx-topology/pkg/errors"
	"sdx-topology/pkg/observability"

	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// SchemaValidator posts documents to the SDX topology validation service. A 200 answer
// means the document is valid; a 4xx answer carries the violations.
type SchemaValidator struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
	metrics *observability.Collector
}

// NewSchemaValidator creates a validator posting to url
func NewSchemaValidator(url string, client *http.Client, logger *zap.Logger, metrics *observability.Collector) *SchemaValidator {
	return &SchemaValidator{
		url:     url,
		client:  client,
		breaker: NewBreaker(DefaultBreakerConfig("sdx-validator"), logger, metrics),
		logger:  logger,
		metrics: metrics,
	}
}

// Validate returns the violations reported for doc, or none if it is valid
func (v *SchemaValidator) Validate(ctx context.Context, doc topology.Document) ([]ports.ValidationError, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, apperrors.NewInternalError("encode topology document").WithCause(err)
	}
	return v.ValidateRaw(ctx, body)
}

// ValidateRaw validates an already encoded document
func (v *SchemaValidator) ValidateRaw(ctx context.Context, body []byte) ([]ports.ValidationError, error) {
	start := time.Now()
	result, err := v.breaker.Execute(func() (interface{}, error) {
		return v.post(ctx, body)
	})
	v.metrics.RecordCollaboratorCall("sdx-validator", outcome(err), time.Since(start))
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.NewExternalError("sdx-validator", err)
	}
	return result.([]ports.ValidationError), nil
}

func (v *SchemaValidator) post(ctx context.Context, body []byte) ([]ports.ValidationError, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.NewExternalError("sdx-validator", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, apperrors.NewExternalError("sdx-validator", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, apperrors.NewExternalError("sdx-validator", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return []ports.ValidationError{}, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		violations := parseViolations(respBody)
		v.logger.Debug("Validator reported violations", zap.Int("count", len(violations)))
		return violations, nil
	default:
		return nil, apperrors.NewExternalError("sdx-validator",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
}

// parseViolations reads {"error_message": ..., "error_path": ...} objects, alone or in
// a list. Bodies of any other shape become a single violation holding the body text.
func parseViolations(body []byte) []ports.ValidationError {
	parsed := gjson.ParseBytes(body)

	var entries []gjson.Result
	switch {
	case parsed.IsArray():
		entries = parsed.Array()
	case parsed.IsObject():
		entries = []gjson.Result{parsed}
	}

	violations := []ports.ValidationError{}
	for _, entry := range entries {
		message := entry.Get("error_message").String()
		if message == "" {
			continue
		}
		violations = append(violations, ports.ValidationError{
			Message: message,
			Path:    entry.Get("error_path").String(),
		})
	}

	if len(violations) == 0 {
		message := strings.TrimSpace(string(body))
		if message == "" {
			message = "topology rejected by schema validator"
		}
		violations = append(violations, ports.ValidationError{Message: message})
	}
	return violations
}
