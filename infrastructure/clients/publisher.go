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

	"sdx-topology/domain/topology"
	apperrors "sdx-topology/pkg/errors"
	"sdx-topology/pkg/observability"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// LCPublisher posts documents to the SDX Local Controller. Only a 200 answer is an
// acknowledgement.
type LCPublisher struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
	metrics *observability.Collector
}

// NewLCPublisher creates a publisher posting to url
func NewLCPublisher(url string, client *http.Client, logger *zap.Logger, metrics *observability.Collector) *LCPublisher {
	return &LCPublisher{
		url:     url,
		client:  client,
		breaker: NewBreaker(DefaultBreakerConfig("sdx-lc"), logger, metrics),
		logger:  logger,
		metrics: metrics,
	}
}

// Publish sends doc and returns nil once the controller acknowledged it
func (p *LCPublisher) Publish(ctx context.Context, doc topology.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return apperrors.NewInternalError("encode topology document").WithCause(err)
	}

	start := time.Now()
	_, err = p.breaker.Execute(func() (interface{}, error) {
		return nil, p.post(ctx, body)
	})
	p.metrics.RecordCollaboratorCall("sdx-lc", outcome(err), time.Since(start))
	if err != nil && !apperrors.IsAppError(err) {
		return apperrors.NewExternalError("sdx-lc", err)
	}
	return err
}

func (p *LCPublisher) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return apperrors.NewExternalError("sdx-lc", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return apperrors.NewExternalError("sdx-lc", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	reason := strings.TrimSpace(string(respBody))
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}
	if resp.StatusCode >= 500 {
		return apperrors.NewExternalError("sdx-lc", fmt.Errorf("status %d: %s", resp.StatusCode, reason))
	}

	p.logger.Debug("Local controller rejected topology",
		zap.Int("status", resp.StatusCode),
		zap.String("reason", reason),
	)
	return apperrors.NewPublishRejectedError(reason).WithDetails(map[string]interface{}{
		"status": resp.StatusCode,
	})
}
