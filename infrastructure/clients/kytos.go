package clients

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"sdx-topology/domain/topology"
	apperrors "sdx-topology/pkg/errors"
	"sdx-topology/pkg/observability"

	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// maxResponseBytes bounds the bodies read from collaborators
const maxResponseBytes = 64 << 20

// KytosSource fetches the topology from the Kytos topology NApp. The NApp answers with
// {"topology": {...}} and only the inner object is returned.
type KytosSource struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
	metrics *observability.Collector
}

// NewKytosSource creates a source reading url
func NewKytosSource(url string, client *http.Client, logger *zap.Logger, metrics *observability.Collector) *KytosSource {
	return &KytosSource{
		url:     url,
		client:  client,
		breaker: NewBreaker(DefaultBreakerConfig("kytos"), logger, metrics),
		logger:  logger,
		metrics: metrics,
	}
}

// Fetch returns the raw Kytos topology object
func (s *KytosSource) Fetch(ctx context.Context) (topology.ForeignTopology, error) {
	start := time.Now()
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.fetch(ctx)
	})
	s.metrics.RecordCollaboratorCall("kytos", outcome(err), time.Since(start))
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.NewUpstreamUnavailableError("kytos", err)
	}
	return result.(topology.ForeignTopology), nil
}

func (s *KytosSource) fetch(ctx context.Context) (topology.ForeignTopology, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, apperrors.NewUpstreamUnavailableError("kytos", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperrors.NewUpstreamUnavailableError("kytos", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, apperrors.NewUpstreamUnavailableError("kytos", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewUpstreamUnavailableError("kytos",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	inner := gjson.GetBytes(body, "topology")
	if !inner.IsObject() {
		return nil, apperrors.NewUpstreamUnavailableError("kytos",
			fmt.Errorf("response has no topology object"))
	}

	s.logger.Debug("Fetched upstream topology", zap.Int("bytes", len(inner.Raw)))
	return topology.ForeignTopology(inner.Raw), nil
}
