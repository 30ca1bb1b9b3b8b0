// Package clients holds the HTTP collaborators of the pipeline: the Kytos topology
// source, the SDX schema validator and the SDX Local Controller publisher.
package clients

import (
	"errors"
	"net/http"
	"time"

	apperrors "sdx-topology/pkg/errors"
	"sdx-topology/pkg/observability"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig holds configuration for a circuit breaker
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the default configuration for a collaborator breaker
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      1,
		Interval:         30 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// NewBreaker creates a circuit breaker that trips when most recent calls failed.
// Business rejections from a reachable service do not count as failures.
func NewBreaker(config BreakerConfig, logger *zap.Logger, metrics *observability.Collector) *gobreaker.CircuitBreaker {
	metrics.SetBreakerState(config.Name, float64(gobreaker.StateClosed))

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= config.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.SetBreakerState(name, float64(to))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || apperrors.IsType(err, apperrors.ErrorTypePublishRejected)
		},
	})
}

// isBreakerOpen reports whether err came from the breaker refusing the call
func isBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// NewHTTPClient creates the client shared by the collaborators
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case isBreakerOpen(err):
		return "breaker_open"
	case apperrors.IsType(err, apperrors.ErrorTypePublishRejected):
		return "rejected"
	default:
		return "failure"
	}
}
