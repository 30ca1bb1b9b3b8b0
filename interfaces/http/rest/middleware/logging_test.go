package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"sdx-topology/pkg/observability"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	router := chi.NewRouter()
	router.Use(Logger(zap.New(core)))
	router.Get("/api/v1/topology/record", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/topology/record", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, 1, logs.Len(), "probes are logged at debug level")
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "/api/v1/topology/record", fields["path"])
	assert.Equal(t, int64(http.StatusUnauthorized), fields["status"])
}

func TestMetrics(t *testing.T) {
	collector := observability.NewCollector("test")

	router := chi.NewRouter()
	router.Use(Metrics(collector))
	router.Get("/api/v1/topology/record", func(w http.ResponseWriter, r *http.Request) {})

	for i := 0; i < 3; i++ {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/topology/record", nil))
	}
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, 3.0, testutil.ToFloat64(
		collector.HTTPRequests.WithLabelValues(http.MethodGet, "/api/v1/topology/record", "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		collector.HTTPRequests.WithLabelValues(http.MethodGet, "unmatched", "Not Found")))
}
