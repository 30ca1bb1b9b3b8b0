package clients

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"sdx-topology/domain/topology"
	apperrors "sdx-topology/pkg/errors"
	"sdx-topology/pkg/observability"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testDocument() topology.Document {
	return topology.Document{
		ID:           "urn:sdx:topology:amlight.net",
		Name:         "AmLight",
		Version:      3,
		ModelVersion: "1.0",
		Timestamp:    "2024-06-01T12:00:00Z",
		Nodes:        []topology.Node{},
		Links:        []topology.Link{},
	}
}

func TestKytosSource_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"topology": {"switches": {}, "links": {}}}`)
	}))
	defer server.Close()

	metrics := observability.NewCollector("test")
	source := NewKytosSource(server.URL, NewHTTPClient(time.Second), zap.NewNop(), metrics)

	foreign, err := source.Fetch(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"switches": {}, "links": {}}`, string(foreign))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.UpstreamCalls.WithLabelValues("kytos", "success")))
}

func TestKytosSource_FetchFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{}`},
		{name: "missing topology", status: http.StatusOK, body: `{"switches": {}}`},
		{name: "not json", status: http.StatusOK, body: `<html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			source := NewKytosSource(server.URL, NewHTTPClient(time.Second), zap.NewNop(), nil)
			_, err := source.Fetch(context.Background())
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUpstreamUnavailable))
		})
	}
}

func TestKytosSource_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	metrics := observability.NewCollector("test")
	source := NewKytosSource(server.URL, NewHTTPClient(time.Second), zap.NewNop(), metrics)

	for i := 0; i < 10; i++ {
		_, err := source.Fetch(context.Background())
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUpstreamUnavailable))
	}

	assert.Equal(t, int32(5), calls.Load())
	assert.Equal(t, 5.0, testutil.ToFloat64(metrics.UpstreamCalls.WithLabelValues("kytos", "breaker_open")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.BreakerState.WithLabelValues("kytos")))
}

func TestKytosSource_HonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	source := NewKytosSource(server.URL, NewHTTPClient(5*time.Second), zap.NewNop(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := source.Fetch(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSchemaValidator_Valid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var doc topology.Document
		require.NoError(t, json.NewDecoder(r.Body).Decode(&doc))
		assert.Equal(t, 3, doc.Version)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	validator := NewSchemaValidator(server.URL, NewHTTPClient(time.Second), zap.NewNop(), nil)
	violations, err := validator.Validate(context.Background(), testDocument())
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestSchemaValidator_Violations(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		messages []string
		paths    []string
	}{
		{
			name:     "single object",
			body:     `{"error_message": "'nodes' is a required property", "error_path": "/"}`,
			messages: []string{"'nodes' is a required property"},
			paths:    []string{"/"},
		},
		{
			name:     "list",
			body:     `[{"error_message": "bad id", "error_path": "/id"}, {"error_message": "bad version"}]`,
			messages: []string{"bad id", "bad version"},
			paths:    []string{"/id", ""},
		},
		{
			name:     "plain text",
			body:     "schema mismatch\n",
			messages: []string{"schema mismatch"},
			paths:    []string{""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			validator := NewSchemaValidator(server.URL, NewHTTPClient(time.Second), zap.NewNop(), nil)
			violations, err := validator.Validate(context.Background(), testDocument())
			require.NoError(t, err)
			require.Len(t, violations, len(tt.messages))
			for i := range violations {
				assert.Equal(t, tt.messages[i], violations[i].Message)
				assert.Equal(t, tt.paths[i], violations[i].Path)
			}
		})
	}
}

func TestSchemaValidator_Unavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	validator := NewSchemaValidator(server.URL, NewHTTPClient(time.Second), zap.NewNop(), nil)
	_, err := validator.Validate(context.Background(), testDocument())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
}

func TestLCPublisher_Ack(t *testing.T) {
	var received topology.Document
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	publisher := NewLCPublisher(server.URL, NewHTTPClient(time.Second), zap.NewNop(), nil)
	require.NoError(t, publisher.Publish(context.Background(), testDocument()))
	assert.Equal(t, testDocument(), received)
}

func TestLCPublisher_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error": "version already known"}`)
	}))
	defer server.Close()

	metrics := observability.NewCollector("test")
	publisher := NewLCPublisher(server.URL, NewHTTPClient(time.Second), zap.NewNop(), metrics)

	// Rejections must not trip the breaker.
	for i := 0; i < 10; i++ {
		err := publisher.Publish(context.Background(), testDocument())
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypePublishRejected))
		assert.Contains(t, err.Error(), "version already known")
	}
	assert.Equal(t, 10.0, testutil.ToFloat64(metrics.UpstreamCalls.WithLabelValues("sdx-lc", "rejected")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.BreakerState.WithLabelValues("sdx-lc")))
}

func TestLCPublisher_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	publisher := NewLCPublisher(server.URL, NewHTTPClient(time.Second), zap.NewNop(), nil)
	err := publisher.Publish(context.Background(), testDocument())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
	assert.False(t, apperrors.IsType(err, apperrors.ErrorTypePublishRejected))
}
