// Package rest exposes the topology service over HTTP.
package rest

import (
	"context"
	"net/http"
	"time"

	"sdx-topology/docs"
	"sdx-topology/interfaces/http/rest/handlers"
	"sdx-topology/interfaces/http/rest/middleware"
	"sdx-topology/pkg/common"
	apperrors "sdx-topology/pkg/errors"
	"sdx-topology/pkg/observability"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

const readinessTimeout = 2 * time.Second

// Options toggles optional parts of the router
type Options struct {
	EnableCORS    bool
	EnableMetrics bool
	Debug         bool
}

// Router creates and configures the HTTP router
type Router struct {
	service handlers.TopologyService
	metrics *observability.Collector
	options Options
	logger  *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(service handlers.TopologyService, metrics *observability.Collector, options Options, logger *zap.Logger) *Router {
	return &Router{
		service: service,
		metrics: metrics,
		options: options,
		logger:  logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()
	errorHandler := apperrors.NewErrorHandler(rt.logger, rt.options.Debug)

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(errorHandler.Middleware)
	router.Use(middleware.Logger(rt.logger))
	if rt.options.EnableMetrics {
		router.Use(middleware.Metrics(rt.metrics))
	}

	if rt.options.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errorHandler.HandleStatus(w, r, http.StatusNotFound, "route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		errorHandler.HandleStatus(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.options.EnableMetrics {
		router.Handle("/metrics", rt.metrics.Handler())
	}

	router.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(docs.SwaggerInfo.ReadDoc()))
	})

	topologyHandler := handlers.NewTopologyHandler(rt.service, errorHandler, rt.logger)
	router.Route("/api/v1/topology", func(r chi.Router) {
		r.Get("/", topologyHandler.GetTopology)
		r.Get("/record", topologyHandler.GetRecord)
		r.Get("/events", topologyHandler.ListEvents)
		r.Post("/events", topologyHandler.SubmitEvent)
		r.Post("/validate", topologyHandler.ValidateTopology)
		r.Get("/convert", topologyHandler.ConvertTopology)
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, http.StatusOK, common.StatusResponse{Status: "healthy"})
}

// readinessCheck reports ready once the version store has been initialized
func (rt *Router) readinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	if _, err := rt.service.GetRecord(ctx); err != nil {
		check := "unavailable"
		if apperrors.IsStoreNotInitialized(err) {
			check = "not initialized"
		}
		common.RespondJSON(w, http.StatusServiceUnavailable, common.StatusResponse{
			Status: "not ready",
			Checks: map[string]string{"store": check},
		})
		return
	}
	common.RespondJSON(w, http.StatusOK, common.StatusResponse{
		Status: "ready",
		Checks: map[string]string{"store": "ok"},
	})
}
