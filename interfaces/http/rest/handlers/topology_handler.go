package handlers

import (
	"context"
	"errors"
	"net/http"

	"sdx-topology/application/pipeline"
	"sdx-topology/application/ports"
	"sdx-topology/domain/events"
	"sdx-topology/domain/topology"
	"sdx-topology/pkg/common"
	apperrors "sdx-topology/pkg/errors"
	"sdx-topology/pkg/utils"

	"go.uber.org/zap"
)

// TopologyService is what the handler needs from the application layer
type TopologyService interface {
	GetRecord(ctx context.Context) (topology.VersionRecord, error)
	CurrentDocument(ctx context.Context) (topology.Document, error)
	ListEvents(ctx context.Context) ([]string, error)
	HandleEvent(ctx context.Context, event events.ChangeEvent) (pipeline.Result, error)
	ValidateDocument(ctx context.Context, doc topology.Document) ([]ports.ValidationError, error)
	PreviewConversion(ctx context.Context) (topology.Document, error)
}

// TopologyHandler handles topology-related HTTP requests
type TopologyHandler struct {
	service TopologyService
	errors  *apperrors.ErrorHandler
	logger  *zap.Logger
}

// NewTopologyHandler creates a new topology handler
func NewTopologyHandler(service TopologyService, errorHandler *apperrors.ErrorHandler, logger *zap.Logger) *TopologyHandler {
	return &TopologyHandler{
		service: service,
		errors:  errorHandler,
		logger:  logger,
	}
}

// ValidationResponse is the body of POST /topology/validate
type ValidationResponse struct {
	Valid  bool                    `json:"valid"`
	Errors []ports.ValidationError `json:"errors,omitempty"`
}

// GetTopology handles GET /topology and returns the last published document
func (h *TopologyHandler) GetTopology(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.CurrentDocument(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, doc)
}

// GetRecord handles GET /topology/record
func (h *TopologyHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.GetRecord(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, record)
}

// ListEvents handles GET /topology/events
func (h *TopologyHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	names, err := h.service.ListEvents(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, names)
}

// SubmitEvent handles POST /topology/events. Published and not actionable events both
// answer with the current document; failed ones answer 400 with the result.
func (h *TopologyHandler) SubmitEvent(w http.ResponseWriter, r *http.Request) {
	var event events.ChangeEvent
	if err := common.ParseJSONBody(w, r, &event, common.MaxBodyBytes); err != nil {
		h.errors.Handle(w, r, apperrors.NewValidationError("Invalid request body: "+err.Error()))
		return
	}
	if err := utils.ValidateStruct(event); err != nil {
		h.errors.Handle(w, r, apperrors.NewValidationError(err.Error()))
		return
	}

	result, err := h.service.HandleEvent(r.Context(), event)
	if err != nil {
		h.errors.Handle(w, r, pipelineError(err))
		return
	}

	switch result.Status {
	case pipeline.StatusPublished:
		common.RespondJSON(w, http.StatusOK, result.Document)
	case pipeline.StatusNotActionable:
		doc, err := h.service.CurrentDocument(r.Context())
		if err != nil {
			h.errors.Handle(w, r, err)
			return
		}
		common.RespondJSON(w, http.StatusOK, doc)
	default:
		h.logger.Info("Change event not published",
			zap.String("event", event.Name),
			zap.String("status", string(result.Status)),
			zap.String("reason", result.Reason),
		)
		common.RespondJSON(w, http.StatusBadRequest, result)
	}
}

// ValidateTopology handles POST /topology/validate
func (h *TopologyHandler) ValidateTopology(w http.ResponseWriter, r *http.Request) {
	var doc topology.Document
	if err := common.ParseJSONBody(w, r, &doc, common.MaxBodyBytes); err != nil {
		h.errors.Handle(w, r, apperrors.NewValidationError("Invalid request body: "+err.Error()))
		return
	}

	violations, err := h.service.ValidateDocument(r.Context(), doc)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if len(violations) > 0 {
		common.RespondJSON(w, http.StatusBadRequest, ValidationResponse{Valid: false, Errors: violations})
		return
	}
	common.RespondJSON(w, http.StatusOK, ValidationResponse{Valid: true})
}

// ConvertTopology handles GET /topology/convert
func (h *TopologyHandler) ConvertTopology(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.PreviewConversion(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, doc)
}

// pipelineError gives the fatal pipeline errors that are not AppErrors an HTTP meaning
func pipelineError(err error) error {
	switch {
	case apperrors.IsAppError(err):
		return err
	case errors.Is(err, pipeline.ErrClosed):
		return apperrors.NewUnavailableError("publication pipeline").WithCause(err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return apperrors.NewTimeoutError("handle change event").WithCause(err)
	}
	return err
}
