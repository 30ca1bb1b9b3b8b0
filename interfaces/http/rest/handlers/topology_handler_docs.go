package handlers

// OpenAPI annotations for TopologyHandler. docs/docs.go is generated from these with
// `swag init -g cmd/api/main.go -o docs --parseDependency`.

// GetTopology returns the last published topology document
// @Summary Current topology
// @Description Returns the document built from the version record. Before the first publication it has no nodes or links.
// @Tags topology
// @Produce json
// @Success 200 {object} topology.Document "Current topology"
// @Failure 401 {object} errors.ErrorResponse "Version store not initialized"
// @Failure 500 {object} errors.ErrorResponse "Store failure"
// @Router /topology [get]

// GetRecord returns the stored version record
// @Summary Version record
// @Tags topology
// @Produce json
// @Success 200 {object} topology.VersionRecord "Stored version record"
// @Failure 401 {object} errors.ErrorResponse "Version store not initialized"
// @Router /topology/record [get]

// ListEvents returns the names of the change events that produced a publication
// @Summary Event log
// @Tags events
// @Produce json
// @Success 200 {array} string "Event names, oldest first"
// @Router /topology/events [get]

// SubmitEvent runs a change event through the publication pipeline
// @Summary Submit a change event
// @Description Administrative and topology events publish version+1. Operational events with an ISO-8601 timestamp republish the current version. Other events are not actionable and answer with the current document.
// @Tags events
// @Accept json
// @Produce json
// @Param event body events.ChangeEvent true "Change event"
// @Success 200 {object} topology.Document "Published or current document"
// @Failure 400 {object} pipeline.Result "Validation or publication failed"
// @Failure 401 {object} errors.ErrorResponse "Version store not initialized"
// @Failure 409 {object} errors.ErrorResponse "Another replica committed a newer version"
// @Failure 503 {object} errors.ErrorResponse "Pipeline closed or lock unavailable"
// @Router /topology/events [post]

// ValidateTopology checks a document against the SDX schema validator
// @Summary Validate a document
// @Tags topology
// @Accept json
// @Produce json
// @Param document body topology.Document true "Topology document"
// @Success 200 {object} handlers.ValidationResponse "Document is valid"
// @Failure 400 {object} handlers.ValidationResponse "Schema violations"
// @Failure 503 {object} errors.ErrorResponse "Validator unavailable"
// @Router /topology/validate [post]

// ConvertTopology converts the live Kytos topology without publishing it
// @Summary Preview conversion
// @Tags topology
// @Produce json
// @Success 200 {object} topology.Document "Converted document"
// @Failure 400 {object} errors.ErrorResponse "Upstream unavailable or conversion failed"
// @Router /topology/convert [get]
