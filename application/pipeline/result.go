package pipeline

import (
	"sdx-topology/application/ports"
	"sdx-topology/domain/events"
	"sdx-topology/domain/topology"
)

// Status is the outcome of handling one change event
type Status string

const (
	StatusPublished        Status = "published"
	StatusNotActionable    Status = "not_actionable"
	StatusValidationFailed Status = "validation_failed"
	StatusPublishFailed    Status = "publish_failed"
)

// Machine readable reasons carried by non-published results
const (
	ReasonIgnored               = "ignored_event"
	ReasonUpstreamUnavailable   = "upstream_unavailable"
	ReasonConversionError       = "conversion_error"
	ReasonValidationFailed      = "validation_failed"
	ReasonValidatorUnavailable  = "validator_unavailable"
	ReasonDownstreamUnavailable = "downstream_unavailable"
	ReasonPublishRejected       = "publish_rejected"
	ReasonPublishTimeout        = "publish_timeout"
)

// Result describes what happened to a change event. The version store is unchanged
// unless Status is StatusPublished.
type Result struct {
	Status  Status        `json:"status"`
	Action  events.Action `json:"-"`
	Reason  string        `json:"reason,omitempty"`
	Message string        `json:"message,omitempty"`

	// Document is set when Status is StatusPublished
	Document *topology.Document `json:"document,omitempty"`

	ValidationErrors []ports.ValidationError `json:"validation_errors,omitempty"`
}

// Published reports whether the document was acknowledged and committed
func (r Result) Published() bool {
	return r.Status == StatusPublished
}

func notActionable() Result {
	return Result{Status: StatusNotActionable, Action: events.Ignore, Reason: ReasonIgnored}
}

func publishFailed(action events.Action, reason string, err error) Result {
	return Result{Status: StatusPublishFailed, Action: action, Reason: reason, Message: err.Error()}
}
