package events

// ChangeEvent is a notification from the upstream controller that its topology may have changed
type ChangeEvent struct {
	Name string `json:"name" validate:"required"`
	// Timestamp is optional. Operational events without one are not actionable.
	Timestamp *string `json:"timestamp,omitempty" validate:"omitnil,sdx_timestamp"`
}

// NewChangeEvent creates an event without a timestamp
func NewChangeEvent(name string) ChangeEvent {
	return ChangeEvent{Name: name}
}

// NewTimedChangeEvent creates an event carrying the upstream timestamp
func NewTimedChangeEvent(name, timestamp string) ChangeEvent {
	return ChangeEvent{Name: name, Timestamp: &timestamp}
}

// HasTimestamp reports whether the event carries a timestamp
func (e ChangeEvent) HasTimestamp() bool {
	return e.Timestamp != nil
}

// Action is what the pipeline does in response to an event
type Action int

const (
	// Ignore leaves the store and event log untouched
	Ignore Action = iota
	// Increment publishes a new version
	Increment
	// Refresh republishes the current version with a new timestamp
	Refresh
)

func (a Action) String() string {
	switch a {
	case Increment:
		return "increment"
	case Refresh:
		return "refresh"
	default:
		return "ignore"
	}
}
