package ports

import (
	"context"
	"time"

	"sdx-topology/domain/events"
	"sdx-topology/domain/topology"
)

// VersionStore persists the VersionRecord of one exchange point.
// Implementations must never expose a partially written record.
type VersionStore interface {
	// Read returns the current record, or a STORE_NOT_INITIALIZED error if none exists
	Read(ctx context.Context) (topology.VersionRecord, error)

	// Initialize seeds the version 0 record if none exists and returns the stored record.
	// An existing record is never overwritten.
	Initialize(ctx context.Context, identity topology.Identity, timestamp string) (topology.VersionRecord, error)

	// Commit atomically replaces base with next. It fails with a version_conflict
	// CONFLICT error when the stored record no longer has the version and timestamp of
	// base, so a writer whose lock lease ran out cannot overwrite a newer commit.
	Commit(ctx context.Context, base, next topology.VersionRecord) error
}

// EventLog is the append-only list of actionable event names
type EventLog interface {
	Append(ctx context.Context, name string) error
	List(ctx context.Context) ([]string, error)
}

// TopologySource fetches the current upstream (Kytos) topology
type TopologySource interface {
	Fetch(ctx context.Context) (topology.ForeignTopology, error)
}

// ValidationError is a single schema violation reported by the validator
type ValidationError struct {
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

// SchemaValidator checks a document against the SDX topology schema.
// An empty result means the document is valid.
type SchemaValidator interface {
	Validate(ctx context.Context, doc topology.Document) ([]ValidationError, error)
}

// DownstreamPublisher sends a document to the SDX Local Controller.
// A nil error is an acknowledgement.
type DownstreamPublisher interface {
	Publish(ctx context.Context, doc topology.Document) error
}

// Locker serializes pipeline runs across replicas
type Locker interface {
	AcquireLock(ctx context.Context, resourceID string, ttl time.Duration) (Lock, error)
}

// Lock is a held lock
type Lock interface {
	Release(ctx context.Context) error
}

// EventPublisher emits domain events to other systems
type EventPublisher interface {
	Publish(ctx context.Context, event events.DomainEvent) error
}
