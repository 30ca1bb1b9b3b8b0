package events

import "time"

// DomainEvent is something that has happened to a topology
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

// EventTypeTopologyPublished is the detail type of TopologyPublished
const EventTypeTopologyPublished = "sdx.topology.published"

// TopologyPublished is raised after a document has been acknowledged downstream and committed
type TopologyPublished struct {
	BaseEvent
	TopologyID        string `json:"topology_id"`
	TopologyVersion   int    `json:"topology_version"`
	TopologyTimestamp string `json:"topology_timestamp"`
	Trigger           string `json:"trigger"`
	Action            string `json:"action"`
	Nodes             int    `json:"nodes"`
	Links             int    `json:"links"`
}

// NewTopologyPublished creates a TopologyPublished event
func NewTopologyPublished(topologyID string, version int, timestamp string, trigger ChangeEvent, action Action, nodes, links int, at time.Time) TopologyPublished {
	return TopologyPublished{
		BaseEvent: BaseEvent{
			AggregateID: topologyID,
			EventType:   EventTypeTopologyPublished,
			Timestamp:   at,
			Version:     1,
		},
		TopologyID:        topologyID,
		TopologyVersion:   version,
		TopologyTimestamp: timestamp,
		Trigger:           trigger.Name,
		Action:            action.String(),
		Nodes:             nodes,
		Links:             links,
	}
}
