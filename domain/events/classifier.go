package events

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

// EventSets lists the administrative (version incrementing) and operational
// (timestamp only) event names
type EventSets struct {
	Administrative []string `yaml:"administrative" json:"administrative"`
	Operational    []string `yaml:"operational" json:"operational"`
}

// DefaultEventSets returns the event names emitted by the Kytos topology NApp
func DefaultEventSets() EventSets {
	return EventSets{
		Administrative: []string{
			"kytos/topology.switch.enabled",
			"kytos/topology.switch.disabled",
			"kytos/topology.switch.new",
			"kytos/topology.switch.deleted",
			"kytos/topology.link_up",
			"kytos/topology.link_down",
			"kytos/topology.link.added",
			"kytos/topology.link.deleted",
			"kytos/topology.interface.created",
			"kytos/topology.interface.deleted",
			"kytos/topology.port.created",
			"kytos/topology.port.deleted",
		},
		Operational: []string{
			"kytos/topology.switch_metrics",
			"kytos/topology.link_metrics",
			"kytos/topology.port_metrics",
			"kytos/topology.updated",
			"kytos/topology.topology_loaded",
		},
	}
}

// Overlap returns the names present in both sets, sorted
func (s EventSets) Overlap() []string {
	admin := make(map[string]struct{}, len(s.Administrative))
	for _, name := range s.Administrative {
		admin[name] = struct{}{}
	}

	seen := make(map[string]struct{})
	var overlap []string
	for _, name := range s.Operational {
		if _, ok := admin[name]; !ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		overlap = append(overlap, name)
	}
	sort.Strings(overlap)
	return overlap
}

// Classifier maps event names to actions. It is immutable once built.
type Classifier struct {
	administrative map[string]struct{}
	operational    map[string]struct{}
}

// NewClassifier builds a classifier from sets. The sets must be disjoint.
func NewClassifier(sets EventSets) (*Classifier, error) {
	if overlap := sets.Overlap(); len(overlap) > 0 {
		return nil, fmt.Errorf("event sets are not disjoint: %s", strings.Join(overlap, ", "))
	}

	c := &Classifier{
		administrative: make(map[string]struct{}, len(sets.Administrative)),
		operational:    make(map[string]struct{}, len(sets.Operational)),
	}
	for _, name := range sets.Administrative {
		c.administrative[name] = struct{}{}
	}
	for _, name := range sets.Operational {
		c.operational[name] = struct{}{}
	}
	return c, nil
}

// Classify decides the action for event. Every event gets exactly one action.
func (c *Classifier) Classify(event ChangeEvent) Action {
	if _, ok := c.administrative[event.Name]; ok {
		return Increment
	}
	if _, ok := c.operational[event.Name]; ok && event.HasTimestamp() {
		return Refresh
	}
	return Ignore
}

// Sets returns the configured names, sorted
func (c *Classifier) Sets() EventSets {
	return EventSets{
		Administrative: sortedKeys(c.administrative),
		Operational:    sortedKeys(c.operational),
	}
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SwappableClassifier delegates to a classifier that can be replaced while in use.
// Each Classify call sees either the old or the new sets, never a mix.
type SwappableClassifier struct {
	current atomic.Pointer[Classifier]
}

// NewSwappableClassifier wraps initial
func NewSwappableClassifier(initial *Classifier) *SwappableClassifier {
	s := &SwappableClassifier{}
	s.current.Store(initial)
	return s
}

// Classify uses the current classifier
func (s *SwappableClassifier) Classify(event ChangeEvent) Action {
	return s.current.Load().Classify(event)
}

// Swap installs next and returns the classifier it replaced
func (s *SwappableClassifier) Swap(next *Classifier) *Classifier {
	return s.current.Swap(next)
}

// Current returns the classifier in use
func (s *SwappableClassifier) Current() *Classifier {
	return s.current.Load()
}
