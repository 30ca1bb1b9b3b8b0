package config

import (
	"fmt"
	"os"

	"sdx-topology/domain/events"

	"gopkg.in/yaml.v3"
)

// LoadEventSets reads {administrative: [...], operational: [...]} from path and checks
// that the two sets are disjoint. An empty path yields the default sets.
func LoadEventSets(path string) (events.EventSets, error) {
	if path == "" {
		return events.DefaultEventSets(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return events.EventSets{}, fmt.Errorf("failed to read event sets %s: %w", path, err)
	}

	var sets events.EventSets
	if err := yaml.Unmarshal(data, &sets); err != nil {
		return events.EventSets{}, fmt.Errorf("failed to parse event sets %s: %w", path, err)
	}
	if len(sets.Administrative) == 0 && len(sets.Operational) == 0 {
		return events.EventSets{}, fmt.Errorf("event sets %s are empty", path)
	}
	if overlap := sets.Overlap(); len(overlap) > 0 {
		return events.EventSets{}, fmt.Errorf("event sets %s are not disjoint: %v", path, overlap)
	}
	return sets, nil
}

// LoadClassifier builds a classifier from the sets at path
func LoadClassifier(path string) (*events.Classifier, error) {
	sets, err := LoadEventSets(path)
	if err != nil {
		return nil, err
	}
	return events.NewClassifier(sets)
}
