package topology

import (
	"fmt"
	"strings"
)

// URNPrefix prefixes every SDX identifier
const URNPrefix = "urn:sdx:"

// RecordSchemaVersion is bumped whenever the persisted VersionRecord layout changes
const RecordSchemaVersion = 1

// Status and state values shared by nodes, ports and links
const (
	StatusUp       = "up"
	StatusDown     = "down"
	StateEnabled   = "enabled"
	StateDisabled  = "disabled"
	LinkTypeIntra  = "intra"
	PortTypeOther  = "Other"
	DefaultPortMTU = 1500
)

// Location is the geographic placement of a node
type Location struct {
	Address     string  `json:"address"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	ISO3166Lvl4 string  `json:"iso3166_2_lvl4"`
}

// Port is an SDX port owned by a node
type Port struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Node   string `json:"node"`
	Type   string `json:"type"`
	MTU    int    `json:"mtu"`
	NNI    string `json:"nni"`
	Status string `json:"status"`
	State  string `json:"state"`
}

// Node is an SDX node (a switch of the exchange point)
type Node struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Location Location `json:"location"`
	Ports    []Port   `json:"ports"`
	Status   string   `json:"status"`
	State    string   `json:"state"`
}

// Link is an SDX intra-domain link between two ports
type Link struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Ports             []string `json:"ports"`
	Type              string   `json:"type"`
	Bandwidth         float64  `json:"bandwidth"`
	ResidualBandwidth float64  `json:"residual_bandwidth"`
	Latency           float64  `json:"latency"`
	PacketLoss        float64  `json:"packet_loss"`
	Availability      float64  `json:"availability"`
	Status            string   `json:"status"`
	State             string   `json:"state"`
}

// Document is the canonical SDX topology published downstream
type Document struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Version      int    `json:"version"`
	ModelVersion string `json:"model_version"`
	Timestamp    string `json:"timestamp"`
	Nodes        []Node `json:"nodes"`
	Links        []Link `json:"links"`
}

// Identity names the exchange point. It is supplied once at bootstrap and never changes.
type Identity struct {
	OXPName      string `json:"oxp_name"`
	OXPURL       string `json:"oxp_url"`
	ModelVersion string `json:"model_version"`
}

// Validate checks that every identity field is present
func (i Identity) Validate() error {
	var missing []string
	if i.OXPName == "" {
		missing = append(missing, "oxp_name")
	}
	if i.OXPURL == "" {
		missing = append(missing, "oxp_url")
	}
	if i.ModelVersion == "" {
		missing = append(missing, "model_version")
	}
	if len(missing) > 0 {
		return fmt.Errorf("identity is missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// TopologyID returns the topology URN of the exchange point
func (i Identity) TopologyID() string {
	return URNPrefix + "topology:" + i.OXPURL
}

// VersionRecord is the durable snapshot of the last successfully published topology.
// ID, Name, URL and ModelVersion are written once by NewVersionRecord.
type VersionRecord struct {
	SchemaVersion int    `json:"schema_version"`
	ID            string `json:"id"`
	Name          string `json:"name"`
	URL           string `json:"url"`
	Version       int    `json:"version"`
	ModelVersion  string `json:"model_version"`
	Timestamp     string `json:"timestamp"`
	Nodes         []Node `json:"nodes"`
	Links         []Link `json:"links"`
}

// NewVersionRecord seeds the version 0 record of an exchange point
func NewVersionRecord(identity Identity, timestamp string) VersionRecord {
	return VersionRecord{
		SchemaVersion: RecordSchemaVersion,
		ID:            identity.TopologyID(),
		Name:          identity.OXPName,
		URL:           identity.OXPURL,
		Version:       0,
		ModelVersion:  identity.ModelVersion,
		Timestamp:     timestamp,
		Nodes:         []Node{},
		Links:         []Link{},
	}
}

// Identity returns the immutable identity fields of the record
func (r VersionRecord) Identity() Identity {
	return Identity{
		OXPName:      r.Name,
		OXPURL:       r.URL,
		ModelVersion: r.ModelVersion,
	}
}

// Document renders the record as the last published document
func (r VersionRecord) Document() Document {
	return Document{
		ID:           r.ID,
		Name:         r.Name,
		Version:      r.Version,
		ModelVersion: r.ModelVersion,
		Timestamp:    r.Timestamp,
		Nodes:        nonNilNodes(r.Nodes),
		Links:        nonNilLinks(r.Links),
	}
}

// Advance returns the record that results from publishing doc.
// Identity fields always come from the receiver.
func (r VersionRecord) Advance(doc Document) VersionRecord {
	next := r
	next.SchemaVersion = RecordSchemaVersion
	next.Version = doc.Version
	next.Timestamp = doc.Timestamp
	next.Nodes = nonNilNodes(doc.Nodes)
	next.Links = nonNilLinks(doc.Links)
	return next
}

// SameRevision reports whether r and other carry the same version and timestamp.
// Every commit changes at least one of the two.
func (r VersionRecord) SameRevision(other VersionRecord) bool {
	return r.Version == other.Version && r.Timestamp == other.Timestamp
}

// Validate rejects records that cannot have been produced by NewVersionRecord
func (r VersionRecord) Validate() error {
	switch {
	case r.ID == "":
		return fmt.Errorf("version record has no id")
	case r.Version < 0:
		return fmt.Errorf("version record has negative version %d", r.Version)
	case r.SchemaVersion > RecordSchemaVersion:
		return fmt.Errorf("version record schema %d is newer than supported %d", r.SchemaVersion, RecordSchemaVersion)
	}
	return nil
}

func nonNilNodes(nodes []Node) []Node {
	if nodes == nil {
		return []Node{}
	}
	return nodes
}

func nonNilLinks(links []Link) []Link {
	if links == nil {
		return []Link{}
	}
	return links
}
