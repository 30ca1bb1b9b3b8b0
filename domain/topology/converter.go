package topology

import (
	"fmt"
	"strconv"

	apperrors "sdx-topology/pkg/errors"

	"github.com/tidwall/gjson"
)

// ForeignTopology is the raw Kytos topology object (the value under the "topology" key)
type ForeignTopology []byte

// ConvertParams carries everything besides the foreign topology that ends up in a document
type ConvertParams struct {
	Version      int
	Timestamp    string
	ModelVersion string
	OXPName      string
	OXPURL       string
}

// portTypes maps a port speed in Gbps to its SDX port type
var portTypes = map[int]string{
	1:   "1GE",
	10:  "10GE",
	25:  "25GE",
	40:  "40GE",
	50:  "50GE",
	100: "100GE",
	400: "400GE",
}

// Converter turns Kytos topologies into SDX documents. It holds no state, so the same
// inputs always produce the same document. Nodes, ports and links keep the order in
// which they appear in the Kytos JSON.
type Converter struct{}

// NewConverter creates a converter
func NewConverter() *Converter {
	return &Converter{}
}

type portRef struct {
	id        string
	nodeName  string
	portName  string
	bandwidth float64
}

// Convert builds the SDX document for foreign. A malformed topology yields a
// conversion error and no document.
func (c *Converter) Convert(foreign ForeignTopology, params ConvertParams) (Document, error) {
	if !gjson.ValidBytes(foreign) {
		return Document{}, apperrors.NewConversionError("foreign topology is not valid JSON")
	}

	root := gjson.ParseBytes(foreign)
	switches := root.Get("switches")
	if !switches.IsObject() {
		return Document{}, apperrors.NewConversionError("foreign topology has no switches object")
	}
	links := root.Get("links")
	if links.Exists() && !links.IsObject() {
		return Document{}, apperrors.NewConversionError("foreign topology links is not an object")
	}

	ports := make(map[string]portRef)
	nodes, err := c.convertNodes(switches, params.OXPURL, ports)
	if err != nil {
		return Document{}, err
	}

	sdxLinks, err := c.convertLinks(links, params.OXPURL, ports)
	if err != nil {
		return Document{}, err
	}

	return Document{
		ID:           URNPrefix + "topology:" + params.OXPURL,
		Name:         params.OXPName,
		Version:      params.Version,
		ModelVersion: params.ModelVersion,
		Timestamp:    params.Timestamp,
		Nodes:        nodes,
		Links:        sdxLinks,
	}, nil
}

func (c *Converter) convertNodes(switches gjson.Result, oxpURL string, ports map[string]portRef) ([]Node, error) {
	nodes := []Node{}
	var convErr error
	// node and port URNs are built from names, which Kytos does not keep unique
	owners := make(map[string]string)

	switches.ForEach(func(key, sw gjson.Result) bool {
		switchID := firstString(sw, "id", "dpid")
		if switchID == "" {
			convErr = apperrors.NewConversionError(fmt.Sprintf("switch %q has no id", key.String()))
			return false
		}

		nodeName := firstString(sw, "metadata.node_name", "name")
		if nodeName == "" {
			nodeName = switchID
		}

		node := Node{
			ID:   fmt.Sprintf("%snode:%s:%s", URNPrefix, oxpURL, nodeName),
			Name: nodeName,
			Location: Location{
				Address:     sw.Get("metadata.address").String(),
				Latitude:    sw.Get("metadata.lat").Float(),
				Longitude:   sw.Get("metadata.lng").Float(),
				ISO3166Lvl4: sw.Get("metadata.iso3166_2_lvl4").String(),
			},
			Ports:  []Port{},
			Status: status(sw),
			State:  state(sw),
		}
		if owner, dup := owners[node.ID]; dup {
			convErr = apperrors.NewConversionError(fmt.Sprintf(
				"switches %q and %q share node id %s", owner, switchID, node.ID))
			return false
		}
		owners[node.ID] = switchID

		sw.Get("interfaces").ForEach(func(intfKey, intf gjson.Result) bool {
			intfID := firstString(intf, "id")
			if intfID == "" {
				intfID = intfKey.String()
			}

			portName := firstString(intf, "metadata.port_name", "name")
			if portName == "" {
				if num := intf.Get("port_number"); num.Exists() {
					portName = strconv.FormatInt(num.Int(), 10)
				} else {
					portName = intfID
				}
			}

			bandwidth := speedToGbps(intf.Get("speed").Float())
			port := Port{
				ID:     fmt.Sprintf("%sport:%s:%s:%s", URNPrefix, oxpURL, nodeName, portName),
				Name:   portName,
				Node:   node.ID,
				Type:   portType(bandwidth),
				MTU:    intOr(intf.Get("metadata.mtu"), DefaultPortMTU),
				NNI:    intf.Get("metadata.sdx_nni").String(),
				Status: status(intf),
				State:  state(intf),
			}
			if owner, dup := owners[port.ID]; dup {
				convErr = apperrors.NewConversionError(fmt.Sprintf(
					"interfaces %q and %q share port id %s", owner, intfID, port.ID))
				return false
			}
			owners[port.ID] = intfID
			node.Ports = append(node.Ports, port)
			ports[intfID] = portRef{
				id:        port.ID,
				nodeName:  nodeName,
				portName:  portName,
				bandwidth: bandwidth,
			}
			return true
		})
		if convErr != nil {
			return false
		}

		nodes = append(nodes, node)
		return true
	})

	if convErr != nil {
		return nil, convErr
	}
	return nodes, nil
}

func (c *Converter) convertLinks(links gjson.Result, oxpURL string, ports map[string]portRef) ([]Link, error) {
	sdxLinks := []Link{}
	var convErr error

	links.ForEach(func(key, link gjson.Result) bool {
		endpointA := link.Get("endpoint_a.id").String()
		endpointB := link.Get("endpoint_b.id").String()
		if endpointA == "" || endpointB == "" {
			convErr = apperrors.NewConversionError(fmt.Sprintf("link %q is missing an endpoint", key.String()))
			return false
		}

		portA, okA := ports[endpointA]
		portB, okB := ports[endpointB]
		if !okA || !okB {
			convErr = apperrors.NewConversionError(
				fmt.Sprintf("link %q references an unknown interface", key.String()))
			return false
		}

		name := link.Get("metadata.link_name").String()
		if name == "" {
			name = fmt.Sprintf("%s/%s_%s/%s", portA.nodeName, portA.portName, portB.nodeName, portB.portName)
		}

		bandwidth := portA.bandwidth
		if portB.bandwidth < bandwidth {
			bandwidth = portB.bandwidth
		}

		availability := 100.0
		if v := link.Get("metadata.availability"); v.Exists() {
			availability = v.Float()
		}

		sdxLinks = append(sdxLinks, Link{
			ID:                fmt.Sprintf("%slink:%s:%s", URNPrefix, oxpURL, name),
			Name:              name,
			Ports:             []string{portA.id, portB.id},
			Type:              LinkTypeIntra,
			Bandwidth:         bandwidth,
			ResidualBandwidth: bandwidth,
			Latency:           link.Get("metadata.latency").Float(),
			PacketLoss:        link.Get("metadata.packet_loss").Float(),
			Availability:      availability,
			Status:            status(link),
			State:             state(link),
		})
		return true
	})

	if convErr != nil {
		return nil, convErr
	}
	return sdxLinks, nil
}

func firstString(r gjson.Result, paths ...string) string {
	for _, path := range paths {
		if v := r.Get(path); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func status(r gjson.Result) string {
	if r.Get("active").Bool() {
		return StatusUp
	}
	return StatusDown
}

func state(r gjson.Result) string {
	if r.Get("enabled").Bool() {
		return StateEnabled
	}
	return StateDisabled
}

func intOr(r gjson.Result, fallback int) int {
	if !r.Exists() || r.Int() <= 0 {
		return fallback
	}
	return int(r.Int())
}

// speedToGbps converts a Kytos interface speed (bytes per second) to Gbps
func speedToGbps(bytesPerSecond float64) float64 {
	return bytesPerSecond * 8 / 1e9
}

func portType(gbps float64) string {
	if t, ok := portTypes[int(gbps+0.5)]; ok && gbps > 0 {
		return t
	}
	return PortTypeOther
}
