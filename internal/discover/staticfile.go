// Package discover implements sweep.Discoverer against a static,
// operator-edited topology description rather than live SMP transport.
// The corpus this module was built from carries no InfiniBand MAD/SMP
// client; internal/issuer.Sender is the extension point a real
// transport would plug into (see DESIGN.md). This loader lets the
// sweep state machine, routing engines, and dump writers be exercised
// end to end against a hand-written fabric.
package discover

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	v1 "github.com/osmcore/osmcore/api/v1"
	"github.com/osmcore/osmcore/internal/subnet"
)

// NodeSpec describes one CA or switch in a topology file.
type NodeSpec struct {
	GUID     uint64 `json:"guid"`
	Type     string `json:"type"` // "switch" or "ca"
	BaseLID  uint16 `json:"base_lid"`
	NumPorts int    `json:"num_ports,omitempty"` // switches only; includes port 0
}

// LinkSpec connects two physical ports as remotes of one another.
type LinkSpec struct {
	AGUID uint64 `json:"a_guid"`
	APort int    `json:"a_port"`
	BGUID uint64 `json:"b_guid"`
	BPort int    `json:"b_port"`
}

// TopologyFile is the on-disk description a StaticFileDiscoverer loads.
type TopologyFile struct {
	MaxLID uint16     `json:"max_lid"`
	Nodes  []NodeSpec `json:"nodes"`
	Links  []LinkSpec `json:"links"`
}

// StaticFileDiscoverer reports the fabric described by one JSON file.
// Its LightSweep reports change exactly once, on the first tick after
// construction or after Reload is called; subsequent ticks report no
// change, the way a simulated fabric between operator edits behaves.
type StaticFileDiscoverer struct {
	path   string
	loaded bool
}

// NewStaticFileDiscoverer builds a discoverer reading path on its first
// heavy sweep.
func NewStaticFileDiscoverer(path string) *StaticFileDiscoverer {
	return &StaticFileDiscoverer{path: path}
}

// Reload marks the topology file as needing to be re-read on the next
// heavy sweep, simulating an operator edit.
func (d *StaticFileDiscoverer) Reload() { d.loaded = false }

func (d *StaticFileDiscoverer) LightSweep(_ context.Context, _ *subnet.Subnet) (bool, error) {
	return !d.loaded, nil
}

func (d *StaticFileDiscoverer) HeavySweep(_ context.Context, s *subnet.Subnet) error {
	topo, err := loadTopology(d.path)
	if err != nil {
		return err
	}
	if err := populate(s, topo); err != nil {
		return err
	}
	d.loaded = true
	return nil
}

// PeekMaxLID reads only the max_lid field, so callers can size a
// subnet.Subnet before handing it to a StaticFileDiscoverer.
func PeekMaxLID(path string) (subnet.LID, error) {
	topo, err := loadTopology(path)
	if err != nil {
		return 0, err
	}
	return subnet.LID(topo.MaxLID), nil
}

func loadTopology(path string) (*TopologyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topology file: %w", err)
	}
	var t TopologyFile
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse topology file: %w", err)
	}
	return &t, nil
}

func populate(s *subnet.Subnet, t *TopologyFile) error {
	s.Lock()
	defer s.Unlock()

	phys := make(map[subnet.GUID]map[int]*subnet.PhysicalPort, len(t.Nodes))

	for _, ns := range t.Nodes {
		guid := subnet.GUID(ns.GUID)
		switch ns.Type {
		case "switch":
			n := &subnet.Node{
				GUID:    guid,
				Type:    v1.NodeTypeSwitch,
				BaseLID: subnet.LID(ns.BaseLID),
				Ports: map[int]*subnet.Port{
					0: {GUID: guid, NodeGUID: guid, Num: 0, Base: subnet.LID(ns.BaseLID), LMC: 0},
				},
				PhysicalPorts: make(map[int]*subnet.PhysicalPort),
			}
			numPorts := ns.NumPorts
			if numPorts == 0 {
				numPorts = 1
			}
			for i := 0; i < numPorts; i++ {
				n.PhysicalPorts[i] = &subnet.PhysicalPort{NodeGUID: guid, Num: i, State: v1.LinkStateActive}
			}
			sw := subnet.NewSwitch(n, s.MaxLIDHO(), numPorts)
			s.AddNode(n)
			s.AddSwitch(sw)
			if err := s.AddPort(n.Ports[0]); err != nil {
				return fmt.Errorf("add port for switch 0x%x: %w", ns.GUID, err)
			}
			phys[guid] = n.PhysicalPorts

		case "ca":
			port := &subnet.Port{GUID: guid, NodeGUID: guid, Num: 0, Base: subnet.LID(ns.BaseLID), LMC: 0}
			n := &subnet.Node{
				GUID:          guid,
				Type:          v1.NodeTypeCA,
				BaseLID:       subnet.LID(ns.BaseLID),
				Ports:         map[int]*subnet.Port{0: port},
				PhysicalPorts: map[int]*subnet.PhysicalPort{0: {NodeGUID: guid, Num: 0, State: v1.LinkStateActive}},
			}
			s.AddNode(n)
			if err := s.AddPort(port); err != nil {
				return fmt.Errorf("add port for CA 0x%x: %w", ns.GUID, err)
			}
			phys[guid] = n.PhysicalPorts

		default:
			return fmt.Errorf("unknown node type %q for guid 0x%x", ns.Type, ns.GUID)
		}
	}

	for _, l := range t.Links {
		aPorts, ok := phys[subnet.GUID(l.AGUID)]
		if !ok {
			return fmt.Errorf("link references unknown node 0x%x", l.AGUID)
		}
		bPorts, ok := phys[subnet.GUID(l.BGUID)]
		if !ok {
			return fmt.Errorf("link references unknown node 0x%x", l.BGUID)
		}
		a, ok := aPorts[l.APort]
		if !ok {
			return fmt.Errorf("node 0x%x has no port %d", l.AGUID, l.APort)
		}
		b, ok := bPorts[l.BPort]
		if !ok {
			return fmt.Errorf("node 0x%x has no port %d", l.BGUID, l.BPort)
		}
		a.Remote, b.Remote = b, a
	}
	return nil
}
