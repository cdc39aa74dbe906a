// Package subnettest builds in-memory subnet.Subnet fixtures for
// routing-engine and sweep-controller tests, so those tests never need
// a real fabric or SMP transport.
package subnettest

import (
	v1 "github.com/osmcore/osmcore/api/v1"
	"github.com/osmcore/osmcore/internal/subnet"
)

// Builder assembles a small fixed topology one link at a time.
type Builder struct {
	s        *subnet.Subnet
	switches map[subnet.GUID]*subnet.Switch
	nodes    map[subnet.GUID]*subnet.Node
	numPorts map[subnet.GUID]int
}

// New starts a builder whose subnet can address LIDs up to maxLID.
func New(maxLID subnet.LID) *Builder {
	return &Builder{
		s:        subnet.New(maxLID),
		switches: make(map[subnet.GUID]*subnet.Switch),
		nodes:    make(map[subnet.GUID]*subnet.Node),
		numPorts: make(map[subnet.GUID]int),
	}
}

// AddSwitch registers a switch node with base LID lid and numPorts
// physical ports (including port 0).
func (b *Builder) AddSwitch(guid subnet.GUID, lid subnet.LID, numPorts int) *subnet.Switch {
	n := &subnet.Node{
		GUID:          guid,
		Type:          v1.NodeTypeSwitch,
		BaseLID:       lid,
		Ports:         map[int]*subnet.Port{0: {GUID: guid, NodeGUID: guid, Num: 0, Base: lid, LMC: 0}},
		PhysicalPorts: make(map[int]*subnet.PhysicalPort),
	}
	for i := 0; i < numPorts; i++ {
		n.PhysicalPorts[i] = &subnet.PhysicalPort{NodeGUID: guid, Num: i, State: v1.LinkStateActive}
	}
	sw := subnet.NewSwitch(n, b.s.MaxLIDHO(), numPorts)

	b.s.Lock()
	b.s.AddNode(n)
	b.s.AddSwitch(sw)
	_ = b.s.AddPort(n.Ports[0])
	b.s.Unlock()

	b.switches[guid] = sw
	b.nodes[guid] = n
	b.numPorts[guid] = numPorts
	return sw
}

// AddCA registers a single-port channel adapter owning lid.
func (b *Builder) AddCA(guid subnet.GUID, lid subnet.LID) *subnet.Node {
	return b.AddCAWithLMC(guid, lid, 0)
}

// AddCAWithLMC registers a single-port channel adapter owning the LID
// range [lid, lid+2^lmc).
func (b *Builder) AddCAWithLMC(guid subnet.GUID, lid subnet.LID, lmc uint8) *subnet.Node {
	port := &subnet.Port{GUID: guid, NodeGUID: guid, Num: 0, Base: lid, LMC: lmc}
	n := &subnet.Node{
		GUID:          guid,
		Type:          v1.NodeTypeCA,
		BaseLID:       lid,
		LMC:           lmc,
		Ports:         map[int]*subnet.Port{0: port},
		PhysicalPorts: map[int]*subnet.PhysicalPort{0: {NodeGUID: guid, Num: 0, State: v1.LinkStateActive}},
	}

	b.s.Lock()
	b.s.AddNode(n)
	_ = b.s.AddPort(port)
	b.s.Unlock()

	b.nodes[guid] = n
	return n
}

// Link connects switch-to-switch physical ports aGUID.aPort and
// bGUID.bPort as remotes of one another.
func (b *Builder) Link(aGUID subnet.GUID, aPort int, bGUID subnet.GUID, bPort int) {
	a := b.nodes[aGUID].PhysicalPorts[aPort]
	bb := b.nodes[bGUID].PhysicalPorts[bPort]
	a.Remote, bb.Remote = bb, a
}

// LinkCA connects switch swGUID.swPort to the CA's single physical port.
func (b *Builder) LinkCA(swGUID subnet.GUID, swPort int, caGUID subnet.GUID) {
	b.Link(swGUID, swPort, caGUID, 0)
}

// Subnet returns the assembled fixture.
func (b *Builder) Subnet() *subnet.Subnet { return b.s }

// Switch returns the switch registered under guid, or nil.
func (b *Builder) Switch(guid subnet.GUID) *subnet.Switch { return b.switches[guid] }

// TwoSwitchPair builds a minimal two-switch fixture: switches A (LID 1)
// and B (LID 2), one CA on each (LIDs 3 and 4), linked on port 3.
func TwoSwitchPair() (*Builder, subnet.GUID, subnet.GUID) {
	b := New(4)
	const aGUID, bGUID, caA, caB = subnet.GUID(1), subnet.GUID(2), subnet.GUID(3), subnet.GUID(4)

	b.AddSwitch(aGUID, 1, 4)
	b.AddSwitch(bGUID, 2, 4)
	b.AddCA(caA, 3)
	b.AddCA(caB, 4)

	b.LinkCA(aGUID, 1, caA)
	b.LinkCA(bGUID, 1, caB)
	b.Link(aGUID, 3, bGUID, 3)

	return b, aGUID, bGUID
}
