// Package subnet holds the discovered-fabric data model: nodes, ports,
// physical ports, links, and the LID table every routing engine and the
// sweep controller share.
//
// Cached pointers into this model must never outlive one sweep; callers
// that need to hold a reference across an SMP round-trip store the
// GUID or LID instead and resolve it again under RLock. Engine-local
// graphs (internal/routing/nue's network graph, cCDG) own their own
// memory and never point back into this package.
package subnet

import (
	"sync"

	v1 "github.com/osmcore/osmcore/api/v1"
	"github.com/osmcore/osmcore/pkg/errdefs"
)

// GUID is a 64-bit port or node identifier.
type GUID uint64

// LID is a 16-bit local identifier.
type LID uint16

// NoPath is the LFT/hop-table sentinel meaning "no route to this LID".
const NoPath = 0xFFFF

// MaxDRHops bounds a directed-route path length.
const MaxDRHops = 64

// MaxLID is the largest LID the wire format can express.
const MaxLID = LID(0xBFFF)

// PhysicalPort is one hardware port on a node: link state, width/speed,
// MTU, and a pointer to its remote peer (a CA's port for an edge port).
type PhysicalPort struct {
	NodeGUID GUID
	Num      int

	State v1.LinkState
	Width int
	Speed int
	MTU   int

	// Remote points at the peer physical port discovered on the other
	// side of the link, including the CA's port for an edge port facing
	// a CA; it is nil when nothing is connected.
	Remote *PhysicalPort

	// DRPath is the directed-route path the SM used to reach this port
	// during discovery, bounded to MaxDRHops entries.
	DRPath []int

	Faulty bool
	IsNew  bool
}

// Healthy reports whether a link through this physical port can carry
// traffic: both endpoints must be known and neither marked faulty.
func (p *PhysicalPort) Healthy() bool {
	return p != nil && p.Remote != nil && !p.Faulty && !p.Remote.Faulty
}

// Port is a logical endpoint owning a LID range [Base, Base+2^LMC-1].
type Port struct {
	GUID     GUID
	NodeGUID GUID
	Num      int
	Base     LID
	LMC      uint8
}

// NumLIDs returns the number of LIDs this port's range spans.
func (p *Port) NumLIDs() int {
	return 1 << p.LMC
}

// Contains reports whether l falls within this port's LID range.
func (p *Port) Contains(l LID) bool {
	return l >= p.Base && int(l-p.Base) < p.NumLIDs()
}

// Node is a discovered CA, router, or switch.
type Node struct {
	GUID GUID
	Type v1.NodeType

	Ports         map[int]*Port
	PhysicalPorts map[int]*PhysicalPort

	BaseLID LID
	LMC     uint8

	// DiscoveryCount is bumped on every heavy sweep that (re)confirms
	// this node; a stale count at sweep-end marks the node for removal.
	DiscoveryCount int
}

// Switch is a Node of type NodeTypeSwitch with unicast/multicast
// forwarding state.
type Switch struct {
	Node *Node

	// LFT is indexed by LID; NoPath or a physical port number.
	LFT []int
	// NewLFT is the double-buffer the routing engine writes into; it is
	// swapped into LFT (and diffed against the prior LFT) at install time.
	NewLFT []int

	// Hops[lid][port] is the hop-count matrix built by the engine's
	// hop-matrix pass and consulted by its port-selection pass.
	Hops [][]int

	MCT []int

	IgnoreExistingLFTs bool
}

// NewSwitch allocates a switch's LFT/hop tables sized for maxLID+1 LIDs
// and numPorts physical ports (port 0 included).
func NewSwitch(n *Node, maxLID LID, numPorts int) *Switch {
	s := &Switch{
		Node:   n,
		LFT:    make([]int, int(maxLID)+1),
		NewLFT: make([]int, int(maxLID)+1),
		Hops:   make([][]int, int(maxLID)+1),
	}
	for l := range s.LFT {
		s.LFT[l] = NoPath
		s.NewLFT[l] = NoPath
		s.Hops[l] = make([]int, numPorts)
		for p := range s.Hops[l] {
			s.Hops[l][p] = NoPath
		}
	}
	return s
}

// ResetForRoutingPass clears NewLFT ahead of a fresh routing engine run;
// the previously-installed LFT is left untouched until install time.
func (s *Switch) ResetForRoutingPass() {
	for l := range s.NewLFT {
		s.NewLFT[l] = NoPath
	}
}

// Subnet is the full discovered fabric: every node/port, plus the
// lid->port vector every routing engine consults. plock guards all
// mutation; engines take RLock while traversing and upgrade to Lock
// only to stamp a switch's NewLFT. Holding the plock across an SMP
// round-trip is forbidden: callers must not call into the issuer while
// holding either lock.
type Subnet struct {
	plock sync.RWMutex

	nodesByGUID map[GUID]*Node
	portsByGUID map[GUID]*Port
	switches    map[GUID]*Switch

	// lidToPort is a dense vector; index i holds the port owning LID i,
	// or nil if unassigned.
	lidToPort []*Port

	maxLIDHO LID

	// MasterSMPortDown is set when a heavy sweep discovers that the SM's
	// own port went down; the controller reacts by dropping all remote
	// state and re-entering discovery.
	MasterSMPortDown bool
}

// New creates an empty subnet sized to track LIDs up to maxLIDHO.
func New(maxLIDHO LID) *Subnet {
	return &Subnet{
		nodesByGUID: make(map[GUID]*Node),
		portsByGUID: make(map[GUID]*Port),
		switches:    make(map[GUID]*Switch),
		lidToPort:   make([]*Port, int(maxLIDHO)+1),
		maxLIDHO:    maxLIDHO,
	}
}

func (s *Subnet) RLock()   { s.plock.RLock() }
func (s *Subnet) RUnlock() { s.plock.RUnlock() }
func (s *Subnet) Lock()    { s.plock.Lock() }
func (s *Subnet) Unlock()  { s.plock.Unlock() }

func (s *Subnet) MaxLIDHO() LID { return s.maxLIDHO }

// AddNode registers a newly discovered node. Caller must hold Lock.
func (s *Subnet) AddNode(n *Node) {
	s.nodesByGUID[n.GUID] = n
}

// Node resolves a GUID to its node, or (nil, false) if unknown. Caller
// must hold at least RLock.
func (s *Subnet) Node(guid GUID) (*Node, bool) {
	n, ok := s.nodesByGUID[guid]
	return n, ok
}

// Nodes returns every known node. Caller must hold at least RLock.
func (s *Subnet) Nodes() []*Node {
	out := make([]*Node, 0, len(s.nodesByGUID))
	for _, n := range s.nodesByGUID {
		out = append(out, n)
	}
	return out
}

// AddSwitch registers sw, keyed by its node's GUID. Caller must hold Lock.
func (s *Subnet) AddSwitch(sw *Switch) {
	s.switches[sw.Node.GUID] = sw
}

// Switch resolves a node GUID to its switch state. Caller must hold at
// least RLock.
func (s *Subnet) Switch(guid GUID) (*Switch, bool) {
	sw, ok := s.switches[guid]
	return sw, ok
}

// Switches returns every known switch. Caller must hold at least RLock.
func (s *Subnet) Switches() []*Switch {
	out := make([]*Switch, 0, len(s.switches))
	for _, sw := range s.switches {
		out = append(out, sw)
	}
	return out
}

// AddPort registers p and stamps every LID in its range into the
// lid->port vector. Returns ErrAlreadyExists if any LID in the range is
// already claimed by a different port (a topology inconsistency).
// Caller must hold Lock.
func (s *Subnet) AddPort(p *Port) error {
	for i := 0; i < p.NumLIDs(); i++ {
		l := int(p.Base) + i
		if l >= len(s.lidToPort) {
			return errdefs.ErrInvalidArgument
		}
		if existing := s.lidToPort[l]; existing != nil && existing.GUID != p.GUID {
			return errdefs.ErrAlreadyExists
		}
	}
	s.portsByGUID[p.GUID] = p
	for i := 0; i < p.NumLIDs(); i++ {
		s.lidToPort[int(p.Base)+i] = p
	}
	return nil
}

// PortForLID resolves a LID to its owning port. Caller must hold at
// least RLock. For every valid LID there exists exactly one port
// whose LID range contains it.
func (s *Subnet) PortForLID(l LID) (*Port, error) {
	if int(l) >= len(s.lidToPort) {
		return nil, errdefs.ErrNotFound
	}
	p := s.lidToPort[l]
	if p == nil {
		return nil, errdefs.ErrNotFound
	}
	return p, nil
}

// Port resolves a port GUID. Caller must hold at least RLock.
func (s *Subnet) Port(guid GUID) (*Port, bool) {
	p, ok := s.portsByGUID[guid]
	return p, ok
}

// ResetForHeavySweep clears the lid->port vector and every node/port
// discovery counter ahead of a full rediscovery. Caller must hold Lock.
func (s *Subnet) ResetForHeavySweep() {
	for i := range s.lidToPort {
		s.lidToPort[i] = nil
	}
	for _, n := range s.nodesByGUID {
		n.DiscoveryCount = 0
	}
}

// AllLIDs returns every assigned LID in ascending order, one entry per
// distinct port (not replicated per LMC range member).
func (s *Subnet) AllLIDs() []LID {
	seen := make(map[GUID]bool, len(s.portsByGUID))
	out := make([]LID, 0, len(s.portsByGUID))
	for l, p := range s.lidToPort {
		if p == nil || seen[p.GUID] {
			continue
		}
		seen[p.GUID] = true
		out = append(out, LID(l))
	}
	return out
}
