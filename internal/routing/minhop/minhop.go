// Package minhop implements the baseline breadth-first hop-matrix and
// port-selection routing engine. Every other engine falls back to this
// one on setup failure, topology inconsistency, or resource
// exhaustion, so its entry points are also exposed as plain functions
// other engine packages call directly rather than only through the
// registry.
package minhop

import (
	"github.com/osmcore/osmcore/internal/routing"
	"github.com/osmcore/osmcore/internal/subnet"
)

func init() {
	routing.Register("minhop", func() routing.Engine { return &Engine{} })
}

// Engine is the Min-Hop routing engine. It holds no state across a
// sweep beyond what BuildHopMatrices/BuildUcastTables compute directly
// into the subnet's switches, so Setup/Destroy are no-ops.
type Engine struct {
	// load[switchGUID][port] counts how many LIDs were routed through
	// that egress port, used to break min-hop ties by least-loaded port.
	load map[subnet.GUID][]int
}

func (e *Engine) Setup(ctx *routing.Context) error { return nil }
func (e *Engine) Destroy()                         {}

// PathSL returns hintSL unchanged: Min-Hop does not perform its own SL
// mapping.
func (e *Engine) PathSL(hintSL uint8, slid, dlid subnet.LID) uint8 { return hintSL }

// BuildHopMatrices runs the iterative relaxation computing each
// switch's per-LID hop-count to every port.
func (e *Engine) BuildHopMatrices(ctx *routing.Context) error {
	return BuildHopMatrices(ctx.Subnet)
}

// BuildUcastTables performs port selection and writes every switch's
// NewLFT.
func (e *Engine) BuildUcastTables(ctx *routing.Context) error {
	if e.load == nil {
		e.load = make(map[subnet.GUID][]int)
	}
	return Route(ctx.Subnet, ctx.Config.LMC, ctx.Config.PortProfileSwitchNodes, e.load)
}

// BuildHopMatrices is the free-standing entry point other engines call
// when falling back to Min-Hop for the hop-matrix step alone.
func BuildHopMatrices(s *subnet.Subnet) error {
	s.RLock()
	defer s.RUnlock()

	switches := s.Switches()

	// Seed: each switch's own LID is zero hops via port 0; each
	// switch-to-switch physical link is one hop in both directions.
	for _, sw := range switches {
		ownLID := int(sw.Node.BaseLID)
		if ownLID < len(sw.Hops) {
			sw.Hops[ownLID][0] = 0
		}
	}
	for _, sw := range switches {
		for portNum, pp := range sw.Node.PhysicalPorts {
			if !pp.Healthy() || pp.Remote == nil {
				continue
			}
			remoteSw, ok := s.Switch(pp.Remote.NodeGUID)
			if !ok {
				continue
			}
			localLID := int(sw.Node.BaseLID)
			remoteLID := int(remoteSw.Node.BaseLID)
			if remoteLID < len(sw.Hops) {
				setIfBetter(sw.Hops[remoteLID], portNum, 1)
			}
			if localLID < len(remoteSw.Hops) {
				setIfBetter(remoteSw.Hops[localLID], pp.Remote.Num, 1)
			}
		}
	}

	// Relax at most |switches|-1 times or until a pass is a no-op.
	maxPasses := len(switches) - 1
	if maxPasses < 0 {
		maxPasses = 0
	}
	for pass := 0; pass < maxPasses; pass++ {
		changed := false
		for _, sw := range switches {
			for portNum, pp := range sw.Node.PhysicalPorts {
				if !pp.Healthy() || pp.Remote == nil {
					continue
				}
				remoteSw, ok := s.Switch(pp.Remote.NodeGUID)
				if !ok {
					continue
				}
				for lid := range sw.Hops {
					if lid >= len(remoteSw.Hops) {
						continue
					}
					remoteBest := minHop(remoteSw.Hops[lid])
					if remoteBest == subnet.NoPath {
						continue
					}
					if setIfBetter(sw.Hops[lid], portNum, remoteBest+1) {
						changed = true
					}
				}
			}
		}
		if !changed {
			break
		}
	}
	return nil
}

func setIfBetter(hopsForLID []int, port, candidate int) bool {
	if port >= len(hopsForLID) {
		return false
	}
	if hopsForLID[port] == subnet.NoPath || candidate < hopsForLID[port] {
		hopsForLID[port] = candidate
		return true
	}
	return false
}

func minHop(hopsForLID []int) int {
	best := subnet.NoPath
	for _, h := range hopsForLID {
		if h != subnet.NoPath && (best == subnet.NoPath || h < best) {
			best = h
		}
	}
	return best
}

// Route performs port selection: for each switch and each LID, pick the
// egress port achieving the min hop count, breaking ties by least load.
// If portProfileSwitchNodes is set, load also counts switch-to-switch
// selections, not only CA destinations.
// load is keyed by switch GUID and indexed by port number; counts
// accumulate across calls that share the map. Engine.BuildUcastTables
// passes the map held by its Engine, but the sweep controller creates
// a new Engine (and routeMinHop a new map) for every sweep, so load
// does not carry over from one sweep to the next.
//
// AllLIDs returns one representative LID per destination port, but a
// port with lmc > 0 owns the whole range [Base, Base+p.NumLIDs()); this
// routes every LID in that range individually (hops[l] is valid for
// each of them, seeded over the full LID space by BuildHopMatrices), so
// that port's own LMC > 0 triggers the spread-by-neighbor tie-break
// below across the range's own replica LIDs. If the destination port
// has no LMC (the common case), the range is one LID long and this
// degenerates to the original single-LID behavior.
//
// When lmc > 0 and the destination port itself has lmc > 0, the extra
// LIDs in its range are spread across the distinct neighbor
// systems/nodes the tied candidate ports lead to (tracked in
// neighborUse, reset at the start of every Route call), so replica LIDs
// of the same CA diversify across physically distinct next hops instead
// of all landing on the same port.
func Route(s *subnet.Subnet, lmc uint8, portProfileSwitchNodes bool, load map[subnet.GUID][]int) error {
	s.Lock()
	defer s.Unlock()

	destPorts := s.AllLIDs()

	for _, sw := range s.Switches() {
		sw.ResetForRoutingPass()

		counters, ok := load[sw.Node.GUID]
		if !ok {
			counters = make([]int, len(sw.Node.PhysicalPorts))
			load[sw.Node.GUID] = counters
		}

		// neighborUse[baseLID][neighborGUID] counts how many LIDs within
		// one LMC port range were already routed through a given
		// neighbor system/node on this switch, reset every Route call.
		neighborUse := make(map[subnet.LID]map[subnet.GUID]int)

		for _, baseLID := range destPorts {
			p, err := s.PortForLID(baseLID)
			if err != nil {
				continue
			}

			destNode, _ := s.Node(p.NodeGUID)
			destIsSwitchNode := destNode != nil && destNode.Type.String() == "Switch"
			spreadByNeighbor := lmc > 0 && p.LMC > 0

			for i := 0; i < p.NumLIDs(); i++ {
				l := p.Base + subnet.LID(i)

				if int(l) >= len(sw.Hops) {
					continue
				}
				best := minHop(sw.Hops[l])
				if best == subnet.NoPath {
					sw.NewLFT[l] = subnet.NoPath
					continue
				}

				chosen := -1
				chosenLoad := -1
				chosenNeighborUse := -1
				for port, h := range sw.Hops[l] {
					if h != best {
						continue
					}
					if port >= len(counters) {
						continue
					}

					if spreadByNeighbor {
						neighborGUID := neighborSystemFor(sw, port)
						use := neighborUse[p.Base][neighborGUID]
						if chosen == -1 || use < chosenNeighborUse ||
							(use == chosenNeighborUse && counters[port] < chosenLoad) {
							chosen = port
							chosenLoad = counters[port]
							chosenNeighborUse = use
						}
						continue
					}

					if chosen == -1 || counters[port] < chosenLoad {
						chosen = port
						chosenLoad = counters[port]
					}
				}
				if chosen == -1 {
					sw.NewLFT[l] = subnet.NoPath
					continue
				}

				sw.NewLFT[l] = chosen
				if !destIsSwitchNode || portProfileSwitchNodes {
					counters[chosen]++
				}
				if spreadByNeighbor {
					uses := neighborUse[p.Base]
					if uses == nil {
						uses = make(map[subnet.GUID]int)
						neighborUse[p.Base] = uses
					}
					uses[neighborSystemFor(sw, chosen)]++
				}
			}
		}
	}
	return nil
}

// neighborSystemFor identifies the neighbor system/node a switch's
// egress port leads to: the remote node's GUID for an inter-switch
// link, or the switch's own GUID plus the port number for an edge port
// facing a CA directly (each edge port is its own distinct neighbor).
func neighborSystemFor(sw *subnet.Switch, port int) subnet.GUID {
	pp, ok := sw.Node.PhysicalPorts[port]
	if !ok || pp.Remote == nil {
		return subnet.GUID(uint64(sw.Node.GUID)<<16 | uint64(port))
	}
	return pp.Remote.NodeGUID
}
