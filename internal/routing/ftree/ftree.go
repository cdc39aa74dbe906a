// Package ftree implements the topology-aware Fat-Tree unicast routing
// engine: rank assignment, port-group construction, and balanced
// up/down port selection per destination. It requires a k-ary-n-tree;
// any inconsistency (illegal CA-CA link, rank outside [2,8], asymmetric
// non-leaf ranks) falls back to Min-Hop.
package ftree

import (
	"sort"

	v1 "github.com/osmcore/osmcore/api/v1"
	"github.com/osmcore/osmcore/internal/routing"
	"github.com/osmcore/osmcore/internal/routing/minhop"
	"github.com/osmcore/osmcore/internal/subnet"
	"github.com/osmcore/osmcore/pkg/errdefs"
	"github.com/osmcore/osmcore/pkg/log"
)

func init() {
	routing.Register("ftree", func() routing.Engine { return &Engine{} })
}

// portGroup bundles every parallel physical-port link between one
// switch and one specific remote switch.
type portGroup struct {
	remote      subnet.GUID
	ports       []int
	counterUp   int
	counterDown int
}

// Engine is the Fat-Tree routing engine.
type Engine struct {
	ranks      map[subnet.GUID]int
	up         map[subnet.GUID][]*portGroup
	down       map[subnet.GUID][]*portGroup
	subtree    map[subnet.GUID]map[int]map[subnet.GUID]bool // switch -> down group index -> reachable leaf GUIDs
	maxRank    int
	fellBack   bool
}

func (e *Engine) Setup(ctx *routing.Context) error {
	e.ranks = nil
	e.up = nil
	e.down = nil
	e.subtree = nil
	e.fellBack = false
	return nil
}

func (e *Engine) Destroy() {}

// PathSL returns hintSL unchanged; this engine does not remap SL.
func (e *Engine) PathSL(hintSL uint8, slid, dlid subnet.LID) uint8 { return hintSL }

// BuildUcastTables runs rank assignment, port-group construction, and
// routing in sequence, falling back to Min-Hop on any validation
// failure.
func (e *Engine) BuildUcastTables(ctx *routing.Context) error {
	s := ctx.Subnet

	if ctx.Config.LMC > 0 {
		log.Logger.Warnw("ftree: LMC>0 unsupported, falling back to minhop")
		return e.fallback(s, ctx)
	}

	if err := validateNoCACALinks(s); err != nil {
		log.Logger.Warnw("ftree: illegal CA-CA link, falling back to minhop", "err", err)
		return e.fallback(s, ctx)
	}

	ranks, maxRank, err := assignRanks(s)
	if err != nil {
		log.Logger.Warnw("ftree: rank assignment failed, falling back to minhop", "err", err)
		return e.fallback(s, ctx)
	}
	e.ranks = ranks
	e.maxRank = maxRank

	up, down := buildPortGroups(s, ranks)
	e.up, e.down = up, down
	e.subtree = buildSubtreeLeaves(s, ranks, down)

	if err := route(s, ranks, maxRank, up, down, e.subtree); err != nil {
		log.Logger.Warnw("ftree: routing failed, falling back to minhop", "err", err)
		return e.fallback(s, ctx)
	}

	if err := validateConsistency(s, ranks, maxRank, up, down); err != nil {
		log.Logger.Warnw("ftree: consistency validation failed, falling back to minhop", "err", err)
		return e.fallback(s, ctx)
	}

	return nil
}

func (e *Engine) fallback(s *subnet.Subnet, ctx *routing.Context) error {
	e.fellBack = true
	if err := minhop.BuildHopMatrices(s); err != nil {
		return err
	}
	return minhop.Route(s, ctx.Config.LMC, ctx.Config.PortProfileSwitchNodes, make(map[subnet.GUID][]int))
}

// validateNoCACALinks rejects a CA whose physical port's remote is
// another CA — illegal for a Fat-Tree topology.
func validateNoCACALinks(s *subnet.Subnet) error {
	s.RLock()
	defer s.RUnlock()
	for _, n := range s.Nodes() {
		if n.Type != v1.NodeTypeCA {
			continue
		}
		for _, pp := range n.PhysicalPorts {
			if pp.Remote == nil {
				continue
			}
			remoteNode, ok := s.Node(pp.Remote.NodeGUID)
			if ok && remoteNode.Type == v1.NodeTypeCA {
				return errdefs.ErrFailedPrecondition
			}
		}
	}
	return nil
}

// assignRanks runs BFS from every CA-attached switch (leaves), takes
// the minimum level reached at each switch, then inverts so rank 0 is
// the root. Rejects if the resulting tier count is outside [2,8].
func assignRanks(s *subnet.Subnet) (map[subnet.GUID]int, int, error) {
	s.RLock()
	defer s.RUnlock()

	switches := s.Switches()
	if len(switches) == 0 {
		return nil, 0, errdefs.ErrFailedPrecondition
	}

	level := make(map[subnet.GUID]int, len(switches))
	queue := make([]subnet.GUID, 0)

	for _, sw := range switches {
		if hasCAEdge(s, sw) {
			level[sw.Node.GUID] = 0
			queue = append(queue, sw.Node.GUID)
		}
	}
	if len(queue) == 0 {
		return nil, 0, errdefs.ErrFailedPrecondition
	}

	for i := 0; i < len(queue); i++ {
		cur := queue[i]
		sw, ok := s.Switch(cur)
		if !ok {
			continue
		}
		for _, pp := range sw.Node.PhysicalPorts {
			if !pp.Healthy() {
				continue
			}
			remoteSw, ok := s.Switch(pp.Remote.NodeGUID)
			if !ok {
				continue
			}
			cand := level[cur] + 1
			if existing, seen := level[remoteSw.Node.GUID]; !seen || cand < existing {
				level[remoteSw.Node.GUID] = cand
				queue = append(queue, remoteSw.Node.GUID)
			}
		}
	}

	maxLevel := 0
	for _, sw := range switches {
		if l, ok := level[sw.Node.GUID]; ok && l > maxLevel {
			maxLevel = l
		} else if !ok {
			return nil, 0, errdefs.ErrFailedPrecondition
		}
	}

	numTiers := maxLevel + 1
	if numTiers < 2 || numTiers > 8 {
		return nil, 0, errdefs.ErrFailedPrecondition
	}

	ranks := make(map[subnet.GUID]int, len(switches))
	for _, sw := range switches {
		ranks[sw.Node.GUID] = maxLevel - level[sw.Node.GUID]
	}
	return ranks, maxLevel, nil
}

func hasCAEdge(s *subnet.Subnet, sw *subnet.Switch) bool {
	for _, pp := range sw.Node.PhysicalPorts {
		if pp.Remote == nil {
			continue
		}
		if n, ok := s.Node(pp.Remote.NodeGUID); ok && n.Type == v1.NodeTypeCA {
			return true
		}
	}
	return false
}

// buildPortGroups classifies every switch-to-switch physical port as
// "up" (remote rank = rank-1, toward the root) or "down" (remote rank =
// rank+1, toward the leaves), grouping parallel links to the same
// remote switch together.
func buildPortGroups(s *subnet.Subnet, ranks map[subnet.GUID]int) (up, down map[subnet.GUID][]*portGroup) {
	s.RLock()
	defer s.RUnlock()

	up = make(map[subnet.GUID][]*portGroup)
	down = make(map[subnet.GUID][]*portGroup)

	for _, sw := range s.Switches() {
		myRank := ranks[sw.Node.GUID]
		upGroups := make(map[subnet.GUID]*portGroup)
		downGroups := make(map[subnet.GUID]*portGroup)

		ports := make([]int, 0, len(sw.Node.PhysicalPorts))
		for p := range sw.Node.PhysicalPorts {
			ports = append(ports, p)
		}
		sort.Ints(ports)

		for _, portNum := range ports {
			pp := sw.Node.PhysicalPorts[portNum]
			if !pp.Healthy() {
				continue
			}
			remoteSw, ok := s.Switch(pp.Remote.NodeGUID)
			if !ok {
				continue
			}
			remoteRank := ranks[remoteSw.Node.GUID]
			if remoteRank == myRank-1 {
				g, ok := upGroups[remoteSw.Node.GUID]
				if !ok {
					g = &portGroup{remote: remoteSw.Node.GUID}
					upGroups[remoteSw.Node.GUID] = g
				}
				g.ports = append(g.ports, portNum)
			} else if remoteRank == myRank+1 {
				g, ok := downGroups[remoteSw.Node.GUID]
				if !ok {
					g = &portGroup{remote: remoteSw.Node.GUID}
					downGroups[remoteSw.Node.GUID] = g
				}
				g.ports = append(g.ports, portNum)
			}
		}

		up[sw.Node.GUID] = sortedGroups(upGroups)
		down[sw.Node.GUID] = sortedGroups(downGroups)
	}
	return up, down
}

func sortedGroups(m map[subnet.GUID]*portGroup) []*portGroup {
	out := make([]*portGroup, 0, len(m))
	for _, g := range m {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].remote < out[j].remote })
	return out
}

// buildSubtreeLeaves precomputes, for each switch and each of its down
// groups, the set of leaf-switch GUIDs reachable transitively through
// that group — used to decide whether a switch is an ancestor of a
// destination's leaf switch.
func buildSubtreeLeaves(s *subnet.Subnet, ranks map[subnet.GUID]int, down map[subnet.GUID][]*portGroup) map[subnet.GUID]map[int]map[subnet.GUID]bool {
	maxRank := 0
	for _, r := range ranks {
		if r > maxRank {
			maxRank = r
		}
	}

	memo := make(map[subnet.GUID]map[subnet.GUID]bool)
	var leavesBelow func(guid subnet.GUID) map[subnet.GUID]bool
	leavesBelow = func(guid subnet.GUID) map[subnet.GUID]bool {
		if cached, ok := memo[guid]; ok {
			return cached
		}
		result := make(map[subnet.GUID]bool)
		if ranks[guid] == maxRank {
			result[guid] = true
		} else {
			for _, g := range down[guid] {
				for leaf := range leavesBelow(g.remote) {
					result[leaf] = true
				}
			}
		}
		memo[guid] = result
		return result
	}

	out := make(map[subnet.GUID]map[int]map[subnet.GUID]bool)
	for guid, groups := range down {
		perGroup := make(map[int]map[subnet.GUID]bool, len(groups))
		for idx, g := range groups {
			perGroup[idx] = leavesBelow(g.remote)
		}
		out[guid] = perGroup
	}
	return out
}

// route decides, for every destination CA, in leaf-switch GUID order,
// each switch's egress port toward it.
func route(s *subnet.Subnet, ranks map[subnet.GUID]int, maxRank int, up, down map[subnet.GUID][]*portGroup, subtree map[subnet.GUID]map[int]map[subnet.GUID]bool) error {
	s.Lock()
	defer s.Unlock()

	for _, sw := range s.Switches() {
		sw.ResetForRoutingPass()
	}

	destinations, err := collectDestinations(s, ranks, maxRank)
	if err != nil {
		return err
	}

	switches := s.Switches()
	sort.Slice(switches, func(i, j int) bool { return switches[i].Node.GUID < switches[j].Node.GUID })

	for _, d := range destinations {
		for _, sw := range switches {
			if sw.Node.GUID == d.leafGUID {
				sw.NewLFT[d.lid] = d.edgePort
				continue
			}

			routed := false
			for idx, g := range down[sw.Node.GUID] {
				if subtree[sw.Node.GUID][idx][d.leafGUID] {
					sw.NewLFT[d.lid] = lowestPort(g.ports)
					g.counterDown++
					routed = true
					break
				}
			}
			if routed {
				continue
			}

			groups := up[sw.Node.GUID]
			if len(groups) == 0 {
				sw.NewLFT[d.lid] = subnet.NoPath
				continue
			}
			bestGroup := groups[0]
			for _, g := range groups[1:] {
				if g.counterUp < bestGroup.counterUp {
					bestGroup = g
				}
			}
			sw.NewLFT[d.lid] = lowestPort(bestGroup.ports)
			bestGroup.counterUp++
		}
	}
	return nil
}

// lowestPort picks the deterministic representative port within a
// port group; a group's counter is shared across all its parallel
// ports rather than tracked per-port.
func lowestPort(ports []int) int {
	best := ports[0]
	for _, p := range ports[1:] {
		if p < best {
			best = p
		}
	}
	return best
}

type destination struct {
	lid      subnet.LID
	leafGUID subnet.GUID
	edgePort int
}

// collectDestinations gathers every CA's LID in leaf-switch GUID order,
// then by CA GUID within a leaf, for deterministic, repeatable LFTs.
func collectDestinations(s *subnet.Subnet, ranks map[subnet.GUID]int, maxRank int) ([]destination, error) {
	leaves := make([]*subnet.Switch, 0)
	for _, sw := range s.Switches() {
		if ranks[sw.Node.GUID] == maxRank {
			leaves = append(leaves, sw)
		}
	}
	sort.Slice(leaves, func(i, j int) bool { return leaves[i].Node.GUID < leaves[j].Node.GUID })

	var out []destination
	for _, leaf := range leaves {
		type caEntry struct {
			guid subnet.GUID
			lid  subnet.LID
			port int
		}
		var cas []caEntry
		ports := make([]int, 0, len(leaf.Node.PhysicalPorts))
		for p := range leaf.Node.PhysicalPorts {
			ports = append(ports, p)
		}
		sort.Ints(ports)
		for _, portNum := range ports {
			pp := leaf.Node.PhysicalPorts[portNum]
			if pp.Remote == nil {
				continue
			}
			n, ok := s.Node(pp.Remote.NodeGUID)
			if !ok || n.Type != v1.NodeTypeCA {
				continue
			}
			cas = append(cas, caEntry{guid: n.GUID, lid: n.BaseLID, port: portNum})
		}
		sort.Slice(cas, func(i, j int) bool { return cas[i].guid < cas[j].guid })
		for _, ca := range cas {
			out = append(out, destination{lid: ca.lid, leafGUID: leaf.Node.GUID, edgePort: ca.port})
		}
	}
	if len(out) == 0 {
		return nil, errdefs.ErrFailedPrecondition
	}
	return out, nil
}

// validateConsistency checks that all switches of equal rank have
// identical up-group and down-group counts (leaves may have fewer
// CAs, which this check doesn't look at).
func validateConsistency(s *subnet.Subnet, ranks map[subnet.GUID]int, maxRank int, up, down map[subnet.GUID][]*portGroup) error {
	type shape struct{ upCount, downCount int }
	byRank := make(map[int]shape)
	for _, sw := range s.Switches() {
		r := ranks[sw.Node.GUID]
		sh := shape{upCount: len(up[sw.Node.GUID]), downCount: len(down[sw.Node.GUID])}
		if existing, ok := byRank[r]; ok {
			if existing.upCount != sh.upCount {
				return errdefs.ErrFailedPrecondition
			}
			if r != maxRank && existing.downCount != sh.downCount {
				return errdefs.ErrFailedPrecondition
			}
		} else {
			byRank[r] = sh
		}
	}
	return nil
}
