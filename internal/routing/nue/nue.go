// Package nue implements the Nue deadlock-free unicast routing engine:
// a network graph, a complete channel dependency graph (cCDG)
// with union-find colors, a modified per-destination Dijkstra with
// Cycle-Safe Promotion and local backtracking, and an up*/down*
// escape-path spanning tree as a last resort.
//
// Destination LIDs are partitioned round-robin across the configured
// virtual lanes; each VL gets its own reset cCDG coloring, and every
// LID owned by the same destination switch within a VL shares one
// color, since they route identically — see DESIGN.md for why this
// is sound.
package nue

import (
	"sort"

	v1 "github.com/osmcore/osmcore/api/v1"
	"github.com/osmcore/osmcore/internal/routing"
	"github.com/osmcore/osmcore/internal/subnet"
	"github.com/osmcore/osmcore/pkg/config"
	"github.com/osmcore/osmcore/pkg/log"
)

func init() {
	routing.Register("nue", func() routing.Engine { return &Engine{} })
}

// Engine is the Nue routing engine.
type Engine struct {
	dlidToVL map[subnet.LID]uint8
	lidDest  map[subnet.LID]subnet.GUID

	// graph/ccdg/colorsByVL retain the last BuildUcastTables run's
	// state for VerifyEachStep and tests; the sweep path never reads
	// them back.
	graph      *graph
	ccdg       *cCDG
	colorsByVL map[uint8]*colorSet
}

func (e *Engine) Setup(ctx *routing.Context) error {
	e.dlidToVL = nil
	e.lidDest = nil
	return nil
}

func (e *Engine) Destroy() {}

// PathSL returns the VL this destination was partitioned into, which
// doubles as its SL; hintSL is returned unchanged if no partition has
// been computed yet.
func (e *Engine) PathSL(hintSL uint8, slid, dlid subnet.LID) uint8 {
	if e.dlidToVL == nil {
		return hintSL
	}
	if vl, ok := e.dlidToVL[dlid]; ok {
		return vl
	}
	return hintSL
}

type nueDest struct {
	lid    subnet.LID
	swGUID subnet.GUID
}

// BuildUcastTables partitions destinations across VLs, then for each
// VL runs one destination-rooted Dijkstra per distinct destination
// switch and installs every reached (or escape-routed) switch's egress
// port for every LID that switch owns.
func (e *Engine) BuildUcastTables(ctx *routing.Context) error {
	s := ctx.Subnet
	cfg := ctx.Config
	maxVL := cfg.NueMaxNumVLs
	if maxVL <= 0 {
		maxVL = 1
	}

	s.Lock()
	defer s.Unlock()

	for _, sw := range s.Switches() {
		sw.ResetForRoutingPass()
	}

	g := buildGraph(s)
	c := buildCCDG(g)
	escapeRS := buildEscapeTree(g)
	e.graph = g
	e.ccdg = c
	e.colorsByVL = make(map[uint8]*colorSet)

	dests := collectDestinations(s, cfg)
	sort.Slice(dests, func(i, j int) bool { return dests[i].lid < dests[j].lid })

	e.dlidToVL = make(map[subnet.LID]uint8, len(dests))
	e.lidDest = make(map[subnet.LID]subnet.GUID, len(dests))
	byVL := make(map[uint8][]nueDest)
	for i, d := range dests {
		vl := uint8(i % maxVL)
		e.dlidToVL[d.lid] = vl
		e.lidDest[d.lid] = d.swGUID
		byVL[vl] = append(byVL[vl], d)
	}

	for vl := uint8(0); int(vl) < maxVL; vl++ {
		vlDests := byVL[vl]
		if len(vlDests) == 0 {
			continue
		}
		colors := e.routeVL(s, g, c, escapeRS, vlDests)
		e.colorsByVL[vl] = colors
		if !VerifyEachStep(c, colors) {
			log.Logger.Errorw("nue: detected a channel dependency cycle within a virtual lane", "vl", vl)
		}
	}

	if ctx.DLIDToVL == nil {
		ctx.DLIDToVL = make(map[subnet.LID]uint8, len(e.dlidToVL))
	}
	for lid, vl := range e.dlidToVL {
		ctx.DLIDToVL[lid] = vl
	}

	return nil
}

func (e *Engine) routeVL(s *subnet.Subnet, g *graph, c *cCDG, escapeRS *routingState, vlDests []nueDest) *colorSet {
	c.resetColors()
	colors := newColorSet(firstDestColor + len(vlDests))
	rs := &routingState{g: g, c: c, colors: colors, parentOf: escapeRS.parentOf, parentLink: escapeRS.parentLink, root: escapeRS.root}

	destBySwitch := make(map[subnet.GUID][]nueDest)
	for _, d := range vlDests {
		destBySwitch[d.swGUID] = append(destBySwitch[d.swGUID], d)
	}
	var switchOrder []subnet.GUID
	for guid := range destBySwitch {
		switchOrder = append(switchOrder, guid)
	}
	sort.Slice(switchOrder, func(i, j int) bool { return switchOrder[i] < switchOrder[j] })

	colorIdx := firstDestColor
	for _, destSwitch := range switchOrder {
		egress := rs.routeDestination(destSwitch, colorIdx)
		colorIdx++

		for _, d := range destBySwitch[destSwitch] {
			for guid, linkID := range egress {
				sw, ok := s.Switch(guid)
				if !ok {
					continue
				}
				if int(d.lid) < len(sw.NewLFT) {
					sw.NewLFT[d.lid] = g.links[linkID].port
				}
			}
			if destSw, ok := s.Switch(destSwitch); ok && int(d.lid) < len(destSw.NewLFT) {
				destSw.NewLFT[d.lid] = localDeliveryPort(s, destSwitch, d.lid)
			}
		}
	}
	return colors
}

// collectDestinations enumerates every routable LID: CA ports always,
// switch port-0 LIDs only when NueIncludeSwitches is set.
func collectDestinations(s *subnet.Subnet, cfg *config.Config) []nueDest {
	var dests []nueDest
	for _, l := range s.AllLIDs() {
		p, err := s.PortForLID(l)
		if err != nil {
			continue
		}
		n, ok := s.Node(p.NodeGUID)
		if !ok {
			continue
		}
		if n.Type == v1.NodeTypeSwitch {
			if !cfg.NueIncludeSwitches {
				continue
			}
			dests = append(dests, nueDest{lid: l, swGUID: n.GUID})
			continue
		}
		swGUID, ok := findEdgeSwitch(s, n.GUID)
		if !ok {
			continue
		}
		dests = append(dests, nueDest{lid: l, swGUID: swGUID})
	}
	return dests
}

func localDeliveryPort(s *subnet.Subnet, swGUID subnet.GUID, lid subnet.LID) int {
	p, err := s.PortForLID(lid)
	if err != nil {
		return subnet.NoPath
	}
	if p.NodeGUID == swGUID {
		return 0
	}
	n, ok := s.Node(p.NodeGUID)
	if !ok {
		return subnet.NoPath
	}
	for _, pp := range n.PhysicalPorts {
		if pp.Remote != nil && pp.Remote.NodeGUID == swGUID {
			return pp.Remote.Num
		}
	}
	return subnet.NoPath
}

func findEdgeSwitch(s *subnet.Subnet, caGUID subnet.GUID) (subnet.GUID, bool) {
	ca, ok := s.Node(caGUID)
	if !ok {
		return 0, false
	}
	for _, pp := range ca.PhysicalPorts {
		if pp.Remote == nil {
			continue
		}
		if sw, ok := s.Switch(pp.Remote.NodeGUID); ok {
			return sw.Node.GUID, true
		}
	}
	return 0, false
}
