package nue

import (
	"sort"

	"github.com/osmcore/osmcore/internal/subnet"
)

// networkLink is one directed switch-to-switch hop: taking it means
// egressing From on port Port and arriving at To.
type networkLink struct {
	id     int
	from   subnet.GUID
	to     subnet.GUID
	port   int
	weight float64
}

// networkNode tracks one switch's Dijkstra-round state. It is reset at
// the start of every destination switch's routing pass.
type networkNode struct {
	guid         subnet.GUID
	numTerminals int

	// outLinks/inLinks index into graph.links, partitioning by
	// direction for fast neighbor iteration.
	outLinks []int
	inLinks  []int

	distance  float64
	reached   bool
	usedLink  int // index into graph.links of the link this node egresses through toward the current destination; the destination itself holds its sink index; -1 while unreached
	backtrack []int
}

// graph is the physical switch-level network graph, built fresh every
// BuildUcastTables call from the live subnet snapshot.
type graph struct {
	nodes map[subnet.GUID]*networkNode
	links []*networkLink

	// linkIndex finds the link id for a given (from,to) pair.
	linkIndex map[[2]subnet.GUID]int
}

func buildGraph(s *subnet.Subnet) *graph {
	g := &graph{
		nodes:     make(map[subnet.GUID]*networkNode),
		linkIndex: make(map[[2]subnet.GUID]int),
	}

	switches := s.Switches()
	sort.Slice(switches, func(i, j int) bool { return switches[i].Node.GUID < switches[j].Node.GUID })

	for _, sw := range switches {
		g.nodes[sw.Node.GUID] = &networkNode{guid: sw.Node.GUID}
	}

	for _, sw := range switches {
		ports := make([]int, 0, len(sw.Node.PhysicalPorts))
		for p := range sw.Node.PhysicalPorts {
			ports = append(ports, p)
		}
		sort.Ints(ports)

		for _, p := range ports {
			pp := sw.Node.PhysicalPorts[p]
			if !pp.Healthy() {
				continue
			}
			remoteNode, ok := s.Node(pp.Remote.NodeGUID)
			if !ok || remoteNode.Type.String() != "Switch" {
				// CA-attached edge port; not a switch-to-switch link in
				// the network graph, but its CA counts as a terminal
				// behind this switch for centrality weighting.
				g.nodes[sw.Node.GUID].numTerminals++
				continue
			}
			if _, ok := g.nodes[pp.Remote.NodeGUID]; !ok {
				continue
			}

			id := len(g.links)
			link := &networkLink{id: id, from: sw.Node.GUID, to: pp.Remote.NodeGUID, port: p, weight: 1}
			g.links = append(g.links, link)
			g.linkIndex[[2]subnet.GUID{sw.Node.GUID, pp.Remote.NodeGUID}] = id
			g.nodes[sw.Node.GUID].outLinks = append(g.nodes[sw.Node.GUID].outLinks, id)
			g.nodes[pp.Remote.NodeGUID].inLinks = append(g.nodes[pp.Remote.NodeGUID].inLinks, id)
		}
	}

	return g
}

// resetDijkstraState clears every node's per-destination fields ahead
// of a fresh Dijkstra run, including the backtrack stack, since its
// entries are cCDG vertices colored for the previous destination.
func (g *graph) resetDijkstraState() {
	for _, n := range g.nodes {
		n.distance = 0
		n.reached = false
		n.usedLink = -1
		n.backtrack = nil
	}
}

// link returns the networkLink for a (from,to) pair, or nil.
func (g *graph) link(from, to subnet.GUID) *networkLink {
	if id, ok := g.linkIndex[[2]subnet.GUID{from, to}]; ok {
		return g.links[id]
	}
	return nil
}

// --- complete channel dependency graph (cCDG) ---

// Reserved color indices shared by every VL's color set.
const (
	colorBlocked = iota
	colorUnused
	colorEscape
	firstDestColor
)

// cEdge is a turn: arriving via link tail, then continuing via link
// head (or, when head is a sink, stopping at the destination that
// sink represents).
type cEdge struct {
	tail, head int // cCDG indices: a network-link vertex, or a sink
	color      int
}

// cCDG is the complete channel dependency graph. Indices 0..numLinks-1
// are vertices, one per directed network link; indices
// numLinks..numLinks+numSwitches-1 are sink pseudo-vertices, one per
// switch, representing "traffic for a LID owned here terminates at
// this switch, no further turn needed." Edges connect an arriving
// link to a continuing link (or a sink) whenever the arriving link's
// head switch is the continuing link's tail switch and the turn is
// not an immediate U-turn.
type cCDG struct {
	numLinks int
	sinks    map[subnet.GUID]int // switch GUID -> sink index

	vcolor map[int]int // vertex/sink index -> color, default colorUnused

	edgesOut map[int][]*cEdge // by tail index
	edgesIn  map[int][]*cEdge // by head index
}

func buildCCDG(g *graph) *cCDG {
	c := &cCDG{
		numLinks: len(g.links),
		sinks:    make(map[subnet.GUID]int),
		vcolor:   make(map[int]int),
		edgesOut: make(map[int][]*cEdge),
		edgesIn:  make(map[int][]*cEdge),
	}

	guids := make([]subnet.GUID, 0, len(g.nodes))
	for guid := range g.nodes {
		guids = append(guids, guid)
	}
	sort.Slice(guids, func(i, j int) bool { return guids[i] < guids[j] })
	for _, guid := range guids {
		c.sinks[guid] = c.numLinks + len(c.sinks)
	}

	addEdge := func(tail, head int) {
		e := &cEdge{tail: tail, head: head, color: colorUnused}
		c.edgesOut[tail] = append(c.edgesOut[tail], e)
		c.edgesIn[head] = append(c.edgesIn[head], e)
	}

	for _, u := range g.links {
		// Turns: u arrives at u.to, then continues via any v leaving
		// u.to, excluding the immediate U-turn back toward u.from.
		for _, vid := range g.nodes[u.to].outLinks {
			v := g.links[vid]
			if v.to == u.from {
				continue
			}
			addEdge(u.id, vid)
		}
		// Sink: u arrives at u.to, and a LID owned by u.to terminates
		// there, no further turn.
		addEdge(u.id, c.sinks[u.to])
	}

	return c
}

func (c *cCDG) color(idx int) int {
	if col, ok := c.vcolor[idx]; ok {
		return col
	}
	return colorUnused
}

func (c *cCDG) setColor(idx, col int) { c.vcolor[idx] = col }

func (c *cCDG) edgeBetween(tail, head int) *cEdge {
	for _, e := range c.edgesOut[tail] {
		if e.head == head {
			return e
		}
	}
	return nil
}

// resetColors recolors every vertex/sink and edge colorUnused, for
// the start of a fresh VL.
func (c *cCDG) resetColors() {
	c.vcolor = make(map[int]int)
	for _, edges := range c.edgesOut {
		for _, e := range edges {
			e.color = colorUnused
		}
	}
}

// --- color set (union-find) ---

// colorSet implements the real_col union-find chain: colors can be
// merged into one another without revisiting every vertex/edge that
// already carries the merged color.
type colorSet struct {
	parent []int
}

func newColorSet(n int) *colorSet {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &colorSet{parent: p}
}

func (c *colorSet) find(x int) int {
	for c.parent[x] != x {
		c.parent[x] = c.parent[c.parent[x]]
		x = c.parent[x]
	}
	return x
}

// union merges b's class into a's, except colorBlocked and
// colorUnused never get merged away: they are fixed sentinels.
func (c *colorSet) union(a, b int) {
	ra, rb := c.find(a), c.find(b)
	if ra == rb || rb == colorBlocked || rb == colorUnused {
		return
	}
	c.parent[rb] = ra
}

func (c *colorSet) grow(to int) {
	for len(c.parent) < to {
		c.parent = append(c.parent, len(c.parent))
	}
}
