package nue

import (
	"container/heap"
	"math"
	"sort"

	"github.com/osmcore/osmcore/internal/metrics"
	"github.com/osmcore/osmcore/internal/subnet"
)

// routingState bundles the per-sweep graph, cCDG, and color set that
// every destination's Dijkstra run shares.
type routingState struct {
	g      *graph
	c      *cCDG
	colors *colorSet

	// escape path: an up*/down* spanning tree rooted at a centrally
	// chosen switch, computed once per sweep and used as an
	// independently acyclic fallback when a destination's own Dijkstra
	// run cannot reach every switch. Escape-path turns are not also
	// registered in the cCDG/color bookkeeping — see DESIGN.md.
	parentOf   map[subnet.GUID]subnet.GUID
	parentLink map[subnet.GUID]int
	root       subnet.GUID
}

// pqItem/priorityQueue implement container/heap for Dijkstra.
type pqItem struct {
	guid subnet.GUID
	dist float64
}
type priorityQueue []*pqItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].dist < pq[j].dist }
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) { *pq = append(*pq, x.(*pqItem)) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// buildEscapeTree picks a central switch (the one minimizing total BFS
// distance to every other switch, a cheap proxy for betweenness
// centrality) and computes an up*/down* spanning tree rooted there.
func buildEscapeTree(g *graph) *routingState {
	rs := &routingState{
		g:          g,
		parentOf:   make(map[subnet.GUID]subnet.GUID),
		parentLink: make(map[subnet.GUID]int),
	}
	if len(g.nodes) == 0 {
		return rs
	}

	guids := make([]subnet.GUID, 0, len(g.nodes))
	for guid := range g.nodes {
		guids = append(guids, guid)
	}
	sort.Slice(guids, func(i, j int) bool { return guids[i] < guids[j] })

	bestTotal := -1
	best := guids[0]
	for _, guid := range guids {
		total := bfsTotalDistance(g, guid)
		if bestTotal == -1 || total < bestTotal {
			bestTotal = total
			best = guid
		}
	}
	rs.root = best

	queue := []subnet.GUID{best}
	visited := map[subnet.GUID]bool{best: true}
	for i := 0; i < len(queue); i++ {
		cur := queue[i]
		for _, linkID := range g.nodes[cur].outLinks {
			link := g.links[linkID]
			if visited[link.to] {
				continue
			}
			visited[link.to] = true
			rs.parentOf[link.to] = cur
			rs.parentLink[link.to] = linkID
			queue = append(queue, link.to)
		}
	}
	return rs
}

func bfsTotalDistance(g *graph, src subnet.GUID) int {
	dist := map[subnet.GUID]int{src: 0}
	queue := []subnet.GUID{src}
	total := 0
	for i := 0; i < len(queue); i++ {
		cur := queue[i]
		for _, linkID := range g.nodes[cur].outLinks {
			to := g.links[linkID].to
			if _, ok := dist[to]; ok {
				continue
			}
			dist[to] = dist[cur] + 1
			total += dist[to]
			queue = append(queue, to)
		}
	}
	if len(dist) < len(g.nodes) {
		// Unreachable switches cost heavily, so a disconnected candidate
		// is never chosen as central over a fully-reaching one.
		total += (len(g.nodes) - len(dist)) * len(g.nodes)
	}
	return total
}

func isAncestor(parentOf map[subnet.GUID]subnet.GUID, anc, desc subnet.GUID) bool {
	cur := desc
	for {
		if cur == anc {
			return true
		}
		p, ok := parentOf[cur]
		if !ok {
			return false
		}
		cur = p
	}
}

// escapeNextHop returns the link id switch src should use, under the
// up*/down* escape tree, to make progress toward dst.
func (rs *routingState) escapeNextHop(src, dst subnet.GUID) (int, bool) {
	if src == dst {
		return -1, false
	}
	if isAncestor(rs.parentOf, src, dst) {
		cur := dst
		for rs.parentOf[cur] != src {
			p, ok := rs.parentOf[cur]
			if !ok {
				return -1, false
			}
			cur = p
		}
		link := rs.g.link(src, cur)
		if link == nil {
			return -1, false
		}
		return link.id, true
	}
	linkID, ok := rs.parentLink[src]
	return linkID, ok
}

// cycleSafePromote validates and commits the turn from the link at
// tailIdx to the link (or sink) at headIdx under colorD.
// Returns false (and leaves the edge BLOCKED) if committing would
// close a cycle within color_D's own subgraph.
func cycleSafePromote(c *cCDG, colors *colorSet, tailIdx, headIdx, colorD int) bool {
	e := c.edgeBetween(tailIdx, headIdx)
	if e == nil {
		return false
	}
	if colors.find(e.color) == colorBlocked {
		return false
	}

	headColor := colors.find(c.color(headIdx))
	if headColor == colorD {
		if reachableForward(c, colors, headIdx, tailIdx, colorD) {
			e.color = colorBlocked
			return false
		}
	} else if headColor != colorUnused {
		colors.grow(max(headColor, colorD) + 1)
		colors.union(colorD, headColor)
	}

	c.setColor(tailIdx, colorD)
	c.setColor(headIdx, colorD)
	e.color = colorD
	return true
}

// reachableForward searches color_D's already-committed subgraph
// (edges whose color resolves to colorD) for a path from `from` to
// `to`, used to reject a turn that would close a cycle.
func reachableForward(c *cCDG, colors *colorSet, from, to, colorD int) bool {
	if from == to {
		return true
	}
	visited := map[int]bool{from: true}
	stack := []int{from}
	for len(stack) > 0 {
		n := len(stack) - 1
		cur := stack[n]
		stack = stack[:n]
		for _, e := range c.edgesOut[cur] {
			if colors.find(e.color) != colorD {
				continue
			}
			if e.head == to {
				return true
			}
			if !visited[e.head] {
				visited[e.head] = true
				stack = append(stack, e.head)
			}
		}
	}
	return false
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// routeDestination runs a modified Dijkstra rooted at destGUID over
// the reverse network graph: a switch's distance is how
// many hops it is from the destination, and its usedLink is the
// cCDG vertex (or sink) it egresses through to make progress. Nodes
// the main pass and local backtracking cannot reach fall back to the
// escape-path tree.
func (rs *routingState) routeDestination(destGUID subnet.GUID, colorD int) map[subnet.GUID]int {
	g, c, colors := rs.g, rs.c, rs.colors
	g.resetDijkstraState()
	for _, n := range g.nodes {
		n.distance = math.Inf(1)
	}

	destNode, ok := g.nodes[destGUID]
	if !ok {
		return nil
	}
	sinkIdx := c.sinks[destGUID]
	c.setColor(sinkIdx, colorD)
	destNode.reached = true
	destNode.distance = 0
	destNode.usedLink = sinkIdx

	pq := &priorityQueue{}
	heap.Init(pq)
	heap.Push(pq, &pqItem{guid: destGUID, dist: 0})
	finalized := map[subnet.GUID]bool{}

	for pq.Len() > 0 {
		item := heap.Pop(pq).(*pqItem)
		x := item.guid
		if finalized[x] {
			continue
		}
		finalized[x] = true
		xNode := g.nodes[x]

		for _, linkID := range xNode.inLinks {
			link := g.links[linkID]
			y := link.from
			if finalized[y] {
				continue
			}
			yNode := g.nodes[y]
			cand := xNode.distance + link.weight
			if yNode.reached && cand >= yNode.distance {
				continue
			}
			if !cycleSafePromote(c, colors, linkID, xNode.usedLink, colorD) {
				continue
			}
			if yNode.reached {
				yNode.backtrack = append(yNode.backtrack, yNode.usedLink)
			}
			yNode.distance = cand
			yNode.reached = true
			yNode.usedLink = linkID
			heap.Push(pq, &pqItem{guid: y, dist: cand})
		}
	}

	for _, n := range g.nodes {
		if !n.reached {
			rs.localBacktrack(n, colorD)
		}
	}

	result := make(map[subnet.GUID]int)
	for guid, n := range g.nodes {
		if guid == destGUID {
			continue
		}
		if n.reached && n.usedLink >= 0 && n.usedLink < c.numLinks {
			result[guid] = n.usedLink
			continue
		}
		if linkID, ok := rs.escapeNextHop(guid, destGUID); ok {
			metrics.IncNueEscape()
			result[guid] = linkID
		}
	}
	return result
}

// localBacktrack is a simplified single-level backtrack: for each
// unreached node, retry every healthy predecessor's current and
// previously-superseded continuations (its backtrack stack) until one
// passes Cycle-Safe Promotion.
func (rs *routingState) localBacktrack(n *networkNode, colorD int) {
	g, c, colors := rs.g, rs.c, rs.colors
	for _, linkID := range n.outLinks {
		link := g.links[linkID]
		next := g.nodes[link.to]
		if !next.reached {
			continue
		}
		candidates := append([]int{next.usedLink}, next.backtrack...)
		for _, headIdx := range candidates {
			metrics.IncNueBacktrack()
			if cycleSafePromote(c, colors, linkID, headIdx, colorD) {
				n.reached = true
				n.distance = next.distance + link.weight
				n.usedLink = linkID
				return
			}
		}
	}
}
