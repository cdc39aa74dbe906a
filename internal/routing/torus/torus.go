// Package torus implements the coordinate-based Torus-2QoS unicast
// routing engine: BFS coordinate assignment along configured seed
// directions, dimension-ordered greedy routing with dateline-aware VL
// assignment.
//
// Coordinate assignment here uses a uniform port->(dimension,direction)
// convention supplied by configuration (config.TorusPortAxis) rather
// than the source's per-switch face/perpendicular-finding search: since
// every switch in a constructed torus wires its ports the same way,
// propagating along the configured axis table reaches the same
// coordinates face-finding would without needing 4-cycle enumeration.
// Irregularly-cabled fabrics that would require face-finding to
// disambiguate a ring from a face are out of scope for this
// simplification (see DESIGN.md).
package torus

import (
	"sort"

	v1 "github.com/osmcore/osmcore/api/v1"
	"github.com/osmcore/osmcore/internal/routing"
	"github.com/osmcore/osmcore/internal/subnet"
	"github.com/osmcore/osmcore/pkg/config"
	"github.com/osmcore/osmcore/pkg/errdefs"
)

func init() {
	routing.Register("torus", func() routing.Engine { return &Engine{} })
}

// coord is a switch's position in up to 3 dimensions; unused trailing
// dimensions stay zero.
type coord [3]int

// Engine is the Torus-2QoS routing engine.
type Engine struct {
	dims    []int
	mesh    []bool
	offsets []int

	coords map[subnet.GUID]coord
	// lidCoord maps every routable LID to the coordinate of the switch
	// that owns (or directly serves) it, populated during route() so
	// PathSL can resolve slid/dlid without touching the subnet.
	lidCoord map[subnet.LID]coord
}

func (e *Engine) Setup(ctx *routing.Context) error {
	e.coords = nil
	e.lidCoord = nil
	return nil
}

func (e *Engine) Destroy() {}

// BuildUcastTables assigns coordinates, then routes every destination
// dimension-by-dimension in X, Y, Z order.
func (e *Engine) BuildUcastTables(ctx *routing.Context) error {
	cfg := ctx.Config
	e.dims = append([]int(nil), cfg.TorusDims...)
	e.mesh = append([]bool(nil), cfg.TorusMesh...)
	e.offsets = append([]int(nil), cfg.TorusDatelineOffsets...)
	if len(e.dims) < 2 || len(e.dims) > 3 {
		return errdefs.ErrInvalidArgument
	}
	for len(e.offsets) < len(e.dims) {
		e.offsets = append(e.offsets, 0)
	}
	for len(e.mesh) < len(e.dims) {
		e.mesh = append(e.mesh, false)
	}

	axisToPort := invertPortAxis(cfg.TorusPortAxis)

	coords, err := e.assignCoordinates(ctx.Subnet, cfg)
	if err != nil {
		return err
	}
	e.coords = coords
	e.lidCoord = make(map[subnet.LID]coord)

	return e.route(ctx.Subnet, axisToPort)
}

// PathSL recomputes, from slid/dlid's owning switches' coordinates, how
// many dimensions the routed path crosses a dateline in, and bumps
// hintSL by that count — idempotent and side-effect-free.
func (e *Engine) PathSL(hintSL uint8, slid, dlid subnet.LID) uint8 {
	if e.lidCoord == nil {
		return hintSL
	}
	sc, sok := e.lidCoord[slid]
	dc, dok := e.lidCoord[dlid]
	if !sok || !dok {
		return hintSL
	}
	crossings := 0
	for d := range e.dims {
		_, crosses := e.ringDelta(d, sc[d], dc[d])
		if crosses {
			crossings++
		}
	}
	return hintSL + uint8(crossings)
}

func invertPortAxis(portAxis map[int]config.TorusAxis) map[[2]int]int {
	out := make(map[[2]int]int, len(portAxis))
	for port, axis := range portAxis {
		out[[2]int{axis.Dim, axis.Sign}] = port
	}
	return out
}

// ringDelta returns the chosen step direction (+1/-1/0) and whether
// taking it crosses dimension d's dateline, shifted by that
// dimension's configured offset.
func (e *Engine) ringDelta(d, cur, dst int) (direction int, crosses bool) {
	if cur == dst {
		return 0, false
	}
	radix := e.dims[d]
	offset := 0
	if d < len(e.offsets) {
		offset = e.offsets[d]
	}

	if d < len(e.mesh) && e.mesh[d] {
		if dst > cur {
			return 1, false
		}
		return -1, false
	}

	forward := ((dst - cur) % radix + radix) % radix
	backward := ((cur - dst) % radix + radix) % radix

	curR := ((cur-offset)%radix + radix) % radix
	dstR := ((dst-offset)%radix + radix) % radix

	if forward <= backward {
		return 1, curR > dstR
	}
	return -1, curR < dstR
}

// assignCoordinates runs BFS from the configured seed switch,
// propagating coordinates through the uniform port-axis convention.
func (e *Engine) assignCoordinates(s *subnet.Subnet, cfg *config.Config) (map[subnet.GUID]coord, error) {
	s.RLock()
	defer s.RUnlock()

	seed := subnet.GUID(cfg.TorusSeedSwitchGUID)
	if _, ok := s.Switch(seed); !ok {
		return nil, errdefs.ErrInvalidArgument
	}

	portAxis := cfg.TorusPortAxis
	coords := map[subnet.GUID]coord{seed: {}}
	queue := []subnet.GUID{seed}

	for i := 0; i < len(queue); i++ {
		cur := queue[i]
		curCoord := coords[cur]
		sw, ok := s.Switch(cur)
		if !ok {
			continue
		}
		ports := make([]int, 0, len(sw.Node.PhysicalPorts))
		for p := range sw.Node.PhysicalPorts {
			ports = append(ports, p)
		}
		sort.Ints(ports)

		for _, p := range ports {
			axis, ok := portAxis[p]
			if !ok {
				continue
			}
			pp := sw.Node.PhysicalPorts[p]
			if !pp.Healthy() {
				continue
			}
			remoteSw, ok := s.Switch(pp.Remote.NodeGUID)
			if !ok {
				continue
			}
			neighborCoord := curCoord
			radix := e.dims[axis.Dim]
			if axis.Dim < len(e.mesh) && e.mesh[axis.Dim] {
				neighborCoord[axis.Dim] = curCoord[axis.Dim] + axis.Sign
			} else {
				neighborCoord[axis.Dim] = ((curCoord[axis.Dim]+axis.Sign)%radix + radix) % radix
			}

			if _, seen := coords[remoteSw.Node.GUID]; !seen {
				coords[remoteSw.Node.GUID] = neighborCoord
				queue = append(queue, remoteSw.Node.GUID)
			}
		}
	}

	for _, sw := range s.Switches() {
		if _, ok := coords[sw.Node.GUID]; !ok {
			return nil, errdefs.ErrFailedPrecondition
		}
	}
	return coords, nil
}

// route implements dimension-ordered greedy routing: for every switch
// and every destination LID, advance the first dimension that differs
// between the switch's and destination's coordinates.
func (e *Engine) route(s *subnet.Subnet, axisToPort map[[2]int]int) error {
	s.Lock()
	defer s.Unlock()

	for _, sw := range s.Switches() {
		sw.ResetForRoutingPass()
	}

	type dest struct {
		lid  subnet.LID
		c    coord
		// leafGUID is the switch directly attached to this
		// destination's CA; edgePort is that switch's physical port
		// reaching the CA.
		leafGUID subnet.GUID
		edgePort int
	}

	var destinations []dest
	for _, l := range s.AllLIDs() {
		p, err := s.PortForLID(l)
		if err != nil {
			continue
		}
		n, ok := s.Node(p.NodeGUID)
		if !ok || n.Type != v1.NodeTypeCA {
			continue
		}
		leafGUID, edgePort, ok := findEdgePort(s, n.GUID)
		if !ok {
			continue
		}
		c, ok := e.coords[leafGUID]
		if !ok {
			continue
		}
		destinations = append(destinations, dest{lid: l, c: c, leafGUID: leafGUID, edgePort: edgePort})
		e.lidCoord[l] = c
	}

	for _, sw := range s.Switches() {
		myCoord := e.coords[sw.Node.GUID]
		for _, d := range destinations {
			if sw.Node.GUID == d.leafGUID {
				sw.NewLFT[d.lid] = d.edgePort
				continue
			}
			port, ok := e.nextHop(myCoord, d.c, axisToPort)
			if !ok {
				sw.NewLFT[d.lid] = subnet.NoPath
				continue
			}
			sw.NewLFT[d.lid] = port
		}
	}
	return nil
}

func (e *Engine) nextHop(cur, dst coord, axisToPort map[[2]int]int) (int, bool) {
	for d := range e.dims {
		if cur[d] == dst[d] {
			continue
		}
		direction, _ := e.ringDelta(d, cur[d], dst[d])
		port, ok := axisToPort[[2]int{d, direction}]
		if !ok {
			return 0, false
		}
		return port, true
	}
	return 0, false
}

// findEdgePort locates the switch and physical port directly attached
// to CA guid.
func findEdgePort(s *subnet.Subnet, caGUID subnet.GUID) (subnet.GUID, int, bool) {
	ca, ok := s.Node(caGUID)
	if !ok {
		return 0, 0, false
	}
	for _, pp := range ca.PhysicalPorts {
		if pp.Remote == nil {
			continue
		}
		if sw, ok := s.Switch(pp.Remote.NodeGUID); ok {
			return sw.Node.GUID, pp.Remote.Num, true
		}
	}
	return 0, 0, false
}
