// Package dump renders human-readable topology and routing snapshots
// to cfg.DumpFilesDir, the way OpenSM's opensm-subnet.lst/opensm-lfts
// dump family does, using olekukonko/tablewriter for the tabular
// layout.
package dump

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/olekukonko/tablewriter"

	v1 "github.com/osmcore/osmcore/api/v1"
	"github.com/osmcore/osmcore/internal/subnet"
)

// WriteAll writes every dump file into dir, creating it if necessary.
// A blank dir is a no-op: dumping is an optional diagnostic, not part
// of the sweep's success path.
func WriteAll(dir string, s *subnet.Subnet) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	s.RLock()
	defer s.RUnlock()

	files := map[string]func(*subnet.Subnet) string{
		"opensm-subnet.lst":           subnetListing,
		"opensm-lfts.dump":            lftDump,
		"opensm-lid-matrix.dump":      lidMatrixDump,
		"opensm-ftree-ca-order.dump":  ftreeCAOrderDump,
	}
	for name, render := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(render(s)), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func sortedNodes(s *subnet.Subnet) []*subnet.Node {
	nodes := s.Nodes()
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].GUID < nodes[j].GUID })
	return nodes
}

func sortedSwitches(s *subnet.Subnet) []*subnet.Switch {
	sws := s.Switches()
	sort.Slice(sws, func(i, j int) bool { return sws[i].Node.GUID < sws[j].Node.GUID })
	return sws
}

// subnetListing renders opensm-subnet.lst: one row per discovered node.
func subnetListing(s *subnet.Subnet) string {
	buf := &bytes.Buffer{}
	table := tablewriter.NewWriter(buf)
	table.SetHeader([]string{"GUID", "Type", "Base LID", "LMC", "Ports"})
	for _, n := range sortedNodes(s) {
		table.Append([]string{
			fmt.Sprintf("0x%016x", uint64(n.GUID)),
			n.Type.String(),
			fmt.Sprintf("%d", n.BaseLID),
			fmt.Sprintf("%d", n.LMC),
			fmt.Sprintf("%d", len(n.PhysicalPorts)),
		})
	}
	table.Render()
	return buf.String()
}

// lftDump renders opensm-lfts.dump: every switch's LID->port entries,
// skipping unreachable ones.
func lftDump(s *subnet.Subnet) string {
	buf := &bytes.Buffer{}
	for _, sw := range sortedSwitches(s) {
		fmt.Fprintf(buf, "Switch 0x%016x:\n", uint64(sw.Node.GUID))
		table := tablewriter.NewWriter(buf)
		table.SetHeader([]string{"LID", "Port"})
		for lid, port := range sw.LFT {
			if port == subnet.NoPath {
				continue
			}
			table.Append([]string{fmt.Sprintf("%d", lid), fmt.Sprintf("%d", port)})
		}
		table.Render()
	}
	return buf.String()
}

// lidMatrixDump renders opensm-lid-matrix.dump: the hop-count matrix
// the routing engine builds, one table per switch.
func lidMatrixDump(s *subnet.Subnet) string {
	buf := &bytes.Buffer{}
	for _, sw := range sortedSwitches(s) {
		fmt.Fprintf(buf, "Switch 0x%016x hop matrix:\n", uint64(sw.Node.GUID))
		table := tablewriter.NewWriter(buf)
		header := []string{"LID"}
		if len(sw.Hops) > 0 {
			for p := range sw.Hops[0] {
				header = append(header, fmt.Sprintf("P%d", p))
			}
		}
		table.SetHeader(header)
		for lid, hops := range sw.Hops {
			row := []string{fmt.Sprintf("%d", lid)}
			for _, h := range hops {
				if h == subnet.NoPath {
					row = append(row, "-")
				} else {
					row = append(row, fmt.Sprintf("%d", h))
				}
			}
			table.Append(row)
		}
		table.Render()
	}
	return buf.String()
}

// ftreeCAOrderDump renders opensm-ftree-ca-order.dump: CA GUIDs in
// ascending base-LID order, the indexing convention a Fat-Tree compute
// topology file is matched against.
func ftreeCAOrderDump(s *subnet.Subnet) string {
	buf := &bytes.Buffer{}
	var cas []*subnet.Node
	for _, n := range s.Nodes() {
		if n.Type == v1.NodeTypeCA {
			cas = append(cas, n)
		}
	}
	sort.Slice(cas, func(i, j int) bool { return cas[i].BaseLID < cas[j].BaseLID })

	table := tablewriter.NewWriter(buf)
	table.SetHeader([]string{"Order", "GUID", "LID"})
	for i, n := range cas {
		table.Append([]string{
			fmt.Sprintf("%d", i),
			fmt.Sprintf("0x%016x", uint64(n.GUID)),
			fmt.Sprintf("%d", n.BaseLID),
		})
	}
	table.Render()
	return buf.String()
}
