package discover

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osmcore/osmcore/internal/subnet"
)

func writeTopology(t *testing.T, topo TopologyFile) string {
	t.Helper()
	data, err := json.Marshal(topo)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "topology.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func twoSwitchTopology() TopologyFile {
	return TopologyFile{
		MaxLID: 4,
		Nodes: []NodeSpec{
			{GUID: 1, Type: "switch", BaseLID: 1, NumPorts: 4},
			{GUID: 2, Type: "switch", BaseLID: 2, NumPorts: 4},
			{GUID: 3, Type: "ca", BaseLID: 3},
			{GUID: 4, Type: "ca", BaseLID: 4},
		},
		Links: []LinkSpec{
			{AGUID: 1, APort: 1, BGUID: 3, BPort: 0},
			{AGUID: 2, APort: 1, BGUID: 4, BPort: 0},
			{AGUID: 1, APort: 3, BGUID: 2, BPort: 3},
		},
	}
}

func TestPeekMaxLID(t *testing.T) {
	path := writeTopology(t, twoSwitchTopology())
	maxLID, err := PeekMaxLID(path)
	require.NoError(t, err)
	assert.Equal(t, subnet.LID(4), maxLID)
}

func TestStaticFileDiscovererPopulatesSubnet(t *testing.T) {
	path := writeTopology(t, twoSwitchTopology())
	maxLID, err := PeekMaxLID(path)
	require.NoError(t, err)

	s := subnet.New(maxLID)
	d := NewStaticFileDiscoverer(path)

	changed, err := d.LightSweep(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, changed)

	require.NoError(t, d.HeavySweep(context.Background(), s))

	s.RLock()
	defer s.RUnlock()
	assert.Len(t, s.Nodes(), 4)
	sw, ok := s.Switch(1)
	require.True(t, ok)
	assert.True(t, sw.Node.PhysicalPorts[3].Healthy())

	changed, err = d.LightSweep(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestStaticFileDiscovererReload(t *testing.T) {
	path := writeTopology(t, twoSwitchTopology())
	maxLID, _ := PeekMaxLID(path)
	s := subnet.New(maxLID)
	d := NewStaticFileDiscoverer(path)

	require.NoError(t, d.HeavySweep(context.Background(), s))
	changed, _ := d.LightSweep(context.Background(), s)
	assert.False(t, changed)

	d.Reload()
	changed, _ = d.LightSweep(context.Background(), s)
	assert.True(t, changed)
}

func TestHeavySweepRejectsUnknownNodeType(t *testing.T) {
	path := writeTopology(t, TopologyFile{
		MaxLID: 1,
		Nodes:  []NodeSpec{{GUID: 1, Type: "router", BaseLID: 1}},
	})
	s := subnet.New(1)
	d := NewStaticFileDiscoverer(path)
	require.Error(t, d.HeavySweep(context.Background(), s))
}
