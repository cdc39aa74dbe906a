package nue

import (
	"testing"

	"github.com/osmcore/osmcore/internal/routing"
	"github.com/osmcore/osmcore/internal/subnet"
	"github.com/osmcore/osmcore/internal/subnet/subnettest"
	"github.com/osmcore/osmcore/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildRing constructs an n-switch ring, each switch with one attached
// CA: switch i's port 1 faces its CA, port 2 faces switch i-1, port 3
// faces switch i+1 (mod n). A ring is the canonical topology whose
// naive shortest-path routing contains a cyclic channel dependency,
// making it a meaningful acyclicity check for Nue's deadlock-freedom.
func buildRing(t *testing.T, n int) (*subnettest.Builder, []subnet.GUID) {
	t.Helper()
	b := subnettest.New(subnet.LID(3 * n))

	guids := make([]subnet.GUID, n)
	for i := 0; i < n; i++ {
		guids[i] = subnet.GUID(100 + i)
	}

	lid := subnet.LID(1)
	for i := 0; i < n; i++ {
		b.AddSwitch(guids[i], lid, 4)
		lid++
	}
	caGUIDs := make([]subnet.GUID, n)
	for i := 0; i < n; i++ {
		caGUIDs[i] = subnet.GUID(1000 + i)
		b.AddCA(caGUIDs[i], lid)
		b.LinkCA(guids[i], 1, caGUIDs[i])
		lid++
	}
	for i := 0; i < n; i++ {
		b.Link(guids[i], 3, guids[(i+1)%n], 2)
	}
	return b, guids
}

func nueConfig(maxVL int) *config.Config {
	cfg, _ := config.DefaultConfig(nil,
		config.WithRoutingEngine(config.EngineNue),
		config.WithNueMaxNumVLs(maxVL),
	)
	return cfg
}

func TestNueRingRoutesWithoutChannelDependencyCycles(t *testing.T) {
	b, guids := buildRing(t, 6)
	s := b.Subnet()
	ctx := &routing.Context{Subnet: s, Config: nueConfig(2)}

	e := &Engine{}
	require.NoError(t, e.Setup(ctx))
	require.NoError(t, e.BuildUcastTables(ctx))

	require.NotEmpty(t, e.colorsByVL)
	for vl, colors := range e.colorsByVL {
		assert.True(t, VerifyEachStep(e.ccdg, colors), "vl %d has a channel dependency cycle", vl)
	}

	// Every switch must have a path (direct or escape) to every CA LID.
	for _, l := range s.AllLIDs() {
		p, err := s.PortForLID(l)
		require.NoError(t, err)
		if n, ok := s.Node(p.NodeGUID); !ok || n.Type.String() == "Switch" {
			continue
		}
		for _, guid := range guids {
			sw, ok := s.Switch(guid)
			require.True(t, ok)
			assert.NotEqual(t, subnet.NoPath, sw.NewLFT[l], "switch %d missing route to lid %d", guid, l)
		}
	}
}

func TestNuePathSLReflectsVLPartition(t *testing.T) {
	b, _ := buildRing(t, 4)
	s := b.Subnet()
	ctx := &routing.Context{Subnet: s, Config: nueConfig(2)}

	e := &Engine{}
	require.NoError(t, e.Setup(ctx))
	require.NoError(t, e.BuildUcastTables(ctx))

	seenVLs := map[uint8]bool{}
	for lid, vl := range e.dlidToVL {
		assert.Equal(t, vl, e.PathSL(0, 0, lid))
		seenVLs[vl] = true
	}
	assert.True(t, len(seenVLs) >= 1)
}

func TestNueDestinationsOnOneSwitchShareEgress(t *testing.T) {
	b := subnettest.New(16)
	const swA, swB = subnet.GUID(1), subnet.GUID(2)
	const caA1, caA2, caB = subnet.GUID(10), subnet.GUID(11), subnet.GUID(12)

	b.AddSwitch(swA, 1, 4)
	b.AddSwitch(swB, 2, 4)
	b.AddCA(caA1, 3)
	b.AddCA(caA2, 4)
	b.AddCA(caB, 5)
	b.LinkCA(swA, 1, caA1)
	b.LinkCA(swA, 2, caA2)
	b.LinkCA(swB, 1, caB)
	b.Link(swA, 3, swB, 3)

	s := b.Subnet()
	ctx := &routing.Context{Subnet: s, Config: nueConfig(1)}

	e := &Engine{}
	require.NoError(t, e.Setup(ctx))
	require.NoError(t, e.BuildUcastTables(ctx))

	swAHandle, ok := s.Switch(swA)
	require.True(t, ok)
	swBHandle, ok := s.Switch(swB)
	require.True(t, ok)

	assert.Equal(t, 3, swBHandle.NewLFT[3], "lid 3 (caA1) should egress switch B via the inter-switch port")
	assert.Equal(t, 3, swBHandle.NewLFT[4], "lid 4 (caA2) should egress switch B via the same inter-switch port")
	assert.NotEqual(t, subnet.NoPath, swAHandle.NewLFT[5])
}
