package ftree

import (
	"testing"

	"github.com/osmcore/osmcore/internal/routing"
	"github.com/osmcore/osmcore/internal/subnet"
	"github.com/osmcore/osmcore/internal/subnet/subnettest"
	"github.com/osmcore/osmcore/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildTwoLevelFatTree constructs a 4-ary 2-tree fixture: 2 spines
// (rank 0), 4 leaves (rank 1), 2 CAs per leaf (8 total).
func buildTwoLevelFatTree(t *testing.T) (*subnettest.Builder, []subnet.GUID, []subnet.GUID) {
	t.Helper()
	b := subnettest.New(64)

	spineGUIDs := []subnet.GUID{101, 102}
	leafGUIDs := []subnet.GUID{1, 2, 3, 4}

	lid := subnet.LID(1)
	for _, g := range spineGUIDs {
		b.AddSwitch(g, lid, 4)
		lid++
	}
	for _, g := range leafGUIDs {
		b.AddSwitch(g, lid, 4)
		lid++
	}

	caGUID := subnet.GUID(1000)
	for _, leaf := range leafGUIDs {
		for i := 0; i < 2; i++ {
			b.AddCA(caGUID, lid)
			b.LinkCA(leaf, i, caGUID)
			caGUID++
			lid++
		}
	}

	// Each leaf's ports 2,3 go up to spine 0,1; each spine's port i
	// (0..3) goes down to leaf i.
	for li, leaf := range leafGUIDs {
		for si, spine := range spineGUIDs {
			b.Link(leaf, 2+si, spine, li)
		}
	}

	return b, spineGUIDs, leafGUIDs
}

func newCtx(b *subnettest.Builder) *routing.Context {
	cfg, _ := config.DefaultConfig(nil, config.WithRoutingEngine(config.EngineFatTree))
	return &routing.Context{Subnet: b.Subnet(), Config: cfg}
}

func TestFatTreeLoadBalanceInvariant(t *testing.T) {
	b, spineGUIDs, leafGUIDs := buildTwoLevelFatTree(t)
	ctx := newCtx(b)

	e := &Engine{}
	require.NoError(t, e.Setup(ctx))
	require.NoError(t, e.BuildUcastTables(ctx))
	require.False(t, e.fellBack, "fat-tree should not fall back on a clean two-level tree")

	// Every spine-down group must have counter_down == 2 (number of CAs
	// behind that leaf).
	for _, spine := range spineGUIDs {
		for _, g := range e.down[spine] {
			assert.Equal(t, 2, g.counterDown, "spine %d down-group to %d", spine, g.remote)
		}
	}

	// Every leaf-up group's counter_up sums to the number of
	// destinations not local to that leaf (6), spread across up groups.
	for _, leaf := range leafGUIDs {
		total := 0
		for _, g := range e.up[leaf] {
			total += g.counterUp
		}
		assert.Equal(t, 6, total, "leaf %d total up routes", leaf)
	}
}

func TestFatTreeEveryLFTEntryReachesDestination(t *testing.T) {
	b, _, leafGUIDs := buildTwoLevelFatTree(t)
	ctx := newCtx(b)

	e := &Engine{}
	require.NoError(t, e.Setup(ctx))
	require.NoError(t, e.BuildUcastTables(ctx))

	s := b.Subnet()
	for _, l := range s.AllLIDs() {
		for _, leaf := range leafGUIDs {
			sw := b.Switch(leaf)
			assert.NotEqual(t, subnet.NoPath, sw.NewLFT[l], "leaf %d has no route to lid %d", leaf, l)
		}
	}
}

func TestFatTreeFallsBackWhenLMCNonZero(t *testing.T) {
	b, _, _ := buildTwoLevelFatTree(t)
	cfg, _ := config.DefaultConfig(nil, config.WithRoutingEngine(config.EngineFatTree), config.WithLMC(1))
	ctx := &routing.Context{Subnet: b.Subnet(), Config: cfg}

	e := &Engine{}
	require.NoError(t, e.Setup(ctx))
	require.NoError(t, e.BuildUcastTables(ctx))
	assert.True(t, e.fellBack)
}
