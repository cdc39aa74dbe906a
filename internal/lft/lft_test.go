package lft

import (
	"testing"

	v1 "github.com/osmcore/osmcore/api/v1"
	"github.com/osmcore/osmcore/internal/subnet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSwitch(t *testing.T, maxLID subnet.LID) *subnet.Switch {
	t.Helper()
	n := &subnet.Node{GUID: 1, Type: v1.NodeTypeSwitch}
	return subnet.NewSwitch(n, maxLID, 8)
}

func TestDiffReportsOnlyChangedBlocks(t *testing.T) {
	sw := newTestSwitch(t, 200)
	for l := range sw.LFT {
		sw.LFT[l] = 1
		sw.NewLFT[l] = 1
	}
	sw.NewLFT[70] = 2 // lands in block 1 (70/64 == 1)

	blocks := Diff(sw)
	require.Len(t, blocks, 1)
	assert.Equal(t, 1, blocks[0].BlockNum)
	assert.Equal(t, 2, blocks[0].Ports[70-BlockSize])
}

func TestDiffEmptyWhenNoChange(t *testing.T) {
	sw := newTestSwitch(t, 200)
	for l := range sw.LFT {
		sw.LFT[l] = subnet.NoPath
		sw.NewLFT[l] = subnet.NoPath
	}
	assert.Empty(t, Diff(sw))
}

func TestDiffForcesAllBlocksWhenIgnoreExisting(t *testing.T) {
	sw := newTestSwitch(t, 130)
	sw.IgnoreExistingLFTs = true
	for l := range sw.LFT {
		sw.LFT[l] = subnet.NoPath
		sw.NewLFT[l] = subnet.NoPath
	}
	assert.Len(t, Diff(sw), NumBlocks(130))
}

func TestInstallCopiesNewLFTIntoLFT(t *testing.T) {
	sw := newTestSwitch(t, 10)
	sw.NewLFT[5] = 3
	Install(sw)
	assert.Equal(t, 3, sw.LFT[5])
}
