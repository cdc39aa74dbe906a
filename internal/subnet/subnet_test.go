package subnet

import (
	"testing"

	v1 "github.com/osmcore/osmcore/api/v1"
	"github.com/osmcore/osmcore/pkg/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddPortAndLookup(t *testing.T) {
	s := New(16)

	p := &Port{GUID: 1, NodeGUID: 100, Base: 3, LMC: 1}
	require.NoError(t, s.AddPort(p))

	got, err := s.PortForLID(3)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	got, err = s.PortForLID(4)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	_, err = s.PortForLID(5)
	assert.True(t, errdefs.IsNotFound(err))
}

func TestAddPortConflict(t *testing.T) {
	s := New(16)
	require.NoError(t, s.AddPort(&Port{GUID: 1, Base: 3, LMC: 0}))

	err := s.AddPort(&Port{GUID: 2, Base: 3, LMC: 0})
	assert.True(t, errdefs.IsAlreadyExists(err))
}

func TestResetForHeavySweepClearsLIDVector(t *testing.T) {
	s := New(16)
	require.NoError(t, s.AddPort(&Port{GUID: 1, Base: 3, LMC: 0}))

	s.Lock()
	s.ResetForHeavySweep()
	s.Unlock()

	_, err := s.PortForLID(3)
	assert.True(t, errdefs.IsNotFound(err))
}

func TestPhysicalPortHealthy(t *testing.T) {
	a := &PhysicalPort{State: v1.LinkStateActive}
	b := &PhysicalPort{State: v1.LinkStateActive}
	a.Remote, b.Remote = b, a

	assert.True(t, a.Healthy())

	b.Faulty = true
	assert.False(t, a.Healthy())

	var edge PhysicalPort
	assert.False(t, edge.Healthy())
}

func TestSwitchResetForRoutingPass(t *testing.T) {
	n := &Node{GUID: 1, Type: v1.NodeTypeSwitch}
	sw := NewSwitch(n, 7, 4)
	sw.NewLFT[3] = 2

	sw.ResetForRoutingPass()
	for _, e := range sw.NewLFT {
		assert.Equal(t, NoPath, e)
	}
}

func TestAllLIDsDedupesLMCRange(t *testing.T) {
	s := New(16)
	require.NoError(t, s.AddPort(&Port{GUID: 1, Base: 3, LMC: 2}))

	lids := s.AllLIDs()
	require.Len(t, lids, 1)
	assert.Equal(t, LID(3), lids[0])
}
