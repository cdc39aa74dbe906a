package sweep

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/osmcore/osmcore/api/v1"
	"github.com/osmcore/osmcore/internal/notice"
	"github.com/osmcore/osmcore/internal/subnet"
	"github.com/osmcore/osmcore/internal/subnet/subnettest"
	"github.com/osmcore/osmcore/pkg/config"
)

type fakeDiscoverer struct {
	changed     bool
	lightErr    error
	heavyErr    error
	masterDown  bool
	heavyCalled int
}

func (f *fakeDiscoverer) LightSweep(ctx context.Context, s *subnet.Subnet) (bool, error) {
	return f.changed, f.lightErr
}

func (f *fakeDiscoverer) HeavySweep(ctx context.Context, s *subnet.Subnet) error {
	f.heavyCalled++
	s.MasterSMPortDown = f.masterDown
	return f.heavyErr
}

func openMemStore(t *testing.T) *notice.Store {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store, err := notice.New(context.Background(), db, "")
	require.NoError(t, err)
	return store
}

func TestTickStaysIdleWhenLightSweepSeesNoChange(t *testing.T) {
	b, _, _ := subnettest.TwoSwitchPair()
	s := b.Subnet()
	cfg, _ := config.DefaultConfig(nil, config.WithRoutingEngine(config.EngineMinHop))
	disc := &fakeDiscoverer{changed: false}
	store := openMemStore(t)

	c := New(s, cfg, disc, nil, store)
	require.NoError(t, c.Tick(context.Background()))
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, 0, disc.heavyCalled)
}

func TestTickReachesSubnetUpOnChange(t *testing.T) {
	b, _, _ := subnettest.TwoSwitchPair()
	s := b.Subnet()
	cfg, _ := config.DefaultConfig(nil, config.WithRoutingEngine(config.EngineMinHop))
	disc := &fakeDiscoverer{changed: true}
	store := openMemStore(t)

	c := New(s, cfg, disc, nil, store)
	require.NoError(t, c.Tick(context.Background()))
	assert.Equal(t, StateSubnetUp, c.State())
	assert.Equal(t, 1, disc.heavyCalled)
	assert.Equal(t, config.EngineMinHop, c.EngineName())
}

func TestTickFallsBackToMinHopOnUnknownEngine(t *testing.T) {
	b, _, _ := subnettest.TwoSwitchPair()
	s := b.Subnet()
	cfg, _ := config.DefaultConfig(nil, config.WithRoutingEngine(config.EngineMinHop))
	// Validate rejects unknown engine names, so set it after construction.
	cfg.RoutingEngine = "bogus-engine"
	disc := &fakeDiscoverer{changed: true}
	store := openMemStore(t)

	c := New(s, cfg, disc, nil, store)
	require.NoError(t, c.Tick(context.Background()))
	assert.Equal(t, StateSubnetUp, c.State())
	assert.Equal(t, config.EngineMinHop, c.EngineName())
}

func TestTickEntersErrorStateOnMasterSMPortDown(t *testing.T) {
	b, _, _ := subnettest.TwoSwitchPair()
	s := b.Subnet()
	cfg, _ := config.DefaultConfig(nil, config.WithRoutingEngine(config.EngineMinHop))
	disc := &fakeDiscoverer{changed: true, masterDown: true}
	store := openMemStore(t)

	c := New(s, cfg, disc, nil, store)
	require.Error(t, c.Tick(context.Background()))
	assert.Equal(t, StateError, c.State())
}

func TestFailDoesNotBannerBeforeMaxRetries(t *testing.T) {
	b, _, _ := subnettest.TwoSwitchPair()
	s := b.Subnet()
	cfg, err := config.DefaultConfig(nil, config.WithRoutingEngine(config.EngineMinHop), config.WithMaxSweepRetries(3))
	require.NoError(t, err)
	disc := &fakeDiscoverer{changed: true, masterDown: true}
	store := openMemStore(t)

	c := New(s, cfg, disc, nil, store)
	for i := 0; i < 2; i++ {
		require.Error(t, c.Tick(context.Background()))
	}

	notices, err := store.Since(context.Background(), time.Time{})
	require.NoError(t, err)
	for _, n := range notices {
		assert.NotEqual(t, v1.NoticeKindErrorBanner, n.Kind)
	}

	require.Error(t, c.Tick(context.Background()))
	notices, err = store.Since(context.Background(), time.Time{})
	require.NoError(t, err)
	var banners int
	for _, n := range notices {
		if n.Kind == v1.NoticeKindErrorBanner {
			banners++
		}
	}
	assert.Equal(t, 1, banners)
}

func TestSubnetUpResetsFailureCounterAndTrapsUseNewPortLID(t *testing.T) {
	b, aGUID, _ := subnettest.TwoSwitchPair()
	s := b.Subnet()
	cfg, err := config.DefaultConfig(nil, config.WithRoutingEngine(config.EngineMinHop), config.WithMaxSweepRetries(1))
	require.NoError(t, err)
	store := openMemStore(t)

	a := b.Switch(aGUID)
	for _, pp := range a.Node.PhysicalPorts {
		pp.IsNew = true
	}

	disc := &fakeDiscoverer{changed: true, masterDown: true}
	c := New(s, cfg, disc, nil, store)
	require.Error(t, c.Tick(context.Background()))
	require.Equal(t, 1, c.consecutiveFailures)

	disc.masterDown = false
	require.NoError(t, c.Tick(context.Background()))
	assert.Equal(t, StateSubnetUp, c.State())
	assert.Equal(t, 0, c.consecutiveFailures)

	notices, err := store.Since(context.Background(), time.Time{})
	require.NoError(t, err)
	require.NotEmpty(t, notices)
	for _, n := range notices {
		if n.Kind != v1.NoticeKindTrap64 {
			continue
		}
		assert.Equal(t, uint64(a.Node.GUID), n.GUID)
		assert.Equal(t, uint16(a.Node.BaseLID), n.LID)
	}
}
