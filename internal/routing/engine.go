// Package routing defines the pluggable routing-engine contract and
// the registry the sweep controller consults by configured name.
// Individual engines live in subpackages (minhop, ftree, torus, nue)
// and register themselves in their init() the way OpenSM's routing
// engines register via osm_ucast_mgr.
package routing

import (
	"github.com/osmcore/osmcore/internal/subnet"
	"github.com/osmcore/osmcore/pkg/config"
	"github.com/osmcore/osmcore/pkg/errdefs"
)

// Context is the per-sweep state an engine's callbacks operate on.
type Context struct {
	Subnet *subnet.Subnet
	Config *config.Config

	// DLIDToVL is filled in by engines that partition destinations
	// across virtual lanes (currently only Nue); PathSL consults it.
	DLIDToVL map[subnet.LID]uint8
}

// HopMatrixBuilder is an optional capability: engines that implement it
// get build_hop_matrices called before build_ucast_tables. If absent,
// or if it returns an error, the core runs Min-Hop unconditionally for
// the hop-matrix step.
type HopMatrixBuilder interface {
	BuildHopMatrices(ctx *Context) error
}

// Engine is the routing-engine trait. Setup/Destroy bracket one
// sweep's routing pass; BuildUcastTables does the actual LFT
// computation; PathSL must be idempotent and side-effect-free.
type Engine interface {
	Setup(ctx *Context) error
	BuildUcastTables(ctx *Context) error
	PathSL(hintSL uint8, slid, dlid subnet.LID) uint8
	Destroy()
}

// Factory constructs a fresh Engine instance; engines are stateful
// across one sweep's Setup/Destroy bracket so the registry hands out a
// new instance per sweep rather than sharing one across sweeps.
type Factory func() Engine

var registry = make(map[string]Factory)

// Register adds a named engine factory. Called from each engine
// subpackage's init().
func Register(name string, f Factory) {
	registry[name] = f
}

// New constructs the engine registered under name.
func New(name string) (Engine, error) {
	f, ok := registry[name]
	if !ok {
		return nil, errdefs.ErrNotFound
	}
	return f(), nil
}

// Names returns every registered engine name, for CLI help text.
func Names() []string {
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	return out
}
