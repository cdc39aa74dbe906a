// Package config defines the programmatic configuration surface for the
// sweep controller and routing engines. Flag/file parsing lives in
// cmd/osmcore; this package only holds the validated struct.
package config

import (
	"errors"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

var (
	ErrInvalidRoutingEngine = errors.New("invalid routing engine")
	ErrInvalidLMC           = errors.New("invalid lmc")
	ErrInvalidNueMaxVLs     = errors.New("invalid nue max num vls")
	ErrInvalidTorusDims     = errors.New("invalid torus dimensions")
)

// Config holds every tunable the sweep controller and routing engines
// read at startup. It is immutable once validated.
type Config struct {
	// RoutingEngine selects one of "minhop", "ftree", "torus", "nue".
	RoutingEngine string `json:"routing_engine"`

	// LMC is the LID Mask Control value; 0 disables LMC-based spreading.
	LMC uint8 `json:"lmc"`

	// SweepInterval is the idle-to-idle polling period of the sweep
	// state machine.
	SweepInterval metav1.Duration `json:"sweep_interval"`

	// AvoidThrottledLinks is carried in the configuration only; no
	// routing or hop-matrix code reads it, so throttled links are not
	// excluded from hop-matrix construction.
	AvoidThrottledLinks bool `json:"avoid_throttled_links"`

	// NueMaxNumVLs bounds the number of virtual lanes the Nue engine
	// may partition destinations across.
	NueMaxNumVLs int `json:"nue_max_num_vls"`

	// NueIncludeSwitches also routes to switch port-0 LIDs, not only CAs.
	NueIncludeSwitches bool `json:"nue_include_switches"`

	// ForceHeavySweep skips the light-sweep fast path on every tick.
	ForceHeavySweep bool `json:"force_heavy_sweep"`

	// MaxSweepRetries bounds how many consecutive failed sweeps the
	// controller tolerates before it declares the "errors during
	// initialization" banner instead of quietly retrying on the next
	// tick. 0 means DefaultMaxSweepRetries.
	MaxSweepRetries int `json:"max_sweep_retries,omitempty"`

	// IgnoreExistingLFTs forces a full LFT block rewrite even when the
	// double-buffer compare finds no difference, for every switch.
	IgnoreExistingLFTs bool `json:"ignore_existing_lfts"`

	// PortProfileSwitchNodes also counts switch-to-switch egress
	// selections in Min-Hop's load counter, not only CA destinations.
	PortProfileSwitchNodes bool `json:"port_profile_switch_nodes"`

	// TorusDims gives the per-dimension radix (X, Y[, Z]); length 2 or 3.
	TorusDims []int `json:"torus_dims,omitempty"`

	// TorusMesh marks a dimension as a mesh (no wraparound) rather than
	// a torus ring; same length as TorusDims.
	TorusMesh []bool `json:"torus_mesh,omitempty"`

	// TorusSeedSwitchGUID is the common switch the seed links meet at;
	// coordinate propagation starts here.
	TorusSeedSwitchGUID uint64 `json:"torus_seed_switch_guid,omitempty"`

	// TorusPortAxis maps a physical port number to the (dimension,
	// direction) it represents, shared by every switch in the fabric.
	// This is the seed-link convention applied uniformly rather than
	// re-derived per switch via face-finding.
	TorusPortAxis map[int]TorusAxis `json:"torus_port_axis,omitempty"`

	// TorusDatelineOffsets gives a per-dimension integer shift of the
	// VL-crossing dateline boundary.
	TorusDatelineOffsets []int `json:"torus_dateline_offsets,omitempty"`

	// DumpFilesDir is the directory internal/dump writes topology and
	// LFT snapshots to.
	DumpFilesDir string `json:"dump_files_dir"`

	// ListenAddress is where the metrics/health endpoint binds.
	ListenAddress string `json:"listen_address"`

	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file,omitempty"`
}

// Validate checks field invariants, returning one of the sentinel
// errors above as is, without added context.
func (c *Config) Validate() error {
	switch c.RoutingEngine {
	case EngineMinHop, EngineFatTree, EngineTorus, EngineNue:
	default:
		return ErrInvalidRoutingEngine
	}

	if c.LMC > 7 {
		return ErrInvalidLMC
	}

	if c.RoutingEngine == EngineNue && c.NueMaxNumVLs <= 0 {
		return ErrInvalidNueMaxVLs
	}

	if c.RoutingEngine == EngineTorus {
		if len(c.TorusDims) != 2 && len(c.TorusDims) != 3 {
			return ErrInvalidTorusDims
		}
		for _, d := range c.TorusDims {
			if d < 2 {
				return ErrInvalidTorusDims
			}
		}
	}

	if c.SweepInterval.Duration <= 0 {
		c.SweepInterval = metav1.Duration{Duration: DefaultSweepInterval}
	}

	return nil
}

// SweepIntervalOrDefault returns the configured sweep interval, or
// DefaultSweepInterval if unset.
func (c *Config) SweepIntervalOrDefault() time.Duration {
	if c.SweepInterval.Duration <= 0 {
		return DefaultSweepInterval
	}
	return c.SweepInterval.Duration
}

const (
	EngineMinHop  = "minhop"
	EngineFatTree = "ftree"
	EngineTorus   = "torus"
	EngineNue     = "nue"
)

// TorusAxis names the dimension index and direction (+1 or -1) a
// physical port represents in a Torus-2QoS fabric.
type TorusAxis struct {
	Dim  int `json:"dim"`
	Sign int `json:"sign"`
}
