package config

import (
	"context"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	DefaultRoutingEngine   = EngineMinHop
	DefaultLMC             = uint8(0)
	DefaultSweepInterval   = 10 * time.Second
	DefaultNueMaxNumVLs    = 8
	DefaultMaxSweepRetries = 3
	DefaultDumpFilesDir    = "/var/log/osmcore"
	DefaultListenAddress   = ":9926"
	DefaultLogLevel        = "info"
)

// DefaultConfig returns a Config pre-populated with the defaults above,
// then applies opts and validates the result.
func DefaultConfig(_ context.Context, opts ...OpOption) (*Config, error) {
	op := &Op{}
	if err := op.applyOpts(opts); err != nil {
		return nil, err
	}

	cfg := &Config{
		RoutingEngine:          DefaultRoutingEngine,
		LMC:                    DefaultLMC,
		SweepInterval:          metav1.Duration{Duration: DefaultSweepInterval},
		AvoidThrottledLinks:    true,
		NueMaxNumVLs:           DefaultNueMaxNumVLs,
		NueIncludeSwitches:     false,
		ForceHeavySweep:        false,
		MaxSweepRetries:        DefaultMaxSweepRetries,
		IgnoreExistingLFTs:     false,
		PortProfileSwitchNodes: false,
		DumpFilesDir:           DefaultDumpFilesDir,
		ListenAddress:          DefaultListenAddress,
		LogLevel:               DefaultLogLevel,
	}

	op.applyToConfig(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
