package config

import "time"

// Op accumulates option values before being folded into a Config by
// DefaultConfig.
type Op struct {
	routingEngine          string
	lmc                    uint8
	sweepInterval          int64 // nanoseconds; 0 means unset
	nueMaxNumVLs           int
	nueIncludeSwitches     bool
	forceHeavySweep        bool
	maxSweepRetries        int
	ignoreExistingLFTs     bool
	portProfileSwitchNodes bool
	torusDims              []int
	torusMesh              []bool
	torusSeedSwitchGUID    uint64
	torusPortAxis          map[int]TorusAxis
	torusDatelineOffsets   []int
	dumpFilesDir           string
	listenAddress          string
	logLevel               string
	logFile                string
}

type OpOption func(*Op)

func WithRoutingEngine(engine string) OpOption {
	return func(op *Op) { op.routingEngine = engine }
}

func WithLMC(lmc uint8) OpOption {
	return func(op *Op) { op.lmc = lmc }
}

func WithSweepInterval(nanoseconds int64) OpOption {
	return func(op *Op) { op.sweepInterval = nanoseconds }
}

func WithNueMaxNumVLs(n int) OpOption {
	return func(op *Op) { op.nueMaxNumVLs = n }
}

func WithNueIncludeSwitches(b bool) OpOption {
	return func(op *Op) { op.nueIncludeSwitches = b }
}

func WithForceHeavySweep(b bool) OpOption {
	return func(op *Op) { op.forceHeavySweep = b }
}

func WithMaxSweepRetries(n int) OpOption {
	return func(op *Op) { op.maxSweepRetries = n }
}

func WithIgnoreExistingLFTs(b bool) OpOption {
	return func(op *Op) { op.ignoreExistingLFTs = b }
}

func WithPortProfileSwitchNodes(b bool) OpOption {
	return func(op *Op) { op.portProfileSwitchNodes = b }
}

func WithTorusDatelineOffsets(offsets ...int) OpOption {
	return func(op *Op) { op.torusDatelineOffsets = append(op.torusDatelineOffsets, offsets...) }
}

func WithTorusDims(dims ...int) OpOption {
	return func(op *Op) { op.torusDims = append(op.torusDims, dims...) }
}

func WithTorusMesh(mesh ...bool) OpOption {
	return func(op *Op) { op.torusMesh = append(op.torusMesh, mesh...) }
}

func WithTorusSeedSwitchGUID(guid uint64) OpOption {
	return func(op *Op) { op.torusSeedSwitchGUID = guid }
}

func WithTorusPortAxis(axis map[int]TorusAxis) OpOption {
	return func(op *Op) { op.torusPortAxis = axis }
}

func WithDumpFilesDir(dir string) OpOption {
	return func(op *Op) { op.dumpFilesDir = dir }
}

func WithListenAddress(addr string) OpOption {
	return func(op *Op) { op.listenAddress = addr }
}

func WithLogLevel(level string) OpOption {
	return func(op *Op) { op.logLevel = level }
}

func WithLogFile(path string) OpOption {
	return func(op *Op) { op.logFile = path }
}

func (op *Op) applyOpts(opts []OpOption) error {
	for _, opt := range opts {
		opt(op)
	}
	return nil
}

// applyToConfig overwrites cfg's fields with any option values that
// were actually set, leaving defaults untouched otherwise.
func (op *Op) applyToConfig(cfg *Config) {
	if op.routingEngine != "" {
		cfg.RoutingEngine = op.routingEngine
	}
	if op.lmc != 0 {
		cfg.LMC = op.lmc
	}
	if op.sweepInterval != 0 {
		cfg.SweepInterval.Duration = time.Duration(op.sweepInterval)
	}
	if op.nueMaxNumVLs != 0 {
		cfg.NueMaxNumVLs = op.nueMaxNumVLs
	}
	if op.nueIncludeSwitches {
		cfg.NueIncludeSwitches = true
	}
	if op.forceHeavySweep {
		cfg.ForceHeavySweep = true
	}
	if op.maxSweepRetries != 0 {
		cfg.MaxSweepRetries = op.maxSweepRetries
	}
	if op.ignoreExistingLFTs {
		cfg.IgnoreExistingLFTs = true
	}
	if op.portProfileSwitchNodes {
		cfg.PortProfileSwitchNodes = true
	}
	if len(op.torusDatelineOffsets) > 0 {
		cfg.TorusDatelineOffsets = op.torusDatelineOffsets
	}
	if len(op.torusDims) > 0 {
		cfg.TorusDims = op.torusDims
	}
	if len(op.torusMesh) > 0 {
		cfg.TorusMesh = op.torusMesh
	}
	if op.torusSeedSwitchGUID != 0 {
		cfg.TorusSeedSwitchGUID = op.torusSeedSwitchGUID
	}
	if op.torusPortAxis != nil {
		cfg.TorusPortAxis = op.torusPortAxis
	}
	if op.dumpFilesDir != "" {
		cfg.DumpFilesDir = op.dumpFilesDir
	}
	if op.listenAddress != "" {
		cfg.ListenAddress = op.listenAddress
	}
	if op.logLevel != "" {
		cfg.LogLevel = op.logLevel
	}
	if op.logFile != "" {
		cfg.LogFile = op.logFile
	}
}
