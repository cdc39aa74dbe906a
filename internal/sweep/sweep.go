// Package sweep implements the subnet manager's sweep state machine:
// light sweeps poll for change, heavy sweeps rediscover the
// fabric, and a successful routing pass installs LFTs and emits the
// SUBNET_UP notice. Discovery transport is supplied by the caller
// (Discoverer), the way internal/issuer takes a Sender, keeping this
// package oblivious to MAD encoding.
package sweep

import (
	"context"
	"time"

	"github.com/osmcore/osmcore/internal/issuer"
	"github.com/osmcore/osmcore/internal/lft"
	"github.com/osmcore/osmcore/internal/metrics"
	"github.com/osmcore/osmcore/internal/notice"
	"github.com/osmcore/osmcore/internal/routing"
	"github.com/osmcore/osmcore/internal/routing/minhop"
	"github.com/osmcore/osmcore/internal/subnet"
	"github.com/osmcore/osmcore/pkg/config"
	"github.com/osmcore/osmcore/pkg/errdefs"
	"github.com/osmcore/osmcore/pkg/log"
)

// State is a node in the sweep state machine.
type State int

const (
	StateIdle State = iota
	StateSweepLight
	StateSweepHeavy
	StateRouting
	StateSubnetUp
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateSweepLight:
		return "SWEEP_LIGHT"
	case StateSweepHeavy:
		return "SWEEP_HEAVY"
	case StateRouting:
		return "ROUTING"
	case StateSubnetUp:
		return "SUBNET_UP"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Discoverer performs SMP-backed fabric discovery. LightSweep polls a
// cheap signal (trap count, master SM port state) and reports whether
// a heavy sweep is warranted; HeavySweep walks the fabric and
// repopulates the subnet in place.
type Discoverer interface {
	LightSweep(ctx context.Context, s *subnet.Subnet) (changed bool, err error)
	HeavySweep(ctx context.Context, s *subnet.Subnet) error
}

// Controller runs the sweep state machine against one Subnet.
type Controller struct {
	subnet  *subnet.Subnet
	cfg     *config.Config
	disc    Discoverer
	issuer  *issuer.Issuer
	notices *notice.Store

	state      State
	engineName string

	maxRetries          int
	consecutiveFailures int
}

// New constructs a Controller. iss may be nil if the caller drives its
// own SMP transport outside the issuer's admission control.
func New(s *subnet.Subnet, cfg *config.Config, disc Discoverer, iss *issuer.Issuer, notices *notice.Store) *Controller {
	maxRetries := cfg.MaxSweepRetries
	if maxRetries <= 0 {
		maxRetries = config.DefaultMaxSweepRetries
	}
	return &Controller{subnet: s, cfg: cfg, disc: disc, issuer: iss, notices: notices, state: StateIdle, maxRetries: maxRetries}
}

// State returns the controller's current state machine node.
func (c *Controller) State() State { return c.state }

// EngineName reports which routing engine actually produced the last
// installed LFTs — the configured one, or "minhop" if a core-level
// fallback was triggered.
func (c *Controller) EngineName() string { return c.engineName }

// Run ticks the state machine every cfg.SweepIntervalOrDefault until
// ctx is canceled.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.SweepIntervalOrDefault())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.Tick(ctx); err != nil {
				log.Logger.Errorw("sweep tick failed", "error", err)
			}
		}
	}
}

// Tick drives one full pass: light sweep, conditionally heavy sweep
// and routing, through to SUBNET_UP or ERROR.
func (c *Controller) Tick(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.ObserveSweepTick(c.state.String(), time.Since(start).Seconds())
	}()

	if c.issuer != nil {
		metrics.SetOutstandingSMP(float64(c.issuer.Outstanding()))
	}

	c.state = StateSweepLight
	changed, err := c.disc.LightSweep(ctx, c.subnet)
	if err != nil {
		return c.fail(ctx, err)
	}

	if !changed && !c.cfg.ForceHeavySweep {
		c.state = StateIdle
		return nil
	}

	c.state = StateSweepHeavy
	c.subnet.Lock()
	c.subnet.ResetForHeavySweep()
	c.subnet.Unlock()

	if err := c.disc.HeavySweep(ctx, c.subnet); err != nil {
		return c.fail(ctx, err)
	}

	if c.subnet.MasterSMPortDown {
		return c.fail(ctx, errdefs.ErrUnavailable)
	}

	c.state = StateRouting
	if err := c.route(ctx); err != nil {
		return c.fail(ctx, err)
	}

	c.state = StateSubnetUp
	if err := c.notices.EmitSubnetUp(ctx, time.Now()); err != nil {
		return err
	}
	c.consecutiveFailures = 0
	c.emitNewPortTraps(ctx)
	return nil
}

// emitNewPortTraps is only called after a successful SUBNET_UP: the
// spec requires Trap 64 for every is_new port discovered during this
// sweep, not for ports discovered by a sweep that later failed.
func (c *Controller) emitNewPortTraps(ctx context.Context) {
	c.subnet.RLock()
	type newPort struct {
		guid subnet.GUID
		lid  subnet.LID
	}
	var newPorts []newPort
	for _, n := range c.subnet.Nodes() {
		for _, pp := range n.PhysicalPorts {
			if pp.IsNew {
				newPorts = append(newPorts, newPort{guid: pp.NodeGUID, lid: n.BaseLID})
			}
		}
	}
	c.subnet.RUnlock()

	for _, pp := range newPorts {
		if err := c.notices.EmitTrap64(ctx, uint64(pp.guid), uint16(pp.lid), time.Now()); err != nil {
			log.Logger.Warnw("failed to persist trap64 notice", "guid", pp.guid, "error", err)
		}
	}
}

// route runs the configured engine, falling back to Min-Hop whenever
// the engine is unknown, Setup fails, hop-matrix construction fails,
// or BuildUcastTables fails — a generic core-level fallback,
// distinct from any engine-internal fallback (e.g. Fat-Tree's own
// inconsistency handling, which runs first and is invisible here).
func (c *Controller) route(ctx context.Context) error {
	engineCtx := &routing.Context{Subnet: c.subnet, Config: c.cfg}

	eng, err := routing.New(c.cfg.RoutingEngine)
	if err != nil {
		log.Logger.Warnw("unknown routing engine, falling back to minhop", "engine", c.cfg.RoutingEngine, "error", err)
		return c.routeMinHop()
	}
	defer eng.Destroy()

	if err := eng.Setup(engineCtx); err != nil {
		log.Logger.Warnw("engine setup failed, falling back to minhop", "engine", c.cfg.RoutingEngine, "error", err)
		return c.routeMinHop()
	}

	if hb, ok := eng.(routing.HopMatrixBuilder); ok {
		if err := hb.BuildHopMatrices(engineCtx); err != nil {
			log.Logger.Warnw("hop matrix build failed, falling back to minhop", "engine", c.cfg.RoutingEngine, "error", err)
			return c.routeMinHop()
		}
	} else if err := minhop.BuildHopMatrices(c.subnet); err != nil {
		return err
	}

	if err := eng.BuildUcastTables(engineCtx); err != nil {
		log.Logger.Warnw("unicast table build failed, falling back to minhop", "engine", c.cfg.RoutingEngine, "error", err)
		return c.routeMinHop()
	}

	c.engineName = c.cfg.RoutingEngine
	return c.installLFTs()
}

func (c *Controller) routeMinHop() error {
	if err := minhop.BuildHopMatrices(c.subnet); err != nil {
		return err
	}
	load := make(map[subnet.GUID][]int)
	if err := minhop.Route(c.subnet, c.cfg.LMC, c.cfg.PortProfileSwitchNodes, load); err != nil {
		return err
	}
	c.engineName = config.EngineMinHop
	return c.installLFTs()
}

// installLFTs diffs and swaps every switch's double buffer. The
// differing blocks Diff returns are only counted into the per-engine
// LFT-install metric; no transport sends them, and the buffer is
// swapped as though those writes had completed.
func (c *Controller) installLFTs() error {
	c.subnet.Lock()
	defer c.subnet.Unlock()
	for _, sw := range c.subnet.Switches() {
		sw.IgnoreExistingLFTs = c.cfg.IgnoreExistingLFTs
		blocks := lft.Diff(sw)
		metrics.AddLFTInstalls(c.engineName, len(blocks))
		lft.Install(sw)
	}
	return nil
}

// fail records one failed sweep phase. Per the spec's failure policy,
// a failed phase below the retry ceiling is only logged at warn level
// and returned — the controller leaves
// it to the next tick to force another heavy sweep rather than
// retrying the operation in place. Only once maxRetries consecutive
// sweeps have failed does it persist the "errors during
// initialization" banner; a later successful Tick resets the counter.
func (c *Controller) fail(ctx context.Context, err error) error {
	c.state = StateError
	c.consecutiveFailures++

	if c.consecutiveFailures < c.maxRetries {
		log.Logger.Warnw("sweep phase failed, retrying on next tick", "error", err, "consecutive_failures", c.consecutiveFailures, "max_retries", c.maxRetries)
		return err
	}

	if noticeErr := c.notices.EmitErrorBanner(ctx, err.Error(), time.Now()); noticeErr != nil {
		log.Logger.Warnw("failed to persist error banner notice", "error", noticeErr)
	}
	return err
}
