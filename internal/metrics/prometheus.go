package metrics

import "github.com/prometheus/client_golang/prometheus"

const subsystem = "sweep"

var (
	sweepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "ticks_total",
			Help:      "tracks completed sweep ticks by terminal state",
		},
		[]string{"state"},
	)

	sweepDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Subsystem: subsystem,
			Name:      "tick_duration_seconds",
			Help:      "tracks how long one sweep tick took end to end",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"state"},
	)

	outstandingSMP = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Subsystem: subsystem,
			Name:      "outstanding_smp_requests",
			Help:      "tracks in-flight SMP requests admitted by the issuer",
		},
	)

	lftInstallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "lft_blocks_installed_total",
			Help:      "tracks LFT blocks written per routing engine",
		},
		[]string{"engine"},
	)

	nueBacktracksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Subsystem: "nue",
			Name:      "local_backtracks_total",
			Help:      "tracks single-level local backtrack attempts during Dijkstra relaxation",
		},
	)

	nueEscapesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Subsystem: "nue",
			Name:      "escape_path_fallbacks_total",
			Help:      "tracks destinations that fell back to the up*/down* escape tree",
		},
	)
)

// Register adds every sweep/routing collector to reg. Call once at
// startup; a nil reg is a no-op so tests can exercise the counters
// without a live registry.
func Register(reg *prometheus.Registry) error {
	if reg == nil {
		return nil
	}
	collectors := []prometheus.Collector{
		sweepsTotal, sweepDurationSeconds, outstandingSMP,
		lftInstallsTotal, nueBacktracksTotal, nueEscapesTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveSweepTick records one completed Tick's terminal state and
// wall-clock duration.
func ObserveSweepTick(state string, seconds float64) {
	sweepsTotal.WithLabelValues(state).Inc()
	sweepDurationSeconds.WithLabelValues(state).Observe(seconds)
}

// SetOutstandingSMP reports the issuer's current in-flight request count.
func SetOutstandingSMP(n float64) {
	outstandingSMP.Set(n)
}

// AddLFTInstalls increments the per-engine LFT block install counter.
func AddLFTInstalls(engine string, n int) {
	if n <= 0 {
		return
	}
	lftInstallsTotal.WithLabelValues(engine).Add(float64(n))
}

// IncNueBacktrack records one local backtrack attempt.
func IncNueBacktrack() { nueBacktracksTotal.Inc() }

// IncNueEscape records one destination falling back to the escape tree.
func IncNueEscape() { nueEscapesTotal.Inc() }
