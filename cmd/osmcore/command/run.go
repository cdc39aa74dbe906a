package command

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os/signal"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli"
	"golang.org/x/sys/unix"

	"github.com/osmcore/osmcore/internal/discover"
	"github.com/osmcore/osmcore/internal/issuer"
	"github.com/osmcore/osmcore/internal/metrics"
	"github.com/osmcore/osmcore/internal/notice"
	"github.com/osmcore/osmcore/internal/subnet"
	"github.com/osmcore/osmcore/internal/sweep"
	"github.com/osmcore/osmcore/pkg/config"
	"github.com/osmcore/osmcore/pkg/log"
)

func cmdRun(cliCtx *cli.Context) error {
	if topologyFile == "" {
		return fmt.Errorf("--topology-file is required")
	}

	zapLvl, err := log.ParseLogLevel(logLevel)
	if err != nil {
		return err
	}
	log.Logger = log.CreateLogger(zapLvl, logFile)

	cfg, s, err := buildConfigAndSubnet()
	if err != nil {
		return err
	}

	db, err := sql.Open("sqlite3", stateFile)
	if err != nil {
		return fmt.Errorf("open state file: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notices, err := notice.New(ctx, db, "")
	if err != nil {
		return fmt.Errorf("init notice store: %w", err)
	}
	if err := metrics.CreateTable(ctx, db, metrics.DefaultTableName); err != nil {
		return fmt.Errorf("init metrics store: %w", err)
	}

	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	httpServer := &http.Server{Addr: cfg.ListenAddress, Handler: mux}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Logger.Errorw("metrics server stopped", "error", err)
		}
	}()

	disc := discover.NewStaticFileDiscoverer(topologyFile)
	ctrl := sweep.New(s, cfg, disc, noopIssuer(), notices)

	sigCtx, stop := signal.NotifyContext(ctx, unix.SIGINT, unix.SIGTERM)
	defer stop()

	log.Logger.Infow("starting osmcore", "version", cliCtx.App.Version, "routing_engine", cfg.RoutingEngine)

	runErr := ctrl.Run(sigCtx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)

	if runErr != nil && runErr != context.Canceled {
		return runErr
	}
	return nil
}

// buildConfigAndSubnet assembles the Config from parsed flags and a
// Subnet sized to the topology file's declared max LID.
func buildConfigAndSubnet() (*config.Config, *subnet.Subnet, error) {
	interval, err := time.ParseDuration(sweepInterval)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid --sweep-interval: %w", err)
	}

	cfg, err := config.DefaultConfig(context.Background(),
		config.WithRoutingEngine(routingEngine),
		config.WithLMC(uint8(lmc)),
		config.WithSweepInterval(int64(interval)),
		config.WithNueMaxNumVLs(nueMaxVLs),
		config.WithNueIncludeSwitches(nueIncludeSwitches),
		config.WithForceHeavySweep(forceHeavySweep),
		config.WithMaxSweepRetries(maxSweepRetries),
		config.WithIgnoreExistingLFTs(ignoreExistingLFTs),
		config.WithPortProfileSwitchNodes(portProfileSwitchNodes),
		config.WithDumpFilesDir(dumpDir),
		config.WithListenAddress(listenAddress),
		config.WithLogLevel(logLevel),
		config.WithLogFile(logFile),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("build config: %w", err)
	}

	maxLID, err := discover.PeekMaxLID(topologyFile)
	if err != nil {
		return nil, nil, err
	}
	return cfg, subnet.New(maxLID), nil
}

// noopIssuer returns nil: no SMP transport ships in this module, so the
// sweep controller's issuer-backed outstanding-request gauge stays at
// zero until a real Sender is wired in (see DESIGN.md).
func noopIssuer() *issuer.Issuer { return nil }
