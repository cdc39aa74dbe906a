package command

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/urfave/cli"

	"github.com/osmcore/osmcore/internal/discover"
	"github.com/osmcore/osmcore/internal/dump"
	"github.com/osmcore/osmcore/internal/notice"
	"github.com/osmcore/osmcore/internal/sweep"
	"github.com/osmcore/osmcore/pkg/log"
)

func cmdDump(cliCtx *cli.Context) error {
	if topologyFile == "" {
		return fmt.Errorf("--topology-file is required")
	}
	if dumpDir == "" {
		return fmt.Errorf("--dump-dir is required")
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

	ctx := context.Background()
	notices, err := notice.New(ctx, db, "")
	if err != nil {
		return fmt.Errorf("init notice store: %w", err)
	}

	disc := discover.NewStaticFileDiscoverer(topologyFile)
	ctrl := sweep.New(s, cfg, disc, noopIssuer(), notices)

	if err := ctrl.Tick(ctx); err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}
	if ctrl.State() != sweep.StateSubnetUp {
		return fmt.Errorf("sweep ended in state %s, not dumping", ctrl.State())
	}

	if err := dump.WriteAll(dumpDir, s); err != nil {
		return fmt.Errorf("write dump files: %w", err)
	}
	log.Logger.Infow("wrote dump files", "dir", dumpDir, "engine", ctrl.EngineName())
	return nil
}
