// Package command implements osmcore's urfave/cli v1 entrypoint: run
// drives the live sweep state machine, dump produces one routing
// snapshot without standing up the metrics server, version prints the
// build stamp.
package command

import (
	"github.com/urfave/cli"

	"github.com/osmcore/osmcore/pkg/config"
	"github.com/osmcore/osmcore/version"
)

const usage = `
# start the sweep state machine against a topology file
osmcore run --topology-file fabric.json --routing-engine ftree

# produce one routing snapshot into --dump-dir and exit
osmcore dump --topology-file fabric.json --routing-engine nue
`

var (
	logLevel string
	logFile  string

	topologyFile  string
	stateFile     string
	listenAddress string
	dumpDir       string

	routingEngine          string
	sweepInterval          string
	lmc                    int
	nueMaxVLs              int
	nueIncludeSwitches     bool
	forceHeavySweep        bool
	maxSweepRetries        int
	ignoreExistingLFTs     bool
	portProfileSwitchNodes bool
)

// App builds the osmcore CLI application.
func App() *cli.App {
	app := cli.NewApp()
	app.Name = "osmcore"
	app.Version = version.Version
	app.Usage = usage
	app.Description = "InfiniBand subnet manager sweep and routing core"

	sharedFlags := []cli.Flag{
		cli.StringFlag{Name: "log-level", Value: "info", Destination: &logLevel},
		cli.StringFlag{Name: "log-file", Destination: &logFile},
		cli.StringFlag{Name: "topology-file", Usage: "JSON fabric description consumed by the static discoverer", Destination: &topologyFile},
		cli.StringFlag{Name: "state-file", Value: "osmcore.db", Usage: "sqlite file backing notices and metrics samples", Destination: &stateFile},
		cli.StringFlag{Name: "dump-dir", Destination: &dumpDir},
		cli.StringFlag{Name: "routing-engine", Value: "minhop", Usage: "minhop, ftree, torus, or nue", Destination: &routingEngine},
		cli.StringFlag{Name: "sweep-interval", Value: "10s", Destination: &sweepInterval},
		cli.IntFlag{Name: "lmc", Destination: &lmc},
		cli.IntFlag{Name: "nue-max-vls", Value: 8, Destination: &nueMaxVLs},
		cli.BoolFlag{Name: "nue-include-switches", Destination: &nueIncludeSwitches},
		cli.BoolFlag{Name: "force-heavy-sweep", Destination: &forceHeavySweep},
		cli.IntFlag{Name: "max-sweep-retries", Value: config.DefaultMaxSweepRetries, Destination: &maxSweepRetries},
		cli.BoolFlag{Name: "ignore-existing-lfts", Destination: &ignoreExistingLFTs},
		cli.BoolFlag{Name: "port-profile-switch-nodes", Destination: &portProfileSwitchNodes},
	}

	app.Commands = []cli.Command{
		{
			Name:   "run",
			Usage:  "run the sweep state machine until interrupted",
			Action: cmdRun,
			Flags:  append(sharedFlags, cli.StringFlag{Name: "listen-address", Value: ":9926", Destination: &listenAddress}),
		},
		{
			Name:   "dump",
			Usage:  "run one sweep and write topology/routing dump files",
			Action: cmdDump,
			Flags:  sharedFlags,
		},
		{
			Name:   "version",
			Usage:  "print the osmcore version",
			Action: cmdVersion,
		},
	}

	return app
}
