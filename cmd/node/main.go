package main

import (
	"fmt"
	"os"

	"github.com/common-nighthawk/go-figure"
	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"

	"tweetstamp-node/bns"
	"tweetstamp-node/build"
	cliutil "tweetstamp-node/cmd"
	"tweetstamp-node/node"
	"tweetstamp-node/node/repo"
	"tweetstamp-node/store"
	"tweetstamp-node/utils"
)

const (
	FlagNodeRepo        = "repo"
	FlagNodeDefaultRepo = "~/.tweetstamp-node"
)

var FlagRepo = &cli.StringFlag{
	Name:    FlagNodeRepo,
	Usage:   "repo directory for the tweetstamp node",
	EnvVars: []string{"STAMP_NODE_PATH"},
	Value:   FlagNodeDefaultRepo,
}

func before(_ *cli.Context) error {
	for _, system := range []string{"main", "node", "chain", "store", "cache", "verifier", "gateway", "bns", "repo"} {
		_ = logging.SetLogLevel(system, "INFO")
		if cliutil.IsVeryVerbose {
			_ = logging.SetLogLevel(system, "DEBUG")
		}
	}
	return nil
}

func main() {
	app := &cli.App{
		Name:                 cliutil.APP_NAME_NODE,
		Usage:                "Command line for the tweetstamp notarization node",
		EnableBashCompletion: true,
		Version:              build.UserVersion(),
		Before:               before,
		Flags: []cli.Flag{
			FlagRepo,
			cliutil.FlagChainAddress,
			cliutil.FlagVeryVerbose,
		},
		Commands: []*cli.Command{
			initCmd,
			runCmd,
			sweepCmd,
			hashCmd,
		},
	}
	app.Setup()

	if err := app.Run(os.Args); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func prepareRepo(cctx *cli.Context) (*repo.Repo, error) {
	return repo.NewRepo(cctx.String(FlagNodeRepo))
}

var initCmd = &cli.Command{
	Name:  "init",
	Usage: "initialize a tweetstamp node repo",
	Action: func(cctx *cli.Context) error {
		r, err := prepareRepo(cctx)
		if err != nil {
			return err
		}
		if err = r.Init(cliutil.ChainAddress); err != nil {
			if err == repo.ErrRepoExists {
				fmt.Printf("repo at %s already initialized\n", r.Path())
				return nil
			}
			return err
		}
		fmt.Printf("initialized repo at %s, edit config.toml before running\n", r.Path())
		return nil
	},
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "start the node",
	Action: func(cctx *cli.Context) error {
		myFigure := figure.NewFigure("Tweetstamp", "", true)
		myFigure.Print()

		// there is no place to trigger shutdown signal now. may add somewhere later.
		shutdownChan := make(chan struct{})
		ctx := cctx.Context

		r, err := prepareRepo(cctx)
		if err != nil {
			return err
		}

		tnode, err := node.NewTweetstampNode(ctx, r)
		if err != nil {
			return err
		}

		finishCh := node.MonitorShutdown(
			shutdownChan,
			node.ShutdownHandler{Component: "tweetstampnode", StopFunc: tnode.Stop},
		)
		<-finishCh
		return nil
	},
}

var sweepCmd = &cli.Command{
	Name:  "sweep",
	Usage: "run one bns staleness sweep and exit",
	Action: func(cctx *cli.Context) error {
		ctx := cctx.Context

		r, err := prepareRepo(cctx)
		if err != nil {
			return err
		}
		cfg, err := r.Config()
		if err != nil {
			return err
		}
		if cfg.Bns.RegistryEndpoint == "" {
			return fmt.Errorf("no bns registry endpoint configured")
		}

		mongoStore, err := store.NewMongoStore(ctx, cfg.Db.MongoUri, cfg.Db.Database)
		if err != nil {
			return err
		}
		defer mongoStore.Disconnect(ctx) //nolint: errcheck

		validator := bns.NewValidator(
			mongoStore,
			bns.NewClient(cfg.Bns.RegistryEndpoint),
			0, 0,
			cfg.Bns.BatchSize,
			0,
		)
		report, err := validator.RunSweep(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("checked=%d valid=%d transferred=%d unowned=%d failed=%d\n",
			report.Checked, report.Valid, report.Transferred, report.Unowned, report.Failed)
		return nil
	},
}

var hashCmd = &cli.Command{
	Name:      "hash",
	Usage:     "print the normalized content hash for a piece of text",
	ArgsUsage: "<content>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() == 0 {
			return fmt.Errorf("content argument required")
		}
		fmt.Println(utils.HashContentHex(cctx.Args().Get(0)))
		return nil
	},
}
