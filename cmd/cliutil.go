package cliutil

import (
	"github.com/urfave/cli/v2"
)

const APP_NAME_NODE = "tweetstamp"

var ChainAddress string
var FlagChainAddress = &cli.StringFlag{
	Name:        "chain-address",
	Usage:       "stacks node rpc endpoint",
	EnvVars:     []string{"STAMP_CHAIN_API"},
	Destination: &ChainAddress,
}

// IsVeryVerbose is a global var signalling if the CLI is running in very
// verbose mode or not (default: false).
var IsVeryVerbose bool

// FlagVeryVerbose enables very verbose mode, which is useful when debugging
// the CLI itself. It should be included as a flag on the top-level command
// (e.g. tweetstamp -vv).
var FlagVeryVerbose = &cli.BoolFlag{
	Name:        "vv",
	Usage:       "enables very verbose mode, useful for debugging the CLI",
	Destination: &IsVeryVerbose,
}
