package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/throttle/pkg/cli"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "throttle",
	Short: "Throttle - in-process admission control and rate limiting",
	Long: `Throttle hosts named rate limiters and decides, per request, whether work
may proceed now or must wait.

It provides:
  - Token bucket, sliding window and fixed window strategies
  - An HTTP API to try, acquire, inspect and reset limiters
  - An admission middleware with reject and wait modes
  - An audit journal of denials, resets and reloads
  - Hot reload of limiter definitions`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with a code derived from the error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "throttle.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
