package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"mercator-hq/throttle/pkg/cli"
	"mercator-hq/throttle/pkg/limits"
)

var validateFlags struct {
	format string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load the configuration file, apply THROTTLE_* environment overrides and
run every validation rule. On success the resolved limiters are listed.

Exit codes:
  0  configuration is valid
  2  configuration could not be loaded or is invalid

Examples:
  # Validate the default config
  throttle validate

  # Validate a specific file and print limiters as JSON
  throttle validate --config /etc/throttle/throttle.yaml --format json`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFlags.format, "format", "text", "output format: text, json, csv")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(validateFlags.format)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defs, err := cfg.LimiterDefinitions()
	if err != nil {
		return cli.NewConfigError(cfgFile, err)
	}

	out := cmd.OutOrStdout()
	if format == cli.FormatText {
		fmt.Fprintf(out, "✓ %s is valid\n\n", cfgFile)
	}
	return cli.NewFormatter(format).FormatTo(out, limiterTable(defs))
}

// limiterTable renders limiter definitions.
type limiterTable []limits.Definition

func (t limiterTable) Header() []string {
	return []string{"NAME", "STRATEGY", "RATE/S", "BURST", "WINDOW", "RESET"}
}

func (t limiterTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, d := range t {
		reset := d.ResetSchedule
		if reset == "" {
			reset = "-"
		}
		rows = append(rows, []string{
			d.Name,
			string(d.Strategy),
			strconv.FormatFloat(d.Config.Rate, 'g', 6, 64),
			strconv.FormatUint(d.Config.Burst, 10),
			d.Config.Window.String(),
			reset,
		})
	}
	return rows
}
