package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/throttle/pkg/cli"
	"mercator-hq/throttle/pkg/config"
	"mercator-hq/throttle/pkg/limits"
	"mercator-hq/throttle/pkg/limits/ratelimit"
)

var simulateFlags struct {
	limiter  string
	strategy string
	rate     float64
	per      string
	burst    uint64
	window   time.Duration
	requests int
	interval time.Duration
	format   string
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Replay a request pattern against a limiter",
	Long: `Run a limiter on a virtual clock and print the decision for each request.

Requests arrive every --interval starting at t=0; no real time passes. The
limiter is either built from flags or taken from the config file with
--limiter.

Examples:
  # 30 requests in a burst against 10/s token bucket
  throttle simulate --rate 10 --requests 30

  # Sliding window, one request every 50ms
  throttle simulate --strategy sliding_window --rate 10 --interval 50ms --requests 40

  # Replay against a configured limiter
  throttle simulate --limiter api --requests 200 --interval 100ms --format csv`,
	RunE: runSimulation,
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	f := simulateCmd.Flags()
	f.StringVar(&simulateFlags.limiter, "limiter", "", "use the named limiter from the config file")
	f.StringVar(&simulateFlags.strategy, "strategy", string(ratelimit.StrategyTokenBucket), "strategy: token_bucket, sliding_window, fixed_window")
	f.Float64Var(&simulateFlags.rate, "rate", 10, "permits per period")
	f.StringVar(&simulateFlags.per, "per", "second", "period: second, minute, hour")
	f.Uint64Var(&simulateFlags.burst, "burst", 0, "burst size (default ceil(rate))")
	f.DurationVar(&simulateFlags.window, "window", 0, "window length (default one period)")
	f.IntVar(&simulateFlags.requests, "requests", 20, "number of requests")
	f.DurationVar(&simulateFlags.interval, "interval", 0, "time between requests")
	f.StringVar(&simulateFlags.format, "format", "text", "output format: text, json, csv")
}

func runSimulation(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(simulateFlags.format)
	if err != nil {
		return err
	}
	if simulateFlags.requests <= 0 {
		return fmt.Errorf("--requests must be greater than 0")
	}
	if simulateFlags.interval < 0 {
		return fmt.Errorf("--interval must not be negative")
	}

	def, err := simulationDefinition()
	if err != nil {
		return err
	}

	sim, err := simulate(def, simulateFlags.requests, simulateFlags.interval)
	if err != nil {
		return cli.NewCommandError("simulate", err)
	}

	out := cmd.OutOrStdout()
	if format == cli.FormatText {
		fmt.Fprintf(out, "%s %s (%s)\n\n", def.Name, def.Strategy, def.Config)
	}
	if err := cli.NewFormatter(format).FormatTo(out, sim); err != nil {
		return err
	}
	if format == cli.FormatText {
		fmt.Fprintf(out, "\nallowed=%d denied=%d\n", sim.Allowed, sim.Denied)
	}
	return nil
}

func simulationDefinition() (limits.Definition, error) {
	if simulateFlags.limiter != "" {
		cfg, err := loadConfig()
		if err != nil {
			return limits.Definition{}, err
		}
		lc, ok := cfg.Limiters[simulateFlags.limiter]
		if !ok {
			return limits.Definition{}, fmt.Errorf("%w: %s", limits.ErrUnknownLimiter, simulateFlags.limiter)
		}
		return lc.Definition(simulateFlags.limiter)
	}

	lc := config.LimiterConfig{
		Strategy: simulateFlags.strategy,
		Rate:     simulateFlags.rate,
		Per:      simulateFlags.per,
		Burst:    simulateFlags.burst,
		Window:   simulateFlags.window,
	}
	return lc.Definition("simulated")
}

// simulation is the outcome of a virtual-clock run.
type simulation struct {
	Steps   []simulationStep `json:"steps"`
	Allowed int              `json:"allowed"`
	Denied  int              `json:"denied"`
}

type simulationStep struct {
	Request   int           `json:"request"`
	At        time.Duration `json:"at"`
	Allowed   bool          `json:"allowed"`
	Wait      time.Duration `json:"wait,omitempty"`
	Available uint64        `json:"available"`
}

// simulate issues n TryAcquire calls spaced by interval on a virtual clock.
func simulate(def limits.Definition, n int, interval time.Duration) (*simulation, error) {
	now := time.Unix(0, 0)
	start := now
	clock := func() time.Time { return now }

	limiter, err := ratelimit.New(def.Strategy, def.Config, ratelimit.WithClock(clock))
	if err != nil {
		return nil, err
	}

	sim := &simulation{Steps: make([]simulationStep, 0, n)}
	for i := 1; i <= n; i++ {
		result := limiter.TryAcquire()
		step := simulationStep{
			Request:   i,
			At:        now.Sub(start),
			Allowed:   result.IsAllowed(),
			Wait:      result.WaitTime(),
			Available: limiter.Available(),
		}
		if step.Allowed {
			sim.Allowed++
		} else {
			sim.Denied++
		}
		sim.Steps = append(sim.Steps, step)
		now = now.Add(interval)
	}
	return sim, nil
}

func (s *simulation) Header() []string {
	return []string{"REQUEST", "AT", "DECISION", "WAIT", "AVAILABLE"}
}

func (s *simulation) Rows() [][]string {
	rows := make([][]string, 0, len(s.Steps))
	for _, step := range s.Steps {
		decision, wait := "allowed", "-"
		if !step.Allowed {
			decision, wait = "denied", step.Wait.String()
		}
		rows = append(rows, []string{
			strconv.Itoa(step.Request),
			step.At.String(),
			decision,
			wait,
			strconv.FormatUint(step.Available, 10),
		})
	}
	return rows
}
