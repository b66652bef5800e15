package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/smartrouter/router"
	_ "github.com/inference-sim/smartrouter/router/forecast"
	_ "github.com/inference-sim/smartrouter/router/telemetry"
	"github.com/inference-sim/smartrouter/router/trace"
)

const (
	// requestHold is how long a simulated request occupies its backend.
	requestHold     = 100 * time.Millisecond
	defaultInterval = 2 * time.Second
)

var (
	configPath       string        // Path to router.yaml
	logLevel         string        // Log verbosity level
	interval         time.Duration // Timer-mode cycle period
	maxCycles        int           // Stop after this many cycles (0 = until interrupted)
	weightsFlag      string        // metric:weight pairs overriding the config file
	seed             int64         // Simulated telemetry seed
	simulateRequests bool          // Occupy each winner for requestHold
	decisionLogPath  string        // CSV file for every decision
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "smartrouter",
	Short: "Health-aware backend selection with short-horizon CPU forecasting",
}

// runCmd drives the timer-mode Decision Loop using the config file and CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run timer-driven decision cycles and print a summary",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		cfg := mustLoadConfig(cmd)

		r, err := buildRouter(cfg)
		if err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}
		defer func() {
			if err := r.Close(); err != nil {
				logrus.Warnf("closing decision log: %v", err)
			}
		}()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		if cfg.Loop.Interval == 0 {
			cfg.Loop.Interval = defaultInterval
		}
		logrus.Infof("Starting decision loop: interval=%v cycles=%d", cfg.Loop.Interval, maxCycles)
		startTime := time.Now()
		var handled atomic.Int64
		var failed atomic.Int64
		handle := func(d *router.Decision, err error) {
			if err != nil {
				failed.Add(1)
				logrus.Errorf("cycle failed: %v", err)
			} else if simulateRequests {
				holdRequest(d.Winner.Backend)
			}
			if n := handled.Add(1); maxCycles > 0 && n >= int64(maxCycles) {
				cancel()
			}
		}
		if err := r.Loop.Run(ctx, cfg.Loop.Interval, handle); err != nil {
			logrus.Fatalf("decision loop: %v", err)
		}

		if err := printRunSummary(os.Stdout, r, failed.Load(), time.Since(startTime)); err != nil {
			logrus.Fatalf("writing summary: %v", err)
		}
		logrus.Info("Decision loop stopped.")
	},
}

// holdRequest marks a request in flight on b and finishes it after requestHold.
func holdRequest(b *router.Backend) {
	b.Begin()
	time.AfterFunc(requestHold, b.Done)
}

// RunSummary is the JSON printed when `run` exits.
type RunSummary struct {
	Cycles     uint64         `json:"cycles"`
	Skipped    uint64         `json:"skipped"`
	Failed     int64          `json:"failed_cycles"`
	WallTimeMs int64          `json:"wall_time_ms"`
	Decisions  *trace.Summary `json:"decisions"`
}

func printRunSummary(w *os.File, r *Router, failed int64, elapsed time.Duration) error {
	s := RunSummary{
		Cycles:     r.Loop.Cycles(),
		Skipped:    r.Loop.Skipped(),
		Failed:     failed,
		WallTimeMs: elapsed.Milliseconds(),
		Decisions:  r.Log.Summary(),
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "=== Decision Summary ===\n%s\n", data)
	return err
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// mustLoadConfig reads --config and applies flag overrides.
func mustLoadConfig(cmd *cobra.Command) Config {
	cfg, err := loadConfig(configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	if err := applyFlags(cmd, &cfg); err != nil {
		logrus.Fatalf("Invalid flags: %v", err)
	}
	return cfg
}

// applyFlags overrides config file values with explicitly set flags.
func applyFlags(cmd *cobra.Command, cfg *Config) error {
	flags := cmd.Flags()
	if flags.Changed("interval") {
		cfg.Loop.Interval = interval
	}
	if flags.Changed("seed") {
		cfg.Telemetry.Seed = seed
	}
	if flags.Changed("decision-log") {
		cfg.DecisionLog.CSVPath = decisionLogPath
	}
	if flags.Changed("weights") {
		w, err := router.ParseWeights(weightsFlag)
		if err != nil {
			return fmt.Errorf("--weights: %w", err)
		}
		if w == nil {
			return errors.New("--weights: must not be empty")
		}
		cfg.Weights = w
	}
	return nil
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addCommonFlags(c *cobra.Command) {
	c.Flags().StringVar(&configPath, "config", "", "Path to router.yaml (defaults to four simulated backends)")
	c.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	c.Flags().StringVar(&weightsFlag, "weights", "", "Comma-separated metric:weight pairs, e.g. latency:0.6,cpu_load:0.4")
	c.Flags().Int64Var(&seed, "seed", 42, "Seed for simulated telemetry")
	c.Flags().StringVar(&decisionLogPath, "decision-log", "", "Write every decision to this CSV file")
}

// init sets up CLI flags and subcommands
func init() {
	addCommonFlags(runCmd)
	runCmd.Flags().DurationVar(&interval, "interval", defaultInterval, "Time between decision cycles")
	runCmd.Flags().IntVar(&maxCycles, "cycles", 0, "Stop after this many cycles (0 runs until interrupted)")
	runCmd.Flags().BoolVar(&simulateRequests, "simulate-requests", false, "Hold each chosen backend busy for 100ms")

	rootCmd.AddCommand(runCmd)
}
