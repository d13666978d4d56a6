//go:build !tinygo

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"tick/app"
	"tick/hal"
	"tick/internal/buildinfo"
	"tick/internal/config"
)

var (
	rootOpts = struct {
		config string
		trace  bool
		report bool
	}{}

	runOpts = struct {
		window bool
		hz     int
		ticks  uint64
	}{}

	simTicks uint64

	rootCmd = &cobra.Command{
		Use:           "tick",
		Short:         "Run the two-task priority workload",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the workload in real time",
		Long:  "Run the workload against the wall clock. The serial line goes to stdout and, with --window, to a terminal window.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rootOpts.config)
			if err != nil {
				return err
			}
			opts := hal.Options{TickRate: cfg.TickRate, BytesPerTick: cfg.Serial.BytesPerTick}
			appOpts := app.Options{Trace: rootOpts.trace, Console: runOpts.window}

			if runOpts.window {
				return hal.RunWindow(opts, app.StepFunc(cfg, appOpts))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			var sys *app.System
			err = hal.RunHeadless(ctx, opts, func(h hal.HAL) func() error {
				s, err := app.New(h, cfg, appOpts)
				if err != nil {
					return func() error { return err }
				}
				sys = s
				return s.Step
			}, hal.HeadlessConfig{Hz: runOpts.hz, Ticks: runOpts.ticks})
			if errors.Is(err, context.Canceled) {
				err = nil
			}
			if err == nil && rootOpts.report && sys != nil {
				_, err = sys.Report().WriteTo(cmd.OutOrStdout())
			}
			return err
		},
	}

	simCmd = &cobra.Command{
		Use:   "sim",
		Short: "Simulate a number of ticks as fast as possible",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rootOpts.config)
			if err != nil {
				return err
			}
			return simulate(cmd.OutOrStdout(), cfg, simTicks, rootOpts.trace, rootOpts.report)
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootOpts.config, "config", "c", "", "workload file (default: built-in workload)")
	rootCmd.PersistentFlags().BoolVar(&rootOpts.trace, "trace", false, "log every kernel event")
	rootCmd.PersistentFlags().BoolVar(&rootOpts.report, "report", false, "print the timing report on exit")

	runCmd.Flags().BoolVar(&runOpts.window, "window", false, "show the serial terminal in a window")
	runCmd.Flags().IntVar(&runOpts.hz, "hz", 200, "polling rate of the headless runner")
	runCmd.Flags().Uint64Var(&runOpts.ticks, "ticks", 0, "stop after N ticks (0 = run until interrupted)")

	simCmd.Flags().Uint64VarP(&simTicks, "ticks", "n", 2000, "number of ticks to simulate")

	rootCmd.AddCommand(runCmd, simCmd, versionCmd)
}

// simulate runs cfg for ticks ticks without a wall clock. Serial output
// and log lines go to w.
func simulate(w io.Writer, cfg config.Config, ticks uint64, trace, report bool) error {
	h := hal.NewSim(w)
	s, err := app.New(h, cfg, app.Options{Trace: trace})
	if err != nil {
		return err
	}
	if err := s.Advance(ticks); err != nil {
		return err
	}
	if d := s.Deadlocks(); len(d) > 0 {
		fmt.Fprintf(w, "deadlock: %v\n", d)
	}
	if report {
		_, err = s.Report().WriteTo(w)
	}
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
