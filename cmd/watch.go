package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/timvw/buildtail/internal/model"
	telem "github.com/timvw/buildtail/internal/otel"
	"github.com/timvw/buildtail/internal/watch"
)

var flagMode string

var watchCmd = &cobra.Command{
	Use:   "watch <path>...",
	Short: "Interactive TUI following multiple build logs",
	Long: `Launch an interactive terminal UI that follows one or more build logs,
one tab per log, with a running elapsed-time display per tail.

All logs share a single polling loop with at most one request in flight:
watching more logs grows the request payload, not the request count.

Configuration is loaded from .buildtail.yaml or environment variables.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel() // stops the polling loop when the TUI exits

		cfg, err := resolveConfig()
		if err != nil {
			return err
		}
		c, err := getClient(cfg)
		if err != nil {
			return err
		}
		mode, err := model.ParseMode(flagMode)
		if err != nil {
			return err
		}

		// Wire build version into OTEL service metadata
		telem.Version = Version

		// Initialize OTEL (no-op if no endpoint configured)
		tel, err := telem.Init(ctx, telem.Config{
			Endpoint: cfg.OTELEndpoint,
			Headers:  cfg.OTELHeaders,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: otel init failed: %v\n", err)
		}
		var metrics *telem.Metrics
		if tel != nil {
			defer tel.Shutdown(ctx)
			metrics = tel.Metrics
		}

		tui := &watch.TUI{
			Poller:        c,
			Paths:         args,
			Mode:          mode,
			Interval:      cfg.IntervalDuration,
			TimerInterval: cfg.TimerIntervalDuration,
			Metrics:       metrics,
		}
		return tui.Run(ctx)
	},
}

func init() {
	watchCmd.Flags().StringVar(&flagMode, "mode", "append", "delivery mode: append new chunks or replace accumulated content")
	rootCmd.AddCommand(watchCmd)
}
