package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/timvw/buildtail/internal/client"
	"github.com/timvw/buildtail/internal/config"
)

// Version is injected at build time via -ldflags.
var Version = "dev"

var (
	// Global flags.
	flagServer   string
	flagInterval string
	flagVerbose  bool
)

// diagOut receives --verbose diagnostics. Swapped out in tests.
var diagOut io.Writer = os.Stderr

// logVerbose writes a diagnostic line when --verbose is set.
func logVerbose(format string, args ...any) {
	if flagVerbose {
		fmt.Fprintf(diagOut, format+"\n", args...)
	}
}

var rootCmd = &cobra.Command{
	Use:   "buildtail",
	Short: "Live-tail build logs from a report server",
	Long: `buildtail streams growing build-log files from a report server into a
live terminal view.

The server only needs to answer "give me the bytes of <file> beyond
position <p>"; buildtail tracks a byte cursor per log and polls for new
content on a fixed interval. Watching many logs at once costs one request
per tick regardless of how many logs are followed.`,
}

// Execute runs the root command.
func Execute() {
	rootCmd.Version = Version
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "report server base URL (default: config or http://localhost:7777)")
	rootCmd.PersistentFlags().StringVar(&flagInterval, "interval", "", "poll interval, e.g. 200ms (default: config)")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "print config and polling diagnostics to stderr")
}

// resolveConfig loads the layered configuration and applies flag overrides,
// which beat both the config file and the environment.
func resolveConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.ConfigFile != "" {
		logVerbose("config: loaded %s", cfg.ConfigFile)
	}

	if flagServer != "" {
		cfg.Server = flagServer
	}
	if flagInterval != "" {
		d, err := time.ParseDuration(flagInterval)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid poll interval %q", flagInterval)
		}
		cfg.Interval = flagInterval
		cfg.IntervalDuration = d
	}

	logVerbose("config: server %s, poll interval %s, timer interval %s",
		cfg.Server, cfg.Interval, cfg.TimerInterval)
	return cfg, nil
}

// getClient creates a report-server client from the resolved config.
func getClient(cfg *config.Config) (*client.Client, error) {
	c, err := client.New(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	return c, nil
}
