package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/timvw/buildtail/internal/tailer"
)

var tailCmd = &cobra.Command{
	Use:   "tail <path>",
	Short: "Tail one build log to stdout",
	Long: `Follow a single build log, printing new content as it is produced.

Polls the server for bytes beyond the current position. When the server
stops answering, the producing process is assumed to have finished: the
full log is fetched once more to fill any gap and buildtail exits.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig()
		if err != nil {
			return err
		}
		c, err := getClient(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		t := tailer.NewFileTailer(c, args[0], tailer.NewWriterSink(os.Stdout), cfg.IntervalDuration)
		t.Start(ctx)
		defer t.Stop()

		select {
		case <-ctx.Done():
		case <-t.Finished():
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tailCmd)
}
