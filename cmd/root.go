package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/capitol-sync/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "capsync",
	Short: "Legislative document ingestion",
	Long: `Fetches Senate roll call votes, the Senate floor log, GAO reports and GPO
bill text, reconciles them into the document store and mirrors them into the
search index.

Configuration comes from config.yaml in the working directory and CAPSYNC_*
environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		if debug, _ := cmd.Flags().GetBool("debug"); debug {
			c.Log.Level = "debug"
		}
		if err := c.Validate(); err != nil {
			return err
		}
		if err := config.InitLogger(c.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		cfg = c
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "verbose cache and parse logging")
}

func main() {
	// An interrupt cancels in-flight fetches and store writes.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
