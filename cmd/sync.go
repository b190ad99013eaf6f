package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/capitol-sync/internal/calendar"
	"github.com/sells-group/capitol-sync/internal/fetcher"
	"github.com/sells-group/capitol-sync/internal/report"
	"github.com/sells-group/capitol-sync/internal/source"
)

var syncCmd = &cobra.Command{
	Use:   "sync <votes|floor_updates|gao_reports|bill_text|all>...",
	Short: "Sync legislative sources",
	Long: `Fetch one or more upstream sources, reconcile what they publish into the
document store and mirror it into the search index.

Every source run ends with a SUCCESS or FAILURE report; item-level problems
are attached as WARNING reports.
Use --id to sync a single roll call, GAO report or bill.
Use --force to re-download files that are already cached.`,
	Args:      cobra.MinimumNArgs(1),
	ValidArgs: []string{"votes", "floor_updates", "gao_reports", "bill_text", "all"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "sync"))

		opts := parseSyncOpts(cmd)

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "sync: migrate store")
		}

		ix, err := initIndexer(ctx)
		if err != nil {
			return err
		}
		defer ix.Close() //nolint:errcheck
		if err := ix.Migrate(ctx); err != nil {
			return eris.Wrap(err, "sync: migrate search")
		}

		f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:         cfg.Fetch.UserAgent,
			Timeout:           cfg.Fetch.Timeout,
			MaxAttempts:       cfg.Fetch.MaxAttempts,
			RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
		})

		clock := calendar.SystemClock{Loc: cfg.Calendar.Location()}
		engine := source.NewEngine(source.EngineConfig{
			Store:          st,
			Indexer:        ix,
			Fetch:          fetcher.NewCache(f, fetcher.WithRateLimit(cfg.Fetch.RateLimit), fetcher.WithClock(clock.Now)),
			Clock:          clock,
			DataDir:        cfg.Data.Dir,
			BatchSize:      cfg.Search.BatchSize,
			Sinks:          reportSinks(st),
			PushgatewayURL: cfg.Metrics.PushgatewayURL,
			MetricsJob:     cfg.Metrics.Job,
		}, source.NewRegistry(cfg))

		log.Info("starting sync",
			zap.Strings("sources", args),
			zap.Bool("force", opts.Force),
			zap.Bool("cache", opts.Cache),
		)

		outcomes, err := engine.Run(ctx, args, opts)
		formatOutcomes(os.Stdout, outcomes)
		if err != nil {
			return eris.Wrap(err, "sync")
		}

		failed := 0
		for _, o := range outcomes {
			if o.Status == report.StatusFailure {
				failed++
			}
		}
		if failed > 0 {
			return eris.Errorf("sync: %d of %d sources failed", failed, len(outcomes))
		}
		return nil
	},
}

func init() {
	addSyncFlags(syncCmd)
	rootCmd.AddCommand(syncCmd)
}

func addSyncFlags(cmd *cobra.Command) {
	cmd.Flags().String("id", "", "single item: roll id (s12-2013), GAO id or bill id (hr5-117)")
	cmd.Flags().Int("congress", 0, "congress to sync (votes, bill_text)")
	cmd.Flags().Int("session", 0, "sub-session 1 or 2 within --congress (votes)")
	cmd.Flags().Int("year", 0, "calendar year (gao_reports)")
	cmd.Flags().Int("days", 0, "trailing window in days (gao_reports)")
	cmd.Flags().Int("limit", 0, "maximum items to process")
	cmd.Flags().Bool("force", false, "re-download even when a cached copy exists")
	cmd.Flags().Bool("cache", false, "read cached copies instead of the network when present")
}

// parseSyncOpts extracts source.Options from the cobra command flags.
func parseSyncOpts(cmd *cobra.Command) source.Options {
	id, _ := cmd.Flags().GetString("id")
	congress, _ := cmd.Flags().GetInt("congress")
	session, _ := cmd.Flags().GetInt("session")
	year, _ := cmd.Flags().GetInt("year")
	days, _ := cmd.Flags().GetInt("days")
	limit, _ := cmd.Flags().GetInt("limit")
	force, _ := cmd.Flags().GetBool("force")
	cache, _ := cmd.Flags().GetBool("cache")
	debug, _ := cmd.Flags().GetBool("debug")

	return source.Options{
		ID:       id,
		Congress: congress,
		Session:  session,
		Year:     year,
		Days:     days,
		Limit:    limit,
		Force:    force,
		Cache:    cache,
		Debug:    debug,
	}
}

func formatOutcomes(w io.Writer, outcomes []source.Outcome) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tSTATUS\tCOUNT\tELAPSED\tMESSAGE")
	for _, o := range outcomes {
		msg := ""
		if n := len(o.Reports); n > 0 {
			msg = o.Reports[n-1].Message
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", o.Source, o.Status, o.Count, o.Elapsed.Round(time.Millisecond), msg)
	}
	tw.Flush() //nolint:errcheck
}
