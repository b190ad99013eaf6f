package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/capitol-sync/internal/model"
	"github.com/sells-group/capitol-sync/internal/report"
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "List recent run reports",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		src, _ := cmd.Flags().GetString("source")
		limit, _ := cmd.Flags().GetInt("limit")

		reports, err := report.Recent(ctx, st, src, limit)
		if err != nil {
			return eris.Wrap(err, "reports")
		}

		if len(reports) == 0 {
			fmt.Fprintln(os.Stderr, "No reports found.")
			return nil
		}

		formatReports(os.Stdout, reports)
		return nil
	},
}

func init() {
	reportsCmd.Flags().String("source", "", "only reports from this source")
	reportsCmd.Flags().Int("limit", 20, "maximum reports to list")
	rootCmd.AddCommand(reportsCmd)
}

func formatReports(w io.Writer, reports []*model.Report) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tSOURCE\tSTATUS\tMESSAGE")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			r.CreatedAt.Format(time.DateTime),
			r.Source,
			r.Status,
			truncate(r.Message, 100),
		)
	}
	tw.Flush() //nolint:errcheck
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
