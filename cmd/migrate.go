package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create store, search and report tables",
	Long:  "Applies the document store and search index schemas for the configured drivers. Both are idempotent.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ix, err := initIndexer(ctx)
		if err != nil {
			return err
		}
		defer ix.Close() //nolint:errcheck

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return eris.Wrap(st.Migrate(gctx), "migrate: store")
		})
		g.Go(func() error {
			return eris.Wrap(ix.Migrate(gctx), "migrate: search")
		})
		if err := g.Wait(); err != nil {
			return err
		}

		zap.L().Info("all migrations applied successfully",
			zap.String("store", cfg.Store.Driver),
			zap.String("search", cfg.Search.Driver),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
