package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/capitol-sync/internal/report"
	"github.com/sells-group/capitol-sync/internal/search"
	"github.com/sells-group/capitol-sync/internal/store"
)

const defaultSQLitePath = "capsync.db"

func poolConfig() *store.PoolConfig {
	return &store.PoolConfig{MaxConns: cfg.Store.MaxConns, MinConns: cfg.Store.MinConns}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = defaultSQLitePath
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, poolConfig())
	case "firestore":
		return store.NewFirestore(ctx, cfg.Store.FirestoreProject)
	case "memory":
		return store.NewMemory(), nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initIndexer(ctx context.Context) (search.Indexer, error) {
	switch cfg.Search.Driver {
	case "sqlite":
		dsn := cfg.Search.DatabaseURL
		if dsn == "" {
			dsn = defaultSQLitePath
		}
		db, err := store.OpenSQLite(dsn)
		if err != nil {
			return nil, err
		}
		return search.NewSQLite(db), nil
	case "postgres":
		pool, err := store.NewPool(ctx, cfg.Search.DatabaseURL, poolConfig())
		if err != nil {
			return nil, err
		}
		return search.NewPostgres(pool, pool.Close), nil
	case "memory":
		return search.NewMemory(), nil
	case "none":
		return search.Nop{}, nil
	default:
		return nil, eris.Errorf("unsupported search driver: %s", cfg.Search.Driver)
	}
}

// reportSinks always logs and stores reports; the webhook is optional.
func reportSinks(st store.Store) []report.Sink {
	sinks := []report.Sink{report.LogSink{}, report.StoreSink{Store: st}}
	if cfg.Report.WebhookURL != "" {
		sinks = append(sinks, report.NewWebhookSink(cfg.Report.WebhookURL))
	}
	return sinks
}
