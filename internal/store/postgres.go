package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/capitol-sync/internal/db"
)

// PostgresStore implements Store using pgxpool and a JSONB documents table.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pool, err := NewPool(ctx, connString, poolCfg)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. The caller keeps ownership.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// NewPool opens and pings a pgx pool sized from poolCfg.
func NewPool(ctx context.Context, connString string, poolCfg *PoolConfig) (*pgxpool.Pool, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return pool, nil
}

// Pool returns the underlying database pool so the search index can share it.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	key        TEXT NOT NULL,
	body       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, key)
);

CREATE INDEX IF NOT EXISTS idx_documents_body ON documents USING GIN (body jsonb_path_ops);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, key string) ([]byte, bool, error) {
	var body []byte
	err := s.pool.QueryRow(ctx,
		`SELECT body FROM documents WHERE collection = $1 AND key = $2`,
		collection, key,
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "postgres: get %s/%s", collection, key)
	}
	return body, true, nil
}

func (s *PostgresStore) Put(ctx context.Context, collection, key string, doc []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (collection, key, body, created_at, updated_at) VALUES ($1, $2, $3::jsonb, $4, $4)
		ON CONFLICT (collection, key) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`,
		collection, key, string(doc), time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: put %s/%s", collection, key)
}

func (s *PostgresStore) Patch(ctx context.Context, collection, key string, fields []byte) (bool, error) {
	if _, _, err := patchFields(fields); err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET body = body || $3::jsonb, updated_at = $4 WHERE collection = $1 AND key = $2`,
		collection, key, string(fields), time.Now().UTC(),
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: patch %s/%s", collection, key)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) Find(ctx context.Context, collection string, q Query) ([][]byte, error) {
	sql, args, err := buildPostgresFind(collection, q)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find %s", collection)
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, eris.Wrapf(err, "postgres: scan %s", collection)
		}
		out = append(out, body)
	}
	return out, eris.Wrapf(rows.Err(), "postgres: find %s", collection)
}

func buildPostgresFind(collection string, q Query) (string, []any, error) {
	if err := validateQuery(q); err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString(`SELECT body FROM documents WHERE collection = $1`)
	args := []any{collection}

	if len(q.Where) > 0 {
		filter, err := json.Marshal(q.Where)
		if err != nil {
			return "", nil, eris.Wrap(err, "postgres: marshal filter")
		}
		args = append(args, string(filter))
		fmt.Fprintf(&sb, " AND body @> $%d::jsonb", len(args))
	}

	if q.OrderBy != "" {
		// Field names are validated above; jsonb ordering keeps numbers numeric.
		fmt.Fprintf(&sb, " ORDER BY body->'%s'", q.OrderBy)
		if q.Desc {
			sb.WriteString(" DESC")
		}
		sb.WriteString(", key")
	} else {
		sb.WriteString(" ORDER BY key")
	}

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	return sb.String(), args, nil
}
