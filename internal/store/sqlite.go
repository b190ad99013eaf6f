package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite and JSON text bodies.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := OpenSQLite(dsn)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// OpenSQLite opens a SQLite handle with the pragmas every local database uses.
func OpenSQLite(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return db, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	key        TEXT NOT NULL,
	body       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (collection, key)
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, collection, key string) ([]byte, bool, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = ? AND key = ?`,
		collection, key,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "sqlite: get %s/%s", collection, key)
	}
	return []byte(body), true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, collection, key string, doc []byte) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, key, body, created_at, updated_at) VALUES (?, ?, json(?), ?, ?)
		ON CONFLICT (collection, key) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		collection, key, string(doc), now, now,
	)
	return eris.Wrapf(err, "sqlite: put %s/%s", collection, key)
}

// Patch sets each field with json_set, so nested objects are replaced whole.
func (s *SQLiteStore) Patch(ctx context.Context, collection, key string, fields []byte) (bool, error) {
	m, keys, err := patchFields(fields)
	if err != nil {
		return false, err
	}

	var sb strings.Builder
	sb.WriteString(`UPDATE documents SET body = json_set(body`)
	args := make([]any, 0, len(keys)+3)
	for _, k := range keys {
		fmt.Fprintf(&sb, ", '$.%s', json(?)", k)
		args = append(args, string(m[k]))
	}
	sb.WriteString(`), updated_at = ? WHERE collection = ? AND key = ?`)
	args = append(args, time.Now().UTC(), collection, key)

	res, err := s.db.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: patch %s/%s", collection, key)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: patch %s/%s", collection, key)
	}
	return n > 0, nil
}

func (s *SQLiteStore) Find(ctx context.Context, collection string, q Query) ([][]byte, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString(`SELECT body FROM documents WHERE collection = ?`)
	args := []any{collection}
	for _, k := range whereKeys(q) {
		fmt.Fprintf(&sb, " AND json_extract(body, '$.%s') = ?", k)
		args = append(args, sqliteValue(q.Where[k]))
	}
	if q.OrderBy != "" {
		fmt.Fprintf(&sb, " ORDER BY json_extract(body, '$.%s')", q.OrderBy)
		if q.Desc {
			sb.WriteString(" DESC")
		}
		sb.WriteString(", key")
	} else {
		sb.WriteString(" ORDER BY key")
	}
	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find %s", collection)
	}
	defer rows.Close() //nolint:errcheck

	var out [][]byte
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan %s", collection)
		}
		out = append(out, []byte(body))
	}
	return out, eris.Wrapf(rows.Err(), "sqlite: find %s", collection)
}

// sqliteValue maps a filter value to what json_extract yields for it.
func sqliteValue(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return v
}
