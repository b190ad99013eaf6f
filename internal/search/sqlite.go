package search

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteIndexer keeps projections in a table mirrored into an FTS5 index.
type SQLiteIndexer struct {
	db *sql.DB
}

// NewSQLite wraps an open SQLite handle.
func NewSQLite(db *sql.DB) *SQLiteIndexer {
	return &SQLiteIndexer{db: db}
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS search_documents (
	index_name TEXT NOT NULL,
	doc_id     TEXT NOT NULL,
	body       TEXT NOT NULL,
	content    TEXT NOT NULL DEFAULT '',
	indexed_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (index_name, doc_id)
);

CREATE VIRTUAL TABLE IF NOT EXISTS search_fts USING fts5(index_name UNINDEXED, doc_id UNINDEXED, content);
`

func (s *SQLiteIndexer) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "search: sqlite migrate")
}

func (s *SQLiteIndexer) Close() error {
	return s.db.Close()
}

func (s *SQLiteIndexer) Bulk(ctx context.Context, index string, docs []Doc) error {
	if len(docs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "search: sqlite begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for _, d := range docs {
		body, err := json.Marshal(d.Body)
		if err != nil {
			return eris.Wrapf(err, "search: marshal %s/%s", index, d.ID)
		}
		content := Content(d.Body)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO search_documents (index_name, doc_id, body, content, indexed_at) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (index_name, doc_id) DO UPDATE SET body = excluded.body, content = excluded.content, indexed_at = excluded.indexed_at`,
			index, d.ID, string(body), content, now,
		); err != nil {
			return eris.Wrapf(err, "search: sqlite upsert %s/%s", index, d.ID)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM search_fts WHERE index_name = ? AND doc_id = ?`, index, d.ID,
		); err != nil {
			return eris.Wrapf(err, "search: sqlite fts delete %s/%s", index, d.ID)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO search_fts (index_name, doc_id, content) VALUES (?, ?, ?)`, index, d.ID, content,
		); err != nil {
			return eris.Wrapf(err, "search: sqlite fts insert %s/%s", index, d.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "search: sqlite commit")
}

// Match returns the ids in index whose content matches an FTS5 query.
func (s *SQLiteIndexer) Match(ctx context.Context, index, query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc_id FROM search_fts WHERE index_name = ? AND search_fts MATCH ? ORDER BY rank LIMIT ?`,
		index, query, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "search: sqlite match %s", index)
	}
	defer rows.Close() //nolint:errcheck

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "search: sqlite scan")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "search: sqlite match")
}
