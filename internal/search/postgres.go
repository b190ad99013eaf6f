package search

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/capitol-sync/internal/db"
)

var documentMerge = db.Merge{
	Table:   "search_documents",
	Columns: []string{"index_name", "doc_id", "body", "content", "indexed_at"},
	Keys:    []string{"index_name", "doc_id"},
}

// PostgresIndexer stores projections in a tsvector-backed table.
type PostgresIndexer struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres wraps pool. closeFn, when non-nil, runs on Close.
func NewPostgres(pool db.Pool, closeFn func()) *PostgresIndexer {
	return &PostgresIndexer{pool: pool, closeFn: closeFn}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS search_documents (
	index_name TEXT NOT NULL,
	doc_id     TEXT NOT NULL,
	body       JSONB NOT NULL,
	content    TEXT NOT NULL DEFAULT '',
	tsv        TSVECTOR GENERATED ALWAYS AS (to_tsvector('english', content)) STORED,
	indexed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (index_name, doc_id)
);

CREATE INDEX IF NOT EXISTS idx_search_documents_tsv ON search_documents USING GIN (tsv);
`

func (p *PostgresIndexer) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "search: postgres migrate")
}

func (p *PostgresIndexer) Close() error {
	if p.closeFn != nil {
		p.closeFn()
	}
	return nil
}

func (p *PostgresIndexer) Bulk(ctx context.Context, index string, docs []Doc) error {
	if len(docs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([][]any, 0, len(docs))
	for _, d := range docs {
		body, err := json.Marshal(d.Body)
		if err != nil {
			return eris.Wrapf(err, "search: marshal %s/%s", index, d.ID)
		}
		rows = append(rows, []any{index, d.ID, body, Content(d.Body), now})
	}

	_, err := documentMerge.Run(ctx, p.pool, rows)
	return eris.Wrapf(err, "search: bulk %s", index)
}
