package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Merge folds a batch of rows into a table keyed by Keys. Rows are COPYed
// into a transaction-scoped staging table, collapsed so that the last row per
// key wins, and then merged with INSERT ... ON CONFLICT DO UPDATE.
type Merge struct {
	Table   string
	Columns []string
	Keys    []string
	// Overwrite lists the columns replaced on conflict. Nil means every
	// column that is not part of Keys.
	Overwrite []string
}

type mergeSQL struct {
	staging  string
	create   string
	collapse string
	merge    string
}

func (m Merge) check() error {
	switch {
	case m.Table == "":
		return eris.New("db: merge: no table")
	case len(m.Columns) == 0:
		return eris.New("db: merge: no columns")
	case len(m.Keys) == 0:
		return eris.Errorf("db: merge %s: no key columns", m.Table)
	}
	return nil
}

func (m Merge) overwrite() []string {
	if m.Overwrite != nil {
		return m.Overwrite
	}
	key := make(map[string]bool, len(m.Keys))
	for _, k := range m.Keys {
		key[k] = true
	}
	var cols []string
	for _, c := range m.Columns {
		if !key[c] {
			cols = append(cols, c)
		}
	}
	return cols
}

func (m Merge) statements() mergeSQL {
	target := qualified(m.Table)
	staging := "staged_" + strings.ReplaceAll(m.Table, ".", "_")
	stg := ident(staging)

	same := make([]string, len(m.Keys))
	for i, k := range m.Keys {
		same[i] = "a." + ident(k) + " = b." + ident(k)
	}

	var set []string
	for _, c := range m.overwrite() {
		set = append(set, ident(c)+" = EXCLUDED."+ident(c))
	}

	cols := identList(m.Columns)
	merge := "INSERT INTO " + target + " (" + cols + ") SELECT " + cols + " FROM " + stg +
		" ON CONFLICT (" + identList(m.Keys) + ")"
	if len(set) == 0 {
		merge += " DO NOTHING"
	} else {
		merge += " DO UPDATE SET " + strings.Join(set, ", ")
	}

	return mergeSQL{
		staging:  staging,
		create:   "CREATE TEMP TABLE " + stg + " (LIKE " + target + " INCLUDING DEFAULTS) ON COMMIT DROP",
		collapse: "DELETE FROM " + stg + " a USING " + stg + " b WHERE a.ctid < b.ctid AND " + strings.Join(same, " AND "),
		merge:    merge,
	}
}

// Run merges rows in a single transaction and returns the number of target
// rows inserted or updated. An empty batch is a no-op.
func (m Merge) Run(ctx context.Context, pool Pool, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := m.check(); err != nil {
		return 0, err
	}
	q := m.statements()

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrapf(err, "db: merge %s: begin", m.Table)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, q.create); err != nil {
		return 0, eris.Wrapf(err, "db: merge %s: stage", m.Table)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{q.staging}, m.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: merge %s: copy %d rows", m.Table, len(rows))
	}
	if _, err := tx.Exec(ctx, q.collapse); err != nil {
		return 0, eris.Wrapf(err, "db: merge %s: collapse duplicates", m.Table)
	}
	tag, err := tx.Exec(ctx, q.merge)
	if err != nil {
		return 0, eris.Wrapf(err, "db: merge %s: on conflict", m.Table)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrapf(err, "db: merge %s: commit", m.Table)
	}
	return tag.RowsAffected(), nil
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// qualified quotes "schema.table" as two identifiers.
func qualified(table string) string {
	return pgx.Identifier(strings.SplitN(table, ".", 2)).Sanitize()
}

func identList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = ident(n)
	}
	return strings.Join(quoted, ", ")
}
