package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var docMerge = Merge{
	Table:   "search.documents",
	Columns: []string{"index_name", "doc_id", "body"},
	Keys:    []string{"index_name", "doc_id"},
}

func TestMerge_EmptyBatch(t *testing.T) {
	n, err := docMerge.Run(context.Background(), nil, nil)
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestMerge_Check(t *testing.T) {
	tests := []struct {
		name string
		m    Merge
		want string
	}{
		{"no table", Merge{Columns: []string{"id"}, Keys: []string{"id"}}, "no table"},
		{"no columns", Merge{Table: "things", Keys: []string{"id"}}, "no columns"},
		{"no keys", Merge{Table: "things", Columns: []string{"id"}}, "merge things: no key columns"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.m.Run(context.Background(), nil, [][]any{{1}})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMerge_Statements(t *testing.T) {
	q := docMerge.statements()
	assert.Equal(t, "staged_search_documents", q.staging)
	assert.Equal(t, `CREATE TEMP TABLE "staged_search_documents" (LIKE "search"."documents" INCLUDING DEFAULTS) ON COMMIT DROP`, q.create)
	assert.Equal(t, `DELETE FROM "staged_search_documents" a USING "staged_search_documents" b WHERE a.ctid < b.ctid AND a."index_name" = b."index_name" AND a."doc_id" = b."doc_id"`, q.collapse)
	assert.Equal(t, `INSERT INTO "search"."documents" ("index_name", "doc_id", "body") SELECT "index_name", "doc_id", "body" FROM "staged_search_documents" ON CONFLICT ("index_name", "doc_id") DO UPDATE SET "body" = EXCLUDED."body"`, q.merge)
}

func TestMerge_KeysOnly(t *testing.T) {
	m := Merge{Table: "seen", Columns: []string{"id"}, Keys: []string{"id"}}
	assert.Contains(t, m.statements().merge, `ON CONFLICT ("id") DO NOTHING`)
}

func TestMerge_Run(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := [][]any{
		{"votes", "s1-2013", []byte(`{}`)},
		{"votes", "s1-2013", []byte(`{"a":1}`)},
		{"votes", "s2-2013", []byte(`{}`)},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "staged_search_documents"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"staged_search_documents"}, docMerge.Columns).WillReturnResult(3)
	mock.ExpectExec(`DELETE FROM "staged_search_documents"`).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`INSERT INTO "search"\."documents"`).WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := docMerge.Run(context.Background(), mock, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMerge_ConflictFailureRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	m := Merge{Table: "things", Columns: []string{"id", "name"}, Keys: []string{"id"}, Overwrite: []string{"name"}}
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"staged_things"}, m.Columns).WillReturnResult(1)
	mock.ExpectExec("DELETE FROM").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("INSERT INTO").WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	_, err = m.Run(context.Background(), mock, [][]any{{1, "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db: merge things: on conflict")
	assert.NoError(t, mock.ExpectationsWereMet())
}
