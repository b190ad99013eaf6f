package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_PutAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.Put(ctx, "votes", "s1-2013", []byte(`{"roll_id":"s1-2013","number":1}`)))

	body, ok, err := st.Get(ctx, "votes", "s1-2013")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"roll_id":"s1-2013","number":1}`, string(body))
}

func TestSQLite_Get_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	body, ok, err := st.Get(context.Background(), "votes", "nope")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, body)
}

func TestSQLite_PutOverwrites(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.Put(ctx, "bills", "hr1-113", []byte(`{"bill_id":"hr1-113","abbreviated":true}`)))
	require.NoError(t, st.Put(ctx, "bills", "hr1-113", []byte(`{"bill_id":"hr1-113","abbreviated":false}`)))

	body, ok, err := st.Get(ctx, "bills", "hr1-113")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"bill_id":"hr1-113","abbreviated":false}`, string(body))
}

func TestSQLite_PatchKeepsOtherFields(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.Put(ctx, "bills", "hr1-113", []byte(
		`{"bill_id":"hr1-113","committee_ids":["HSWM"],"last_version":{"version_code":"ih","urls":{"pdf":"a.pdf"}}}`)))

	ok, err := st.Patch(ctx, "bills", "hr1-113", []byte(`{"versions_count":2,"last_version":{"version_code":"rh"}}`))
	require.NoError(t, err)
	assert.True(t, ok)

	body, _, err := st.Get(ctx, "bills", "hr1-113")
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"bill_id":"hr1-113","committee_ids":["HSWM"],"versions_count":2,"last_version":{"version_code":"rh"}}`,
		string(body))

	ok, err = st.Patch(ctx, "bills", "hr9-113", []byte(`{"versions_count":1}`))
	require.NoError(t, err)
	assert.False(t, ok)
	_, exists, err := st.Get(ctx, "bills", "hr9-113")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSQLite_CollectionsAreSeparate(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.Put(ctx, "votes", "k", []byte(`{"a":1}`)))
	_, ok, err := st.Get(ctx, "bills", "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLite_Find(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	docs := map[string]string{
		"a": `{"id":"a","legislative_day":"2013-01-22","timestamp":"2013-01-22T15:00:00Z","abbreviated":true}`,
		"b": `{"id":"b","legislative_day":"2013-01-22","timestamp":"2013-01-22T17:00:00Z","abbreviated":false}`,
		"c": `{"id":"c","legislative_day":"2013-01-23","timestamp":"2013-01-23T10:00:00Z","abbreviated":true}`,
	}
	for k, d := range docs {
		require.NoError(t, st.Put(ctx, "floor_updates", k, []byte(d)))
	}

	got, err := st.Find(ctx, "floor_updates", Query{
		Where:   map[string]any{"legislative_day": "2013-01-22"},
		OrderBy: "timestamp",
		Desc:    true,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Contains(t, string(got[0]), `"id":"b"`)
	assert.Contains(t, string(got[1]), `"id":"a"`)

	got, err = st.Find(ctx, "floor_updates", Query{Where: map[string]any{"abbreviated": true}, Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, string(got[0]), `"id":"a"`)
}

func TestSQLite_Find_InvalidField(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.Find(context.Background(), "votes", Query{OrderBy: "a') --"})
	require.Error(t, err)
}
