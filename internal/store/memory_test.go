package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_PutGet(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "votes", "s1-2013", []byte(`{"roll_id":"s1-2013"}`)))
	body, ok, err := s.Get(ctx, "votes", "s1-2013")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"roll_id":"s1-2013"}`, string(body))
	assert.Equal(t, 1, s.Len("votes"))

	_, ok, err = s.Get(ctx, "votes", "s2-2013")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_Patch(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "bills", "hr1-113", []byte(`{"bill_id":"hr1-113","enacted":true,"versions_count":1}`)))

	ok, err := s.Patch(ctx, "bills", "hr1-113", []byte(`{"versions_count":3}`))
	require.NoError(t, err)
	assert.True(t, ok)
	body, _, err := s.Get(ctx, "bills", "hr1-113")
	require.NoError(t, err)
	assert.JSONEq(t, `{"bill_id":"hr1-113","enacted":true,"versions_count":3}`, string(body))

	ok, err = s.Patch(ctx, "bills", "hr2-113", []byte(`{"versions_count":3}`))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len("bills"))
}

func TestMemory_PutRejectsInvalidJSON(t *testing.T) {
	s := NewMemory()
	err := s.Put(context.Background(), "votes", "k", []byte(`{`))
	require.Error(t, err)
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "votes", "k", []byte(`{"a":1}`)))

	body, _, _ := s.Get(ctx, "votes", "k")
	body[1] = 'X'

	again, _, _ := s.Get(ctx, "votes", "k")
	assert.JSONEq(t, `{"a":1}`, string(again))
}

func TestMemory_Find(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "bill_versions", "hr1-113-ih", []byte(`{"bill_id":"hr1-113","issued_on":"2013-01-03","number":1}`)))
	require.NoError(t, s.Put(ctx, "bill_versions", "hr1-113-eh", []byte(`{"bill_id":"hr1-113","issued_on":"2013-03-01","number":1}`)))
	require.NoError(t, s.Put(ctx, "bill_versions", "hr2-113-ih", []byte(`{"bill_id":"hr2-113","issued_on":"2013-01-04","number":2}`)))

	got, err := s.Find(ctx, "bill_versions", Query{Where: map[string]any{"bill_id": "hr1-113"}, OrderBy: "issued_on"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Contains(t, string(got[0]), "2013-01-03")
	assert.Contains(t, string(got[1]), "2013-03-01")

	got, err = s.Find(ctx, "bill_versions", Query{Where: map[string]any{"number": 2}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, string(got[0]), "hr2-113")

	got, err = s.Find(ctx, "bill_versions", Query{OrderBy: "issued_on", Desc: true, Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, string(got[0]), "2013-03-01")
}

func TestMemory_FindMissingFieldDoesNotMatch(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "legislators", "A1", []byte(`{"bioguide_id":"A1"}`)))

	got, err := s.Find(ctx, "legislators", Query{Where: map[string]any{"lis_id": "S270"}})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSortKeyOrdersNumbers(t *testing.T) {
	assert.Less(t, sortKey(float64(9)), sortKey(float64(10)))
	assert.Less(t, sortKey("2013-01-02"), sortKey("2013-01-10"))
	assert.Equal(t, "", sortKey(nil))
}

func TestSortKeyOrdersTimestamps(t *testing.T) {
	whole := sortKey("2013-01-22T15:04:05Z")
	frac := sortKey("2013-01-22T15:04:05.001Z")
	offset := sortKey("2013-01-22T10:04:06-05:00")
	assert.Less(t, whole, frac)
	assert.Less(t, frac, offset)
}
