package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	a, err := m.Record(ctx, Entry{Title: "a", Status: "LIVE"})
	require.NoError(t, err)
	b, err := m.Record(ctx, Entry{Title: "b", Status: "LIVE"})
	require.NoError(t, err)
	c, err := m.Record(ctx, Entry{Title: "c", Status: "DRAFT"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, []int64{a, b, c})

	require.NoError(t, m.MarkPending(ctx, b))
	require.NoError(t, m.MarkPending(ctx, a))
	assert.ErrorIs(t, m.MarkIndexed(ctx, 99), ErrNotFound)

	pending, err := m.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "a", pending[0].Title)

	pending, err = m.Pending(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	require.NoError(t, m.MarkIndexed(ctx, a))
	pending, _ = m.Pending(ctx, 0)
	require.Len(t, pending, 1)
	assert.Equal(t, "b", pending[0].Title)

	entries := m.Entries()
	assert.Equal(t, IndexNone, entries[2].IndexState)
	assert.False(t, entries[0].CreatedAt.IsZero())
}

func TestPostgresQueries(t *testing.T) {
	p := NewPostgres(nil)
	p.now = func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }

	query, args, err := p.insertQuery(Entry{Platform: "blogger", Title: "t", Status: "LIVE"})
	require.NoError(t, err)
	assert.Equal(t,
		"INSERT INTO published_posts (run_id,platform,target_id,keyword,title,post_id,status,url,publish_at,index_state,created_at) "+
			"VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id", query)
	require.Len(t, args, 11)
	assert.Equal(t, "none", args[9])

	query, args, err = p.markQuery(7, IndexPending)
	require.NoError(t, err)
	assert.Equal(t, "UPDATE published_posts SET index_state = $1 WHERE id = $2", query)
	assert.Equal(t, []any{"pending", int64(7)}, args)

	query, args, err = p.pendingQuery(5)
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT id, run_id, platform, target_id, keyword, title, post_id, status, url, publish_at, index_state, created_at "+
			"FROM published_posts WHERE index_state = $1 ORDER BY id ASC LIMIT 5", query)
	assert.Equal(t, []any{"pending"}, args)
}
