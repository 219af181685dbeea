package index

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/poiesic/counsel/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *Bleve {
	t.Helper()
	idx, err := NewMemOnly()
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestMatch(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	docs := []*core.Document{
		{Id: 1, Title: "Civil Code", Category: "civil", Content: "force majeure excuses performance", Status: core.StatusCompleted},
		{Id: 2, Title: "Criminal Law", Category: "criminal", Content: "self defense is not a crime", Status: core.StatusCompleted},
		{Id: 3, Title: "Contract Law draft", Category: "civil", Content: "force majeure clause", Status: core.StatusParsing},
		{Id: 4, Title: "民法典", Category: "civil", Content: "因不可抗力不能履行民事义务的，不承担民事责任。", Status: core.StatusCompleted},
	}
	for _, d := range docs {
		require.NoError(t, idx.Index(ctx, d))
	}

	t.Run("only completed documents match", func(t *testing.T) {
		ids, err := idx.Match(ctx, "force majeure", 10)
		require.NoError(t, err)
		assert.Equal(t, []core.ID{1}, ids)
	})

	t.Run("title matches", func(t *testing.T) {
		ids, err := idx.Match(ctx, "criminal", 10)
		require.NoError(t, err)
		assert.Equal(t, []core.ID{2}, ids)
	})

	t.Run("category does not restrict keyword matches", func(t *testing.T) {
		ids, err := idx.Match(ctx, "self defense", 10)
		require.NoError(t, err)
		assert.Equal(t, []core.ID{2}, ids)
	})

	t.Run("chinese text", func(t *testing.T) {
		ids, err := idx.Match(ctx, "不可抗力", 10)
		require.NoError(t, err)
		assert.Equal(t, []core.ID{4}, ids)
	})

	t.Run("status change is reflected", func(t *testing.T) {
		docs[2].Status = core.StatusCompleted
		require.NoError(t, idx.Index(ctx, docs[2]))

		ids, err := idx.Match(ctx, "force majeure", 10)
		require.NoError(t, err)
		assert.ElementsMatch(t, []core.ID{1, 3}, ids)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, idx.Delete(ctx, 2))
		ids, err := idx.Match(ctx, "criminal", 10)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := idx.Match(ctx, "  ", 10)
		assert.ErrorIs(t, err, ErrEmptyQuery)
		_, err = idx.Match(ctx, "force", 0)
		assert.ErrorIs(t, err, core.ErrInvalidLimit)
	})
}

func TestOpen_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyword.bleve")
	ctx := context.Background()

	idx, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, idx.Index(ctx, &core.Document{Id: 9, Title: "Labor Law", Status: core.StatusCompleted}))
	require.NoError(t, idx.Close())

	idx, err = Open(path)
	require.NoError(t, err)
	defer idx.Close()

	n, err := idx.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
