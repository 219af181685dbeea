package badger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/counsel/core"
	"github.com/poiesic/counsel/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	backend, err := OpenBackend(dir, false)
	require.NoError(t, err)
	defer backend.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOpenBackend_NotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	_, err := OpenBackend(file, false)
	assert.Error(t, err)
}

func TestWithTx_Closed(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NoError(t, backend.Close())

	_, err = NewSessionRepository(backend).GetSession(context.Background(), "x")
	assert.ErrorIs(t, err, storage.ErrClosed)
}

func TestFindSimilar(t *testing.T) {
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	ctx := context.Background()
	_, err = repos.Chunks.ReplaceChunks(ctx, 1,
		&core.Chunk{Text: "a", Position: "Article 1", Vector: []float32{1, 0, 0}},
		&core.Chunk{Text: "b", Position: "Article 2", Vector: []float32{0, 1, 0}},
		&core.Chunk{Text: "c", Position: "Article 3", Vector: []float32{0.8, 0.6, 0}},
		&core.Chunk{Text: "no vector", Position: "Article 4"},
	)
	require.NoError(t, err)

	t.Run("ranks by similarity", func(t *testing.T) {
		matches, err := repos.Chunks.FindSimilar(ctx, []float32{1, 0, 0}, 0.5, 10)
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, "a", matches[0].Chunk.Text)
		assert.Equal(t, "c", matches[1].Chunk.Text)
		assert.InDelta(t, 0.8, matches[1].Score, 1e-6)
	})

	t.Run("respects limit", func(t *testing.T) {
		matches, err := repos.Chunks.FindSimilar(ctx, []float32{1, 1, 0}, 0, 1)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "c", matches[0].Chunk.Text)
	})

	t.Run("no chunks above threshold", func(t *testing.T) {
		matches, err := repos.Chunks.FindSimilar(ctx, []float32{0, 0, 1}, 0.1, 10)
		require.NoError(t, err)
		assert.Empty(t, matches)
	})
}

func TestDotProduct(t *testing.T) {
	assert.InDelta(t, 11.0, dotProduct([]float32{1, 2}, []float32{3, 4}), 1e-6)
	assert.InDelta(t, 3.0, dotProduct([]float32{1, 2, 9}, []float32{3}), 1e-6)
	assert.Zero(t, dotProduct(nil, []float32{1}))
}
