package reembed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/counsel/core"
	"github.com/poiesic/counsel/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchProcessor_Process(t *testing.T) {
	repos, added := setupChunks(t, "合同应当遵循诚信原则。", "不可抗力免除责任。")
	embedder := &mockEmbedder{}
	processor := NewBatchProcessor(repos.Chunks, embedder, 3, time.Millisecond)

	require.NoError(t, processor.Process(context.Background(), added))

	updated := allChunks(t, repos)
	require.Len(t, updated, 2)
	for _, chunk := range updated {
		assert.InDelta(t, 1.0, magnitude(chunk.Vector), 0.001)
		assert.InDelta(t, 1.0/3.0, chunk.Vector[0], 0.001)
	}
	assert.Equal(t, "合同应当遵循诚信原则。", updated[0].Text)
	assert.Equal(t, core.ID(1), updated[0].DocumentId)
}

func TestBatchProcessor_EmptyBatch(t *testing.T) {
	repos, _ := setupChunks(t)
	embedder := &mockEmbedder{}
	processor := NewBatchProcessor(repos.Chunks, embedder, 3, time.Millisecond)

	require.NoError(t, processor.Process(context.Background(), nil))
	assert.Zero(t, embedder.calls)
}

func TestBatchProcessor_RetriesThenSucceeds(t *testing.T) {
	repos, added := setupChunks(t, "第一条")
	embedder := &mockEmbedder{}
	embedder.embedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		if embedder.calls < 3 {
			return nil, errors.New("temporary failure")
		}
		return [][]float32{{3, 4}}, nil
	}
	processor := NewBatchProcessor(repos.Chunks, embedder, 3, time.Millisecond)

	require.NoError(t, processor.Process(context.Background(), added))
	assert.Equal(t, 3, embedder.calls)
	assert.Equal(t, []float32{0.6, 0.8}, allChunks(t, repos)[0].Vector)
}

func TestBatchProcessor_Errors(t *testing.T) {
	t.Run("embedding keeps failing", func(t *testing.T) {
		repos, added := setupChunks(t, "第一条")
		boom := errors.New("embedding service down")
		embedder := &mockEmbedder{embedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			return nil, boom
		}}
		processor := NewBatchProcessor(repos.Chunks, embedder, 2, time.Millisecond)

		err := processor.Process(context.Background(), added)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 2, embedder.calls)
		assert.Equal(t, []float32{0, 0, 1}, allChunks(t, repos)[0].Vector)
	})

	t.Run("count mismatch", func(t *testing.T) {
		repos, added := setupChunks(t, "第一条", "第二条")
		embedder := &mockEmbedder{embedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			return [][]float32{{1}}, nil
		}}
		processor := NewBatchProcessor(repos.Chunks, embedder, 1, time.Millisecond)

		err := processor.Process(context.Background(), added)
		assert.ErrorContains(t, err, "embedding count mismatch")
	})

	t.Run("unknown chunk", func(t *testing.T) {
		repos, _ := setupChunks(t)
		processor := NewBatchProcessor(repos.Chunks, &mockEmbedder{}, 1, time.Millisecond)

		err := processor.Process(context.Background(), []*core.Chunk{{Id: 999, Text: "ghost"}})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}
