package reembed

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReembedder(t *testing.T) {
	repos, _ := setupChunks(t)

	_, err := NewReembedder(nil, &mockEmbedder{}, nil, nil)
	assert.ErrorIs(t, err, ErrChunkRepositoryRequired)

	_, err = NewReembedder(repos.Chunks, nil, nil, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	r, err := NewReembedder(repos.Chunks, &mockEmbedder{}, &Config{MaxRetries: 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().BatchSize, r.config.BatchSize)
}

func TestReembedder_Run(t *testing.T) {
	texts := []string{"第一条", "第二条", "第三条", "第四条", "第五条"}
	repos, _ := setupChunks(t, texts...)
	embedder := &mockEmbedder{}

	var out bytes.Buffer
	r, err := NewReembedder(repos.Chunks, embedder, &Config{
		BatchSize:      2,
		ReportInterval: 1,
		MaxRetries:     1,
		RetryDelay:     time.Millisecond,
	}, &out)
	require.NoError(t, err)

	n, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 3, embedder.calls, "batches of 2, 2 and 1")

	for _, chunk := range allChunks(t, repos) {
		assert.InDelta(t, 1.0, magnitude(chunk.Vector), 0.001)
		assert.InDelta(t, 2.0/3.0, chunk.Vector[1], 0.001)
	}
	assert.Contains(t, out.String(), "Starting reembedding of 5 chunks (batch size: 2)")
	assert.Contains(t, out.String(), "Processed 5 chunks")
}

func TestReembedder_Empty(t *testing.T) {
	repos, _ := setupChunks(t)
	var out bytes.Buffer
	r, err := NewReembedder(repos.Chunks, &mockEmbedder{}, nil, &out)
	require.NoError(t, err)

	n, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Contains(t, out.String(), "No chunks found")
}

func TestReembedder_StopsOnFailure(t *testing.T) {
	repos, _ := setupChunks(t, "第一条", "第二条", "第三条")
	boom := errors.New("quota exceeded")
	embedder := &mockEmbedder{}
	embedder.embedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		if embedder.calls > 1 {
			return nil, boom
		}
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{1, 0}
		}
		return out, nil
	}

	r, err := NewReembedder(repos.Chunks, embedder, &Config{BatchSize: 2, ReportInterval: 1, MaxRetries: 1}, nil)
	require.NoError(t, err)

	n, err := r.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, n)
}
