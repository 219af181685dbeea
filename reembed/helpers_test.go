package reembed

import (
	"context"
	"math"
	"testing"

	"github.com/poiesic/counsel/core"
	"github.com/poiesic/counsel/storage/badger"
	"github.com/stretchr/testify/require"
)

// mockEmbedder for testing
type mockEmbedder struct {
	embedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)
	calls          int
}

func (m *mockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := m.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (m *mockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.calls++
	if m.embedTextsFunc != nil {
		return m.embedTextsFunc(ctx, texts)
	}
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = []float32{1.0, 2.0, 2.0} // magnitude = 3.0
	}
	return result, nil
}

func setupChunks(t *testing.T, texts ...string) (*badger.Repositories, []*core.Chunk) {
	t.Helper()
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })

	chunks := make([]*core.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = &core.Chunk{Index: i, Text: text, Position: text, Vector: []float32{0, 0, 1}}
	}
	added, err := repos.Chunks.ReplaceChunks(context.Background(), 1, chunks...)
	require.NoError(t, err)
	return repos, added
}

func allChunks(t *testing.T, repos *badger.Repositories) []*core.Chunk {
	t.Helper()
	var out []*core.Chunk
	err := repos.Chunks.ForEachChunkBatch(context.Background(), 50, func(chunks []*core.Chunk) error {
		out = append(out, chunks...)
		return nil
	})
	require.NoError(t, err)
	return out
}

func magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
