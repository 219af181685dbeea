package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/counsel/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	m := NewMockEmbedder()
	ctx := context.Background()

	a, err := m.EmbedText(ctx, "force majeure")
	require.NoError(t, err)
	b, err := m.EmbedText(ctx, "force majeure")
	require.NoError(t, err)
	c, err := m.EmbedText(ctx, "limitation period")
	require.NoError(t, err)

	assert.Len(t, a, DefaultDimension)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	var self float32
	for i := range a {
		self += a[i] * a[i]
	}
	assert.InDelta(t, 1.0, self, 1e-4, "default vectors are unit length")
	assert.Equal(t, 3, m.CallCount())
}

func TestMockEmbedder_Batch(t *testing.T) {
	m := NewMockEmbedder()
	vecs, err := m.EmbedTexts(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)

	single, _ := m.EmbedText(context.Background(), "b")
	assert.Equal(t, single, vecs[1])
}

func TestMockGenerator(t *testing.T) {
	m := NewMockGenerator()
	gen, err := m.Generate(context.Background(), "sys", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "mock-model", gen.Model)
	assert.NotEmpty(t, gen.Text)

	boom := errors.New("boom")
	m.GenerateFunc = func(context.Context, string, string) (*ai.Generation, error) {
		return nil, boom
	}
	_, err = m.Generate(context.Background(), "sys", "prompt")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, m.CallCount())

	m.Reset()
	assert.Zero(t, m.CallCount())
	assert.Nil(t, m.GenerateFunc)
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider()
	assert.Same(t, p.GetMockEmbedder(), p.Embedder())
	assert.Same(t, p.GetMockGenerator(), p.Generator())
	assert.False(t, p.Closed())
	assert.NoError(t, p.Close())
	assert.True(t, p.Closed())
}
