package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/poiesic/counsel/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// embeddingServer answers /v1/embeddings with one vector per input,
// dropping the last vector when short is set.
func embeddingServer(t *testing.T, short bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		type item struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		n := len(req.Input)
		if short {
			n--
		}
		data := make([]item, n)
		for i := range data {
			data[i] = item{Object: "embedding", Embedding: []float32{float32(len([]rune(req.Input[i]))), 1}, Index: i}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbedder(t *testing.T) {
	ctx := context.Background()
	srv := embeddingServer(t, false)
	embedder, err := NewEmbedder(ai.NewConfig(ai.WithHost(srv.URL)))
	require.NoError(t, err)

	t.Run("query", func(t *testing.T) {
		vector, err := embedder.EmbedText(ctx, "不可抗力")
		require.NoError(t, err)
		assert.Equal(t, []float32{4, 1}, vector)
	})

	t.Run("chunks keep order", func(t *testing.T) {
		vectors, err := embedder.EmbedTexts(ctx, []string{"第一条", "第二条 合同"})
		require.NoError(t, err)
		require.Len(t, vectors, 2)
		assert.Equal(t, float32(3), vectors[0][0])
		assert.Equal(t, float32(6), vectors[1][0])
	})

	t.Run("empty batch", func(t *testing.T) {
		vectors, err := embedder.EmbedTexts(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, vectors)
	})
}

func TestEmbedder_CountMismatch(t *testing.T) {
	srv := embeddingServer(t, true)
	embedder, err := NewEmbedder(ai.NewConfig(ai.WithHost(srv.URL)))
	require.NoError(t, err)

	// Either the client library or the embedder itself rejects the short batch.
	_, err = embedder.EmbedTexts(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}
