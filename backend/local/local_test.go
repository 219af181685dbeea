package local

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/counsel/ai"
	aimock "github.com/poiesic/counsel/ai/mock"
	"github.com/poiesic/counsel/backend"
	"github.com/poiesic/counsel/core"
	"github.com/poiesic/counsel/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusRecorder struct {
	mu      sync.Mutex
	updates []backend.StatusUpdate
	done    chan backend.StatusUpdate
}

func newStatusRecorder() *statusRecorder {
	return &statusRecorder{done: make(chan backend.StatusUpdate, 1)}
}

func (r *statusRecorder) record(ctx context.Context, u backend.StatusUpdate) error {
	r.mu.Lock()
	r.updates = append(r.updates, u)
	r.mu.Unlock()
	if u.Status == core.StatusCompleted || u.Status == core.StatusFailed {
		r.done <- u
	}
	return nil
}

func (r *statusRecorder) wait(t *testing.T) backend.StatusUpdate {
	t.Helper()
	select {
	case u := <-r.done:
		return u
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for parse to finish")
		return backend.StatusUpdate{}
	}
}

func (r *statusRecorder) progress() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int
	for _, u := range r.updates {
		out = append(out, u.Progress)
	}
	return out
}

func setup(t *testing.T, opts ...Option) (*Backend, *badger.Repositories, *aimock.MockGenerator, *statusRecorder) {
	t.Helper()
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)

	gen := aimock.NewMockGenerator()
	rec := newStatusRecorder()
	b, err := New(repos.Chunks, aimock.NewMockEmbedder(), gen,
		append([]Option{WithStatusFunc(rec.record), WithModelName("local-model")}, opts...)...)
	require.NoError(t, err)

	t.Cleanup(func() {
		b.Close()
		repos.Close()
	})
	return b, repos, gen, rec
}

const civilCode = `Article 179 The main methods of bearing civil liability are stopping the infringement and compensating for losses.
Article 180 A party that cannot perform its civil obligations due to force majeure bears no civil liability.
Article 181 A person who causes damage through justifiable defense bears no civil liability.`

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParseDocument(t *testing.T) {
	b, repos, _, rec := setup(t)
	path := writeDoc(t, "civil.txt", civilCode)

	ack, err := b.ParseDocument(context.Background(), 11, path, "TXT")
	require.NoError(t, err)
	assert.Equal(t, "accepted", ack.Status)

	final := rec.wait(t)
	assert.Equal(t, core.StatusCompleted, final.Status)
	assert.Equal(t, 3, final.VectorCount)
	assert.Equal(t, []int{20, 40, 60, 80, 100}, rec.progress())

	count, err := repos.Chunks.CountChunks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestParseDocument_Failures(t *testing.T) {
	t.Run("unsupported type", func(t *testing.T) {
		b, _, _, _ := setup(t)
		_, err := b.ParseDocument(context.Background(), 1, "/x.pdf", "pdf")
		assert.ErrorIs(t, err, ErrUnsupportedFileType)
		assert.ErrorIs(t, err, backend.ErrBadResponse)
	})

	t.Run("missing file reports failed", func(t *testing.T) {
		b, _, _, rec := setup(t)
		_, err := b.ParseDocument(context.Background(), 2, filepath.Join(t.TempDir(), "nope.txt"), "txt")
		require.NoError(t, err)

		final := rec.wait(t)
		assert.Equal(t, core.StatusFailed, final.Status)
		assert.NotEmpty(t, final.Error)
	})
}

func TestSemanticSearch(t *testing.T) {
	b, _, _, rec := setup(t, WithMinSimilarity(-1))
	_, err := b.ParseDocument(context.Background(), 5, writeDoc(t, "civil.md", civilCode), "md")
	require.NoError(t, err)
	rec.wait(t)

	// The mock embedder is deterministic, so an exact chunk text scores 1
	query := "Article 180 A party that cannot perform its civil obligations due to force majeure bears no civil liability."
	hits, err := b.SemanticSearch(context.Background(), query, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.EqualValues(t, 5, hits[0].DocumentId)
	assert.Equal(t, "Article 180", hits[0].ChunkPosition)
	assert.InDelta(t, 1.0, hits[0].SimilarityScore, 1e-4)
}

func TestAskQuestion(t *testing.T) {
	b, _, gen, rec := setup(t, WithMinSimilarity(-1))
	long := "Article 1 " + strings.Repeat("long provision text ", 30)
	_, err := b.ParseDocument(context.Background(), 8, writeDoc(t, "long.txt", long), "txt")
	require.NoError(t, err)
	rec.wait(t)

	var prompt string
	gen.GenerateFunc = func(ctx context.Context, system, p string) (*ai.Generation, error) {
		prompt = p
		return &ai.Generation{Text: "Grounded answer.", TokensUsed: 321}, nil
	}

	result, err := b.AskQuestion(context.Background(), "What does Article 1 say?", "s-1")
	require.NoError(t, err)
	assert.Equal(t, "Grounded answer.", result.Answer)
	assert.Equal(t, "local-model", result.Model)
	assert.Equal(t, 321, result.TokensUsed)
	require.Len(t, result.References, 1)
	assert.Len(t, []rune(result.References[0].ChunkText), referencePreview)
	assert.Contains(t, prompt, "[Document 1] Article 1")
	assert.Contains(t, prompt, "Question: What does Article 1 say?")
}

func TestAskQuestion_NoDocuments(t *testing.T) {
	b, _, gen, _ := setup(t)

	result, err := b.AskQuestion(context.Background(), "anything", "s")
	require.NoError(t, err)
	assert.Equal(t, NoDocumentsAnswer, result.Answer)
	assert.Zero(t, result.TokensUsed)
	assert.Empty(t, result.References)
	assert.Zero(t, gen.CallCount())
}

func TestAskQuestion_GeneratorFailure(t *testing.T) {
	b, _, gen, rec := setup(t, WithMinSimilarity(-1))
	_, err := b.ParseDocument(context.Background(), 3, writeDoc(t, "c.txt", civilCode), "txt")
	require.NoError(t, err)
	rec.wait(t)

	gen.GenerateFunc = func(context.Context, string, string) (*ai.Generation, error) {
		return nil, errors.New("model offline")
	}
	_, err = b.AskQuestion(context.Background(), "force majeure", "s")
	assert.ErrorIs(t, err, backend.ErrUnavailable)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, aimock.NewMockEmbedder(), aimock.NewMockGenerator())
	assert.ErrorIs(t, err, ErrChunksRequired)

	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	_, err = New(repos.Chunks, nil, aimock.NewMockGenerator())
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = New(repos.Chunks, aimock.NewMockEmbedder(), aimock.NewMockGenerator(), WithChunking(10, 10))
	assert.Error(t, err)
}
