package search

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/poiesic/counsel/backend"
	"github.com/poiesic/counsel/backend/mock"
	"github.com/poiesic/counsel/core"
	"github.com/poiesic/counsel/index"
	"github.com/poiesic/counsel/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	repos   *badger.Repositories
	keyword *index.Bleve
	backend *mock.Backend
	docs    map[string]*core.Document
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })

	keyword, err := index.NewMemOnly()
	require.NoError(t, err)
	t.Cleanup(func() { keyword.Close() })

	f := &fixture{
		repos:   repos,
		keyword: keyword,
		backend: mock.New(),
		docs:    make(map[string]*core.Document),
	}

	ctx := context.Background()
	seed := []*core.Document{
		{Title: "Civil Code", Category: "civil", FileName: "civil.txt", Content: "force majeure excuses performance", Status: core.StatusCompleted},
		{Title: "Contract Law", Category: "civil", FileName: "contract.txt", Content: "a contract binds the parties", Status: core.StatusCompleted},
		{Title: "Criminal Law", Category: "criminal", FileName: "criminal.txt", Content: "self defense against force", Status: core.StatusCompleted},
	}
	for _, d := range seed {
		doc, err := repos.Documents.AddDocument(ctx, d)
		require.NoError(t, err)
		require.NoError(t, keyword.Index(ctx, doc))
		f.docs[doc.FileName] = doc
	}
	return f
}

func (f *fixture) searcher(t *testing.T) *Searcher {
	t.Helper()
	s, err := NewSearcher(f.keyword, f.repos.Documents, f.backend)
	require.NoError(t, err)
	return s
}

func TestNewSearcher(t *testing.T) {
	f := newFixture(t)

	t.Run("valid configuration", func(t *testing.T) {
		searcher, err := NewSearcher(f.keyword, f.repos.Documents, f.backend)
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		searcher, err := NewSearcher(f.keyword, f.repos.Documents, f.backend, WithLogger(nil))
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("with custom logger", func(t *testing.T) {
		searcher, err := NewSearcher(f.keyword, f.repos.Documents, f.backend, WithLogger(slog.Default()))
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("nil keyword index", func(t *testing.T) {
		_, err := NewSearcher(nil, f.repos.Documents, f.backend)
		assert.Equal(t, ErrKeywordIndexRequired, err)
	})

	t.Run("nil document repository", func(t *testing.T) {
		_, err := NewSearcher(f.keyword, nil, f.backend)
		assert.Equal(t, ErrDocumentRepositoryRequired, err)
	})

	t.Run("nil backend", func(t *testing.T) {
		_, err := NewSearcher(f.keyword, f.repos.Documents, nil)
		assert.Equal(t, ErrBackendRequired, err)
	})
}

func TestHybridSearchValidation(t *testing.T) {
	f := newFixture(t)
	s := f.searcher(t)
	ctx := context.Background()

	_, err := s.HybridSearch(ctx, "   ", "", 10)
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = s.HybridSearch(ctx, "force", "", 0)
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.ErrorIs(t, err, core.ErrInvalidLimit)

	assert.Zero(t, f.backend.Calls(backend.OpSearch))
}

func TestHybridSearchKeywordOnly(t *testing.T) {
	f := newFixture(t)
	s := f.searcher(t)

	results, err := s.HybridSearch(context.Background(), "contract", "", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, f.docs["contract.txt"].Id, r.DocumentId)
	assert.Equal(t, "Contract Law", r.Title)
	assert.Equal(t, "civil", r.Category)
	assert.Equal(t, SourceKeyword, r.Source)
	assert.InDelta(t, KeywordScore, r.Score, 1e-9)
	assert.Empty(t, r.ChunkText)
}

func TestHybridSearchMerge(t *testing.T) {
	f := newFixture(t)
	civil := f.docs["civil.txt"]
	contract := f.docs["contract.txt"]
	criminal := f.docs["criminal.txt"]

	f.backend.SemanticSearchFunc = func(ctx context.Context, query string, limit int) ([]backend.SemanticHit, error) {
		return []backend.SemanticHit{
			{DocumentId: civil.Id, ChunkText: "force majeure excuses", ChunkPosition: "Article 180", SimilarityScore: 0.7},
			{DocumentId: civil.Id, ChunkText: "weaker excerpt", ChunkPosition: "Article 1", SimilarityScore: 0.4},
			{DocumentId: contract.Id, ChunkText: "a contract binds", ChunkPosition: "Article 465", SimilarityScore: 0.6},
			{DocumentId: core.ID(9999), ChunkText: "orphan", SimilarityScore: 0.99},
		}, nil
	}
	s := f.searcher(t)

	// "force" also matches the criminal statute through the keyword leg alone
	results, err := s.HybridSearch(context.Background(), "force majeure", "", 10)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Found by both legs: the better score plus the bonus, semantic excerpt kept
	assert.Equal(t, civil.Id, results[0].DocumentId)
	assert.Equal(t, SourceHybrid, results[0].Source)
	assert.InDelta(t, 0.7+HybridBonus, results[0].Score, 1e-9)
	assert.Equal(t, "force majeure excuses", results[0].ChunkText)
	assert.Equal(t, "Article 180", results[0].ChunkPosition)

	assert.Equal(t, contract.Id, results[1].DocumentId)
	assert.Equal(t, SourceSemantic, results[1].Source)
	assert.InDelta(t, 0.6, results[1].Score, 1e-9)

	assert.Equal(t, criminal.Id, results[2].DocumentId)
	assert.Equal(t, SourceKeyword, results[2].Source)
	assert.InDelta(t, KeywordScore, results[2].Score, 1e-9)
}

func TestHybridSearchKeywordWinsScore(t *testing.T) {
	f := newFixture(t)
	civil := f.docs["civil.txt"]

	f.backend.SemanticSearchFunc = func(ctx context.Context, query string, limit int) ([]backend.SemanticHit, error) {
		return []backend.SemanticHit{{DocumentId: civil.Id, ChunkText: "excerpt", SimilarityScore: 0.3}}, nil
	}
	s := f.searcher(t)

	results, err := s.HybridSearch(context.Background(), "majeure", "", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, SourceHybrid, results[0].Source)
	assert.InDelta(t, KeywordScore+HybridBonus, results[0].Score, 1e-9)
}

func TestHybridSearchTiesKeepKeywordFirst(t *testing.T) {
	f := newFixture(t)
	criminal := f.docs["criminal.txt"]

	f.backend.SemanticSearchFunc = func(ctx context.Context, query string, limit int) ([]backend.SemanticHit, error) {
		return []backend.SemanticHit{{DocumentId: criminal.Id, ChunkText: "self defense", SimilarityScore: KeywordScore}}, nil
	}
	s := f.searcher(t)

	results, err := s.HybridSearch(context.Background(), "contract", "", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, SourceKeyword, results[0].Source)
	assert.Equal(t, SourceSemantic, results[1].Source)
	assert.Equal(t, criminal.Id, results[1].DocumentId)
}

func TestHybridSearchCategory(t *testing.T) {
	f := newFixture(t)
	civil := f.docs["civil.txt"]
	criminal := f.docs["criminal.txt"]

	f.backend.SemanticSearchFunc = func(ctx context.Context, query string, limit int) ([]backend.SemanticHit, error) {
		return []backend.SemanticHit{
			{DocumentId: criminal.Id, SimilarityScore: 0.9},
			{DocumentId: civil.Id, SimilarityScore: 0.8},
		}, nil
	}
	s := f.searcher(t)

	// The category drops the criminal semantic hit but not its keyword match
	results, err := s.HybridSearch(context.Background(), "force", "civil", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, civil.Id, results[0].DocumentId)
	assert.Equal(t, SourceHybrid, results[0].Source)
	assert.InDelta(t, 0.8+HybridBonus, results[0].Score, 1e-9)

	assert.Equal(t, criminal.Id, results[1].DocumentId)
	assert.Equal(t, SourceKeyword, results[1].Source)
	assert.InDelta(t, KeywordScore, results[1].Score, 1e-9)
}

func TestHybridSearchLimit(t *testing.T) {
	f := newFixture(t)

	f.backend.SemanticSearchFunc = func(ctx context.Context, query string, limit int) ([]backend.SemanticHit, error) {
		assert.Equal(t, 2, limit)
		var hits []backend.SemanticHit
		for _, d := range f.docs {
			hits = append(hits, backend.SemanticHit{DocumentId: d.Id, SimilarityScore: 0.1})
		}
		return hits, nil
	}
	s := f.searcher(t)

	results, err := s.HybridSearch(context.Background(), "law", "", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestHybridSearchSemanticFailure(t *testing.T) {
	f := newFixture(t)
	f.backend.SemanticSearchFunc = func(ctx context.Context, query string, limit int) ([]backend.SemanticHit, error) {
		return nil, backend.Unavailable(backend.OpSearch, errors.New("connection refused"))
	}
	s := f.searcher(t)

	monitor := &recordingMonitor{}
	results, err := s.HybridSearchWithMonitor(context.Background(), "force", "", 10, monitor)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, SourceKeyword, r.Source)
	}
	assert.ErrorIs(t, monitor.semanticErr, backend.ErrUnavailable)
	assert.Equal(t, "force", monitor.query)
	assert.Len(t, monitor.finished, 2)
}

func TestSourceJSON(t *testing.T) {
	data, err := json.Marshal(Result{Source: SourceHybrid})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"source":"hybrid"`)

	_, err = json.Marshal(Source(0))
	assert.Error(t, err)
	assert.Equal(t, "Source(7)", Source(7).String())
}

type recordingMonitor struct {
	noopMonitor
	query       string
	semanticErr error
	finished    []Result
}

func (m *recordingMonitor) Start(query string)            { m.query = query }
func (m *recordingMonitor) SemanticSearchFailed(err error) { m.semanticErr = err }
func (m *recordingMonitor) Finish(results []Result)        { m.finished = results }
