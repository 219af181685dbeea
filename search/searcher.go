package search

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/poiesic/counsel/backend"
	"github.com/poiesic/counsel/core"
	"github.com/poiesic/counsel/index"
	"github.com/poiesic/counsel/storage"
	"github.com/poiesic/counsel/telemetry"
	"golang.org/x/sync/errgroup"
)

const (
	// KeywordScore is the fixed score of a keyword-only result.
	KeywordScore = 0.5

	// HybridBonus is added to the better score of a document found by both legs.
	HybridBonus = 0.2
)

// Searcher merges keyword and semantic search over documents.
type Searcher struct {
	keyword   index.Keyword
	documents storage.DocumentRepository
	backend   backend.Backend
	metrics   *telemetry.Metrics
	logger    *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMetrics counts returned results by source.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Searcher) error {
		s.metrics = m
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(
	keyword index.Keyword,
	documents storage.DocumentRepository,
	be backend.Backend,
	opts ...Option,
) (*Searcher, error) {
	if keyword == nil {
		return nil, ErrKeywordIndexRequired
	}
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if be == nil {
		return nil, ErrBackendRequired
	}

	s := &Searcher{
		keyword:   keyword,
		documents: documents,
		backend:   be,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "searcher")

	return s, nil
}

// HybridSearch returns up to limit documents matching query, best first.
// A non-empty category restricts the semantic leg only.
func (s *Searcher) HybridSearch(ctx context.Context, query, category string, limit int) ([]Result, error) {
	return s.HybridSearchWithMonitor(ctx, query, category, limit, nil)
}

// HybridSearchWithMonitor is HybridSearch with callbacks at each stage.
func (s *Searcher) HybridSearchWithMonitor(ctx context.Context, query, category string, limit int, monitor SearchMonitor) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrValidation, ErrEmptyQuery)
	}
	if err := core.ValidateLimit(limit); err != nil {
		return nil, err
	}
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	monitor.Start(query)

	var keywordResults, semanticResults []Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		keywordResults, err = s.keywordLeg(gctx, query, limit)
		if err != nil {
			return fmt.Errorf("keyword search: %w", err)
		}
		monitor.AfterKeywordSearch(keywordResults)
		return nil
	})
	g.Go(func() error {
		hits, err := s.backend.SemanticSearch(gctx, query, limit)
		if err != nil {
			// Degrade to keyword-only results
			s.logger.Warn("semantic search failed", "err", err)
			monitor.SemanticSearchFailed(err)
			return nil
		}
		monitor.AfterSemanticSearch(hits)
		semanticResults, err = s.resolveHits(gctx, hits, category)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("hybrid search failed", "query", query, "err", err)
		return nil, err
	}

	results := merge(keywordResults, semanticResults, monitor)
	if len(results) > limit {
		results = results[:limit]
	}

	for _, r := range results {
		s.metrics.ObserveSearchResult(r.Source.String())
	}
	monitor.Finish(results)
	return results, nil
}

func (s *Searcher) keywordLeg(ctx context.Context, query string, limit int) ([]Result, error) {
	ids, err := s.keyword.Match(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	docs, err := s.documents.GetDocuments(ctx, ids...)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		doc, ok := docs[id]
		if !ok {
			s.logger.Debug("keyword hit for missing document", "document", id)
			continue
		}
		r := fromDocument(doc, SourceKeyword)
		r.Score = KeywordScore
		results = append(results, r)
	}
	return results, nil
}

// resolveHits attaches document metadata to semantic hits, dropping hits for
// missing documents or other categories. Several hits of one document
// collapse into its first slot with the best score.
func (s *Searcher) resolveHits(ctx context.Context, hits []backend.SemanticHit, category string) ([]Result, error) {
	ids := make([]core.ID, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.DocumentId)
	}
	docs, err := s.documents.GetDocuments(ctx, ids...)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(hits))
	slot := make(map[core.ID]int, len(hits))
	for _, h := range hits {
		doc, ok := docs[h.DocumentId]
		if !ok {
			continue
		}
		if category != "" && doc.Category != category {
			continue
		}
		if i, seen := slot[doc.Id]; seen {
			if h.SimilarityScore > results[i].Score {
				results[i].Score = h.SimilarityScore
				results[i].ChunkText = h.ChunkText
				results[i].ChunkPosition = h.ChunkPosition
			}
			continue
		}
		r := fromDocument(doc, SourceSemantic)
		r.Score = h.SimilarityScore
		r.ChunkText = h.ChunkText
		r.ChunkPosition = h.ChunkPosition
		slot[doc.Id] = len(results)
		results = append(results, r)
	}
	return results, nil
}

func fromDocument(doc *core.Document, source Source) Result {
	return Result{
		DocumentId: doc.Id,
		Title:      doc.Title,
		Category:   doc.Category,
		FileName:   doc.FileName,
		Source:     source,
	}
}

// merge combines both legs by document, keyword entries first, then sorts
// by descending score. The sort is stable so ties keep insertion order.
func merge(keyword, semantic []Result, monitor SearchMonitor) []Result {
	merged := make([]Result, 0, len(keyword)+len(semantic))
	slot := make(map[core.ID]int, len(keyword))
	for _, r := range keyword {
		if _, seen := slot[r.DocumentId]; seen {
			continue
		}
		slot[r.DocumentId] = len(merged)
		merged = append(merged, r)
	}

	for _, r := range semantic {
		i, seen := slot[r.DocumentId]
		if !seen {
			slot[r.DocumentId] = len(merged)
			merged = append(merged, r)
			continue
		}
		existing := &merged[i]
		existing.Score = max(existing.Score, r.Score) + HybridBonus
		existing.Source = SourceHybrid
		if r.ChunkText != "" {
			existing.ChunkText = r.ChunkText
			existing.ChunkPosition = r.ChunkPosition
		}
		monitor.HybridHit(*existing)
	}

	slices.SortStableFunc(merged, func(a, b Result) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	return merged
}
