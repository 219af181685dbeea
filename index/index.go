// Package index maintains the full-text keyword index over documents.
//
// Title and content are analyzed with bleve's CJK analyzer so Chinese
// statutes match on character bigrams while Latin text matches on words.
// Category and parse status are indexed verbatim; status filters matches.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve"
	"github.com/blevesearch/bleve/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/analysis/lang/cjk"
	"github.com/blevesearch/bleve/mapping"
	"github.com/poiesic/counsel/core"
)

// ErrEmptyQuery is returned when a match query has no terms.
var ErrEmptyQuery = errors.New("keyword query is empty")

// Keyword is the keyword leg of hybrid search.
type Keyword interface {
	// Index adds or replaces a document.
	Index(ctx context.Context, doc *core.Document) error

	// Delete removes a document.
	Delete(ctx context.Context, id core.ID) error

	// Match returns completed documents matching text in title or content,
	// best first, regardless of category.
	Match(ctx context.Context, text string, limit int) ([]core.ID, error)

	Close() error
}

// indexedDocument is the shape stored in bleve.
type indexedDocument struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
	Status   string `json:"status"`
}

// Bleve implements Keyword on a bleve index.
type Bleve struct {
	index  bleve.Index
	logger *slog.Logger
}

var _ Keyword = (*Bleve)(nil)

// NewMemOnly creates a volatile index, used in tests and for the in-memory engine.
func NewMemOnly() (*Bleve, error) {
	idx, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, err
	}
	return wrap(idx), nil
}

// Open opens the index at path, creating it when missing.
func Open(path string) (*Bleve, error) {
	idx, err := bleve.Open(path)
	if err == nil {
		return wrap(idx), nil
	}
	if !errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		if _, statErr := os.Stat(path); statErr == nil {
			return nil, fmt.Errorf("open keyword index %s: %w", path, err)
		}
	}
	idx, err = bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("create keyword index %s: %w", path, err)
	}
	return wrap(idx), nil
}

func wrap(idx bleve.Index) *Bleve {
	return &Bleve{
		index:  idx,
		logger: slog.Default().With("component", "keyword-index"),
	}
}

func newMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = cjk.AnalyzerName
	text.Store = false
	text.IncludeInAll = false

	exact := bleve.NewTextFieldMapping()
	exact.Analyzer = keyword.Name
	exact.Store = false
	exact.IncludeInAll = false

	doc := bleve.NewDocumentStaticMapping()
	doc.AddFieldMappingsAt("title", text)
	doc.AddFieldMappingsAt("content", text)
	doc.AddFieldMappingsAt("category", exact)
	doc.AddFieldMappingsAt("status", exact)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = cjk.AnalyzerName
	return m
}

func docKey(id core.ID) string {
	return strconv.FormatUint(uint64(id), 10)
}

func (b *Bleve) Index(ctx context.Context, doc *core.Document) error {
	return b.index.Index(docKey(doc.Id), indexedDocument{
		Title:    doc.Title,
		Content:  doc.Content,
		Category: doc.Category,
		Status:   doc.Status.String(),
	})
}

func (b *Bleve) Delete(ctx context.Context, id core.ID) error {
	return b.index.Delete(docKey(id))
}

func (b *Bleve) Match(ctx context.Context, text string, limit int) ([]core.ID, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		return nil, core.ErrInvalidLimit
	}

	title := bleve.NewMatchQuery(text)
	title.SetField("title")
	content := bleve.NewMatchQuery(text)
	content.SetField("content")

	status := bleve.NewTermQuery(core.StatusCompleted.String())
	status.SetField("status")

	match := bleve.NewConjunctionQuery(bleve.NewDisjunctionQuery(title, content), status)
	req := bleve.NewSearchRequestOptions(match, limit, 0, false)
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}

	ids := make([]core.ID, 0, len(res.Hits))
	for _, hit := range res.Hits {
		id, err := strconv.ParseUint(hit.ID, 10, 64)
		if err != nil {
			b.logger.Warn("skipping malformed index key", "key", hit.ID)
			continue
		}
		ids = append(ids, core.ID(id))
	}
	return ids, nil
}

// Count returns the number of indexed documents.
func (b *Bleve) Count() (uint64, error) {
	return b.index.DocCount()
}

func (b *Bleve) Close() error {
	return b.index.Close()
}
