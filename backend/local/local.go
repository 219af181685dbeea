// Package local implements backend.Backend in process: documents are
// chunked and embedded into the chunk store, semantic search is a vector
// scan over it, and answers come from an OpenAI-compatible model.
package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/counsel/ai"
	"github.com/poiesic/counsel/backend"
	"github.com/poiesic/counsel/core"
	"github.com/poiesic/counsel/storage"
	"github.com/poiesic/counsel/telemetry"
)

const (
	// DefaultTopK is how many chunks ground an answer.
	DefaultTopK = 5

	// DefaultWorkers bounds concurrent document parses.
	DefaultWorkers = 4

	// DefaultEmbedBatch is how many chunks are embedded per request.
	DefaultEmbedBatch = 32

	// referencePreview caps reference excerpts, in characters.
	referencePreview = 200

	releaseTimeout = 5 * time.Second
)

// NoDocumentsAnswer is returned when retrieval finds nothing to ground an answer.
const NoDocumentsAnswer = "Sorry, I could not find any legal documents related to your question. " +
	"Try rephrasing it or upload the relevant documents."

const systemPrompt = `You are a professional legal assistant. Answer the user's question using only the provided legal documents.

Rules:
1. Base your answer only on the provided document content.
2. If the documents contain nothing relevant, say so plainly.
3. Cite specific provisions (such as "Article X") to support your answer.
4. Keep an objective, professional tone.
5. If the question calls for legal advice, remind the user to consult a qualified lawyer.`

var (
	// ErrUnsupportedFileType is returned for files the local parser cannot read.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	ErrChunksRequired    = errors.New("chunk repository is required")
	ErrEmbedderRequired  = errors.New("embedder is required")
	ErrGeneratorRequired = errors.New("generator is required")
)

// Backend is the in-process generation backend.
type Backend struct {
	chunks        storage.ChunkRepository
	embedder      ai.Embedder
	generator     ai.Generator
	pool          *ants.Pool
	chunker       chunker
	onStatus      backend.StatusFunc
	timeouts      backend.Timeouts
	topK          int
	minSimilarity float32
	embedBatch    int
	workers       int
	model         string
	metrics       *telemetry.Metrics
	logger        *slog.Logger
}

var _ backend.Backend = (*Backend)(nil)

// Option configures a Backend.
type Option func(*Backend) error

// WithStatusFunc receives parse progress.
func WithStatusFunc(fn backend.StatusFunc) Option {
	return func(b *Backend) error {
		b.onStatus = fn
		return nil
	}
}

// WithTimeouts sets per-operation deadlines; zero fields keep their defaults.
func WithTimeouts(t backend.Timeouts) Option {
	return func(b *Backend) error {
		b.timeouts = t.WithDefaults()
		return nil
	}
}

// WithTopK sets how many chunks ground an answer.
func WithTopK(k int) Option {
	return func(b *Backend) error {
		if k <= 0 {
			return fmt.Errorf("top k must be positive, got %d", k)
		}
		b.topK = k
		return nil
	}
}

// WithMinSimilarity drops chunks scoring below threshold.
func WithMinSimilarity(threshold float32) Option {
	return func(b *Backend) error {
		b.minSimilarity = threshold
		return nil
	}
}

// WithChunking sets the chunk size and overlap in characters.
func WithChunking(size, overlap int) Option {
	return func(b *Backend) error {
		if size <= 0 || overlap < 0 || overlap >= size {
			return fmt.Errorf("invalid chunking size=%d overlap=%d", size, overlap)
		}
		b.chunker = chunker{size: size, overlap: overlap}
		return nil
	}
}

// WithWorkers bounds concurrent document parses.
func WithWorkers(n int) Option {
	return func(b *Backend) error {
		if n <= 0 {
			return fmt.Errorf("workers must be positive, got %d", n)
		}
		b.workers = n
		return nil
	}
}

// WithModelName sets the model name reported with answers.
func WithModelName(model string) Option {
	return func(b *Backend) error {
		b.model = model
		return nil
	}
}

// WithMetrics records call counts and latency.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(b *Backend) error {
		b.metrics = m
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) error {
		if logger != nil {
			b.logger = logger
		}
		return nil
	}
}

// New creates a local backend. Close releases its parse pool.
func New(chunks storage.ChunkRepository, embedder ai.Embedder, generator ai.Generator, opts ...Option) (*Backend, error) {
	if chunks == nil {
		return nil, ErrChunksRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}

	b := &Backend{
		chunks:     chunks,
		embedder:   embedder,
		generator:  generator,
		chunker:    chunker{size: DefaultChunkSize, overlap: DefaultChunkOverlap},
		timeouts:   backend.DefaultTimeouts(),
		topK:       DefaultTopK,
		embedBatch: DefaultEmbedBatch,
		workers:    DefaultWorkers,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	b.logger = b.logger.With("component", "backend-local")

	pool, err := ants.NewPool(b.workers, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}
	b.pool = pool
	return b, nil
}

// ParseDocument accepts the document and parses it on the worker pool.
func (b *Backend) ParseDocument(ctx context.Context, documentID core.ID, filePath, fileType string) (ack *backend.ParseAck, err error) {
	start := time.Now()
	defer func() { b.metrics.ObserveBackend(backend.OpParse, err, time.Since(start)) }()

	if !supportedFileType(fileType) {
		return nil, backend.BadResponse(backend.OpParse, 0, fmt.Errorf("%w: %q", ErrUnsupportedFileType, fileType))
	}

	// The parse outlives the request that triggered it
	bg := context.WithoutCancel(ctx)
	err = b.pool.Submit(func() {
		b.parse(bg, documentID, filePath)
	})
	if err != nil {
		return nil, backend.Unavailable(backend.OpParse, err)
	}

	b.logger.Info("document parse accepted", "document", documentID, "path", filePath)
	return &backend.ParseAck{Status: "accepted", Message: "Document parsing started"}, nil
}

func supportedFileType(fileType string) bool {
	switch strings.ToLower(strings.TrimPrefix(fileType, ".")) {
	case "txt", "text", "md", "markdown":
		return true
	}
	return false
}

func (b *Backend) parse(ctx context.Context, documentID core.ID, filePath string) {
	b.report(ctx, documentID, core.StatusParsing, 20, "", 0)

	count, err := b.ingest(ctx, documentID, filePath)
	if err != nil {
		b.logger.Error("document parse failed", "document", documentID, "err", err)
		b.report(ctx, documentID, core.StatusFailed, 0, err.Error(), 0)
		return
	}

	b.logger.Info("document parsed", "document", documentID, "chunks", count)
	b.report(ctx, documentID, core.StatusCompleted, 100, "", count)
}

func (b *Backend) ingest(ctx context.Context, documentID core.ID, filePath string) (int, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return 0, err
	}
	b.report(ctx, documentID, core.StatusParsing, 40, "", 0)

	pieces := b.chunker.split(string(data))
	if len(pieces) == 0 {
		return 0, errors.New("document contains no text")
	}
	b.report(ctx, documentID, core.StatusParsing, 60, "", 0)

	chunks := make([]*core.Chunk, len(pieces))
	for start := 0; start < len(pieces); start += b.embedBatch {
		end := min(start+b.embedBatch, len(pieces))
		texts := make([]string, 0, end-start)
		for _, p := range pieces[start:end] {
			texts = append(texts, p.text)
		}
		vectors, err := b.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embed chunks: %w", err)
		}
		if len(vectors) != len(texts) {
			return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(texts))
		}
		for i, p := range pieces[start:end] {
			chunks[start+i] = &core.Chunk{
				Index:    start + i,
				Text:     p.text,
				Position: p.position,
				Vector:   ai.NormalizeVector(vectors[i]),
			}
		}
	}
	b.report(ctx, documentID, core.StatusParsing, 80, "", 0)

	if _, err := b.chunks.ReplaceChunks(ctx, documentID, chunks...); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}
	return len(chunks), nil
}

func (b *Backend) report(ctx context.Context, documentID core.ID, status core.DocumentStatus, progress int, errMsg string, vectors int) {
	if b.onStatus == nil {
		return
	}
	err := b.onStatus(ctx, backend.StatusUpdate{
		DocumentId:  documentID,
		Status:      status,
		Progress:    progress,
		Error:       errMsg,
		VectorCount: vectors,
	})
	if err != nil {
		b.logger.Warn("failed to report parse status", "document", documentID, "status", status, "err", err)
	}
}

// SemanticSearch embeds query and scans the chunk store.
func (b *Backend) SemanticSearch(ctx context.Context, query string, limit int) (hits []backend.SemanticHit, err error) {
	start := time.Now()
	defer func() { b.metrics.ObserveBackend(backend.OpSearch, err, time.Since(start)) }()

	ctx, cancel := context.WithTimeout(ctx, b.timeouts.Search)
	defer cancel()

	matches, err := b.retrieve(ctx, query, limit)
	if err != nil {
		return nil, backend.Unavailable(backend.OpSearch, err)
	}

	hits = make([]backend.SemanticHit, 0, len(matches))
	for _, m := range matches {
		hits = append(hits, backend.SemanticHit{
			DocumentId:      m.Chunk.DocumentId,
			ChunkText:       m.Chunk.Text,
			ChunkPosition:   m.Chunk.Position,
			SimilarityScore: float64(m.Score),
			PageNumber:      m.Chunk.PageNumber,
		})
	}
	return hits, nil
}

func (b *Backend) retrieve(ctx context.Context, query string, limit int) ([]*core.ChunkMatch, error) {
	vector, err := b.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return b.chunks.FindSimilar(ctx, ai.NormalizeVector(vector), b.minSimilarity, limit)
}

// AskQuestion grounds an answer in the top chunks for question.
func (b *Backend) AskQuestion(ctx context.Context, question, sessionHint string) (result *backend.QAResult, err error) {
	start := time.Now()
	defer func() { b.metrics.ObserveBackend(backend.OpAsk, err, time.Since(start)) }()

	ctx, cancel := context.WithTimeout(ctx, b.timeouts.Ask)
	defer cancel()

	matches, err := b.retrieve(ctx, question, b.topK)
	if err != nil {
		return nil, backend.Unavailable(backend.OpAsk, err)
	}
	if len(matches) == 0 {
		return &backend.QAResult{Answer: NoDocumentsAnswer, Model: b.model}, nil
	}

	gen, err := b.generator.Generate(ctx, systemPrompt, buildPrompt(question, matches))
	if err != nil {
		return nil, backend.Unavailable(backend.OpAsk, err)
	}
	if strings.TrimSpace(gen.Text) == "" {
		return nil, backend.BadResponse(backend.OpAsk, 0, errors.New("empty answer"))
	}

	model := gen.Model
	if model == "" {
		model = b.model
	}
	b.logger.Debug("answered question", "session", sessionHint, "chunks", len(matches), "tokens", gen.TokensUsed)
	return &backend.QAResult{
		Answer:     gen.Text,
		References: references(matches),
		Model:      model,
		TokensUsed: gen.TokensUsed,
	}, nil
}

func buildPrompt(question string, matches []*core.ChunkMatch) string {
	var sb strings.Builder
	sb.WriteString("Answer the user's question using the following legal document content.\n\nDocuments:\n")
	for i, m := range matches {
		fmt.Fprintf(&sb, "[Document %d] %s (relevance: %.2f)\n%s\n\n", i+1, m.Chunk.Position, m.Score, m.Chunk.Text)
	}
	sb.WriteString("Question: ")
	sb.WriteString(question)
	sb.WriteString("\n\nGive a detailed and accurate answer that cites the specific provisions.")
	return sb.String()
}

func references(matches []*core.ChunkMatch) []backend.Reference {
	refs := make([]backend.Reference, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, backend.Reference{
			DocumentId:      m.Chunk.DocumentId,
			ChunkText:       truncate(m.Chunk.Text, referencePreview),
			ChunkPosition:   m.Chunk.Position,
			SimilarityScore: float64(m.Score),
			PageNumber:      m.Chunk.PageNumber,
		})
	}
	return refs
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// Close waits briefly for in-flight parses and releases the pool.
func (b *Backend) Close() error {
	return b.pool.ReleaseTimeout(releaseTimeout)
}
