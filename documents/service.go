// Package documents tracks uploaded documents through parsing and keeps the
// keyword index in step with their status.
package documents

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/poiesic/counsel/backend"
	"github.com/poiesic/counsel/core"
	"github.com/poiesic/counsel/index"
	"github.com/poiesic/counsel/storage"
)

// ProgressAccepted is the progress recorded once the backend accepts a parse.
const ProgressAccepted = 10

// Service registers documents and applies parse status updates.
type Service struct {
	documents storage.DocumentRepository
	keyword   index.Keyword
	backend   backend.Backend
	logger    *slog.Logger

	// Status updates are read-modify-write
	mu sync.Mutex
}

// Option configures a Service.
type Option func(*Service) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewService creates a document service. The backend may be set later with
// SetBackend when it needs the service's status callback.
func NewService(documents storage.DocumentRepository, keyword index.Keyword, opts ...Option) (*Service, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if keyword == nil {
		return nil, ErrKeywordIndexRequired
	}

	s := &Service{
		documents: documents,
		keyword:   keyword,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "documents")
	return s, nil
}

// SetBackend sets the backend that parses registered documents.
func (s *Service) SetBackend(be backend.Backend) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backend = be
}

// Register stores a new pending document and indexes it. Text content is
// read from FilePath when the document carries none.
func (s *Service) Register(ctx context.Context, doc *core.Document) (*core.Document, error) {
	if err := core.ValidateDocument(doc); err != nil {
		return nil, err
	}
	if doc.FileName == "" && doc.FilePath != "" {
		doc.FileName = filepath.Base(doc.FilePath)
	}
	if doc.FileType == "" {
		doc.FileType = strings.TrimPrefix(filepath.Ext(doc.FileName), ".")
	}
	if doc.Content == "" && doc.FilePath != "" {
		if data, err := os.ReadFile(doc.FilePath); err == nil {
			doc.Content = string(data)
			if doc.FileSize == 0 {
				doc.FileSize = int64(len(data))
			}
		} else {
			s.logger.Debug("document content not readable", "path", doc.FilePath, "err", err)
		}
	}
	doc.Status = core.StatusPending
	doc.ParseProgress = 0

	doc, err := s.documents.AddDocument(ctx, doc)
	if err != nil {
		return nil, err
	}
	if err := s.keyword.Index(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to index document %d: %w", doc.Id, err)
	}
	s.logger.Info("document registered", "document", doc.Id, "title", doc.Title)
	return doc, nil
}

// TriggerParse asks the backend to parse a registered document. A rejected
// request marks the document failed and is returned.
func (s *Service) TriggerParse(ctx context.Context, id core.ID) error {
	doc, err := s.documents.GetDocument(ctx, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	be := s.backend
	s.mu.Unlock()
	if be == nil {
		return ErrBackendRequired
	}

	if _, err := be.ParseDocument(ctx, doc.Id, doc.FilePath, doc.FileType); err != nil {
		s.logger.Error("failed to trigger parsing", "document", id, "err", err)
		update := backend.StatusUpdate{DocumentId: id, Status: core.StatusFailed, Error: err.Error()}
		if uerr := s.UpdateParseStatus(ctx, update); uerr != nil {
			s.logger.Warn("failed to record parse failure", "document", id, "err", uerr)
		}
		return err
	}

	s.logger.Info("backend accepted parsing request", "document", id)
	return s.markAccepted(ctx, id)
}

// markAccepted moves a pending document to parsing. Updates that already
// arrived from a fast backend are left alone.
func (s *Service) markAccepted(ctx context.Context, id core.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.documents.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if doc.Status != core.StatusPending {
		return nil
	}
	doc.Status = core.StatusParsing
	doc.ParseProgress = ProgressAccepted
	return s.save(ctx, doc)
}

// UpdateParseStatus applies a status report for a document. It has the
// shape of backend.StatusFunc.
func (s *Service) UpdateParseStatus(ctx context.Context, update backend.StatusUpdate) error {
	if update.Progress < 0 || update.Progress > 100 {
		return fmt.Errorf("%w: %w: got %d", core.ErrValidation, ErrInvalidProgress, update.Progress)
	}
	if _, err := core.ParseDocumentStatus(update.Status.String()); err != nil {
		return fmt.Errorf("%w: %w", core.ErrValidation, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.documents.GetDocument(ctx, update.DocumentId)
	if err != nil {
		return err
	}
	doc.Status = update.Status
	doc.ParseProgress = update.Progress
	doc.ParseError = update.Error
	if update.VectorCount > 0 {
		doc.VectorCount = update.VectorCount
	}
	if update.Status == core.StatusCompleted {
		doc.ParsedAt = storage.Now()
	}

	s.logger.Debug("parse status", "document", doc.Id, "status", doc.Status, "progress", doc.ParseProgress)
	return s.save(ctx, doc)
}

// save persists doc and refreshes its index entry so searches only see
// completed documents.
func (s *Service) save(ctx context.Context, doc *core.Document) error {
	if _, err := s.documents.UpdateDocument(ctx, doc); err != nil {
		return err
	}
	if err := s.keyword.Index(ctx, doc); err != nil {
		return fmt.Errorf("failed to index document %d: %w", doc.Id, err)
	}
	return nil
}

// Get returns a document by ID.
func (s *Service) Get(ctx context.Context, id core.ID) (*core.Document, error) {
	return s.documents.GetDocument(ctx, id)
}

// Reindex rebuilds the keyword index from the document repository.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	count := 0
	err := s.documents.ForEachDocument(ctx, func(doc *core.Document) error {
		if err := s.keyword.Index(ctx, doc); err != nil {
			return err
		}
		count++
		return nil
	})
	return count, err
}
