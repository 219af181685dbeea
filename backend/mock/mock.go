// Package mock provides a func-field test double for backend.Backend.
package mock

import (
	"context"
	"sync"

	"github.com/poiesic/counsel/backend"
	"github.com/poiesic/counsel/core"
)

// Backend records calls and delegates to the function fields when set.
// Unset fields return canned successes.
type Backend struct {
	ParseDocumentFunc  func(ctx context.Context, documentID core.ID, filePath, fileType string) (*backend.ParseAck, error)
	SemanticSearchFunc func(ctx context.Context, query string, limit int) ([]backend.SemanticHit, error)
	AskQuestionFunc    func(ctx context.Context, question, sessionHint string) (*backend.QAResult, error)

	mu    sync.Mutex
	calls map[string]int
}

var _ backend.Backend = (*Backend)(nil)

// New creates a mock backend with default behavior.
func New() *Backend {
	return &Backend{calls: make(map[string]int)}
}

func (b *Backend) record(op string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.calls == nil {
		b.calls = make(map[string]int)
	}
	b.calls[op]++
}

// Calls returns how many times op was invoked.
func (b *Backend) Calls(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

func (b *Backend) ParseDocument(ctx context.Context, documentID core.ID, filePath, fileType string) (*backend.ParseAck, error) {
	b.record(backend.OpParse)
	if b.ParseDocumentFunc != nil {
		return b.ParseDocumentFunc(ctx, documentID, filePath, fileType)
	}
	return &backend.ParseAck{Status: "accepted", Message: "Document parsing started"}, nil
}

func (b *Backend) SemanticSearch(ctx context.Context, query string, limit int) ([]backend.SemanticHit, error) {
	b.record(backend.OpSearch)
	if b.SemanticSearchFunc != nil {
		return b.SemanticSearchFunc(ctx, query, limit)
	}
	return nil, nil
}

func (b *Backend) AskQuestion(ctx context.Context, question, sessionHint string) (*backend.QAResult, error) {
	b.record(backend.OpAsk)
	if b.AskQuestionFunc != nil {
		return b.AskQuestionFunc(ctx, question, sessionHint)
	}
	return &backend.QAResult{Answer: "mock answer to: " + question, Model: "mock-model"}, nil
}

func (b *Backend) Close() error {
	return nil
}
