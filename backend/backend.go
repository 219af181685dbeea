// Package backend defines the contract of the generation backend: the
// service that parses documents into vectors, runs semantic search and
// answers questions. Implementations live in the sub-packages.
package backend

import (
	"context"
	"time"

	"github.com/poiesic/counsel/core"
)

// Operation names used in errors, metrics and logs.
const (
	OpParse  = "parse"
	OpSearch = "search"
	OpAsk    = "qa"
)

// Default per-operation deadlines.
const (
	DefaultParseTimeout  = 5 * time.Second
	DefaultSearchTimeout = 10 * time.Second
	DefaultAskTimeout    = 30 * time.Second
)

// Backend is the generation backend. Every call is a single attempt.
// Implementations must be safe for concurrent use.
type Backend interface {
	// ParseDocument asks the backend to chunk and embed a stored file.
	// Parsing is asynchronous; progress arrives through the status callback.
	ParseDocument(ctx context.Context, documentID core.ID, filePath, fileType string) (*ParseAck, error)

	// SemanticSearch returns the chunks most similar to query.
	SemanticSearch(ctx context.Context, query string, limit int) ([]SemanticHit, error)

	// AskQuestion answers question with retrieved references.
	AskQuestion(ctx context.Context, question, sessionHint string) (*QAResult, error)

	Close() error
}

// Timeouts holds the per-operation deadlines.
type Timeouts struct {
	Parse  time.Duration
	Search time.Duration
	Ask    time.Duration
}

// DefaultTimeouts returns the standard deadlines.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Parse:  DefaultParseTimeout,
		Search: DefaultSearchTimeout,
		Ask:    DefaultAskTimeout,
	}
}

// WithDefaults fills zero fields from DefaultTimeouts.
func (t Timeouts) WithDefaults() Timeouts {
	d := DefaultTimeouts()
	if t.Parse <= 0 {
		t.Parse = d.Parse
	}
	if t.Search <= 0 {
		t.Search = d.Search
	}
	if t.Ask <= 0 {
		t.Ask = d.Ask
	}
	return t
}
