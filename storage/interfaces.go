package storage

import (
	"context"

	"github.com/poiesic/counsel/core"
)

// Repository provides lifecycle operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// Close releases resources held by the repository.
	Close() error
}

// SessionRepository manages conversation sessions.
type SessionRepository interface {
	Repository

	// EnsureSession returns the session with the given identifier, creating it if absent.
	// Repeated calls with the same identifier never create a second session.
	// The template supplies UserId and Title for a newly created session and may be nil.
	EnsureSession(ctx context.Context, id string, template *core.Session) (*core.Session, error)

	// GetSession retrieves a session by identifier.
	// Returns ErrNotFound if the session doesn't exist.
	GetSession(ctx context.Context, id string) (*core.Session, error)

	// TouchSession sets the session's last-activity and update times to now.
	// Returns ErrNotFound if the session doesn't exist.
	TouchSession(ctx context.Context, id string) error

	// GetRecentSessions returns up to limit sessions, most recently active first.
	GetRecentSessions(ctx context.Context, limit int) ([]*core.Session, error)
}

// MessageRepository manages the ordered message log of each session.
type MessageRepository interface {
	Repository

	// AddMessages appends messages to their sessions.
	// Each message receives a new unique ID and a CreatedAt timestamp.
	// The returned IDs are usable immediately for dependent evidence inserts.
	AddMessages(ctx context.Context, messages ...*core.Message) ([]*core.Message, error)

	// GetMessage retrieves a single message by ID.
	// Returns ErrNotFound if the message doesn't exist.
	GetMessage(ctx context.Context, id core.ID) (*core.Message, error)

	// GetRecentMessages returns the newest limit messages of a session,
	// ordered oldest first.
	GetRecentMessages(ctx context.Context, sessionID string, limit int) ([]*core.Message, error)
}

// EvidenceRepository manages the evidence attached to assistant messages.
type EvidenceRepository interface {
	Repository

	// AddEvidence stores evidence records, assigning IDs and CreatedAt.
	// Every record must reference an existing message ID.
	AddEvidence(ctx context.Context, evidence ...*core.Evidence) ([]*core.Evidence, error)

	// GetEvidenceForMessage returns the evidence of a message ordered by
	// similarity score descending. Equal scores keep insertion order.
	GetEvidenceForMessage(ctx context.Context, messageID core.ID) ([]*core.Evidence, error)
}

// DocumentRepository provides the document lookups the engine depends on,
// plus the status transitions reported by the parsing workflow.
type DocumentRepository interface {
	Repository

	// AddDocument stores a new document and assigns its ID.
	AddDocument(ctx context.Context, doc *core.Document) (*core.Document, error)

	// UpdateDocument replaces an existing document.
	// Returns ErrNotFound if the document doesn't exist.
	UpdateDocument(ctx context.Context, doc *core.Document) (*core.Document, error)

	// GetDocument retrieves a document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.ID) (*core.Document, error)

	// GetDocuments retrieves documents by ID.
	// Missing documents are omitted from the result without error.
	GetDocuments(ctx context.Context, ids ...core.ID) (map[core.ID]*core.Document, error)

	// ForEachDocument calls fn for every stored document in ID order.
	// Iteration stops at the first error returned by fn.
	ForEachDocument(ctx context.Context, fn func(doc *core.Document) error) error
}

// ChunkRepository stores embedded document chunks for in-process semantic search.
type ChunkRepository interface {
	Repository

	// ReplaceChunks removes all chunks of a document and stores the given ones.
	ReplaceChunks(ctx context.Context, documentID core.ID, chunks ...*core.Chunk) ([]*core.Chunk, error)

	// UpdateChunks overwrites existing chunks, typically with new vectors.
	UpdateChunks(ctx context.Context, chunks ...*core.Chunk) error

	// FindSimilar returns chunks whose vectors score at least minSimilarity
	// against vector, highest first, up to limit results.
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.ChunkMatch, error)

	// CountChunks returns the number of stored chunks.
	CountChunks(ctx context.Context) (int, error)

	// ForEachChunkBatch calls fn with batches of up to batchSize chunks in ID order.
	ForEachChunkBatch(ctx context.Context, batchSize int, fn func(chunks []*core.Chunk) error) error
}
