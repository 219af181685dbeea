package backend

import (
	"context"

	"github.com/poiesic/counsel/core"
)

// ParseAck acknowledges a parse request.
type ParseAck struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	VectorCount int    `json:"vectorCount,omitempty"`
}

// SemanticHit is one chunk returned by semantic search.
type SemanticHit struct {
	DocumentId      core.ID `json:"documentId"`
	ChunkText       string  `json:"chunkText"`
	ChunkPosition   string  `json:"chunkPosition"`
	SimilarityScore float64 `json:"similarityScore"`
	PageNumber      int     `json:"pageNumber,omitempty"`
}

// Reference is a chunk the backend cited in an answer.
type Reference struct {
	DocumentId      core.ID `json:"documentId"`
	ChunkText       string  `json:"chunkText"`
	ChunkPosition   string  `json:"chunkPosition"`
	SimilarityScore float64 `json:"similarityScore"`
	PageNumber      int     `json:"pageNumber,omitempty"`
}

// QAResult is a generated answer.
type QAResult struct {
	Answer     string      `json:"answer"`
	References []Reference `json:"references"`
	Model      string      `json:"model"`
	TokensUsed int         `json:"tokensUsed"`
}

// StatusUpdate reports parse progress for a document.
type StatusUpdate struct {
	DocumentId  core.ID
	Status      core.DocumentStatus
	Progress    int
	Error       string
	VectorCount int
}

// StatusFunc receives parse progress. External services deliver the same
// information through the HTTP status callback.
type StatusFunc func(ctx context.Context, update StatusUpdate) error
