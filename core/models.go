package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for stored entities.
// It is generated from database sequences or content hashing.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// Identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Role identifies the author of a chat message.
type Role int

const (
	// RoleUser is a question asked by a person.
	RoleUser Role = iota + 1
	// RoleAssistant is a generated or cached answer.
	RoleAssistant
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	default:
		return "unknown"
	}
}

// MarshalText renders the role as "user" or "assistant".
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// DefaultSessionTitle is assigned to sessions created implicitly by a question.
const DefaultSessionTitle = "New Chat"

// Session is a conversation owning an ordered message log.
type Session struct {
	Id            string    `json:"sessionId"`
	UserId        string    `json:"userId,omitempty"`
	Title         string    `json:"title,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	LastMessageAt time.Time `json:"lastMessageAt"`
}

// Message is a single turn within a session.
// Generation metadata is only populated on assistant messages.
type Message struct {
	Id             ID        `json:"id"`
	SessionId      string    `json:"sessionId"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	Model          string    `json:"model,omitempty"`
	TokensUsed     int       `json:"tokensUsed"`
	ResponseTimeMs int64     `json:"responseTime"`
	Cached         bool      `json:"cached"`
	HasReferences  bool      `json:"hasReferences"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Evidence is a scored document excerpt that supported an assistant message.
// DocumentId is recorded even if the document is later removed.
type Evidence struct {
	Id              ID        `json:"id"`
	MessageId       ID        `json:"messageId"`
	DocumentId      ID        `json:"documentId"`
	ChunkText       string    `json:"chunkText"`
	ChunkPosition   string    `json:"chunkPosition"`
	SimilarityScore float64   `json:"similarityScore"`
	PageNumber      int       `json:"pageNumber,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// DocumentStatus tracks a document through parsing.
type DocumentStatus int

const (
	StatusPending DocumentStatus = iota + 1
	StatusParsing
	StatusCompleted
	StatusFailed
)

var documentStatusNames = map[DocumentStatus]string{
	StatusPending:   "PENDING",
	StatusParsing:   "PARSING",
	StatusCompleted: "COMPLETED",
	StatusFailed:    "FAILED",
}

func (s DocumentStatus) String() string {
	if name, ok := documentStatusNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// MarshalText renders the status name.
func (s DocumentStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseDocumentStatus converts a status name back to its value.
func ParseDocumentStatus(name string) (DocumentStatus, error) {
	for status, n := range documentStatusNames {
		if n == name {
			return status, nil
		}
	}
	return 0, ErrInvalidStatus
}

// Document is the metadata record of an uploaded source document.
type Document struct {
	Id            ID             `json:"id"`
	Title         string         `json:"title"`
	Category      string         `json:"category,omitempty"`
	FileName      string         `json:"fileName"`
	FilePath      string         `json:"filePath"`
	FileType      string         `json:"fileType"`
	FileSize      int64          `json:"fileSize"`
	Content       string         `json:"-"`
	Status        DocumentStatus `json:"parseStatus"`
	ParseProgress int            `json:"parseProgress"`
	ParseError    string         `json:"parseError,omitempty"`
	VectorCount   int            `json:"vectorCount"`
	UploadedAt    time.Time      `json:"uploadTime"`
	ParsedAt      time.Time      `json:"parseTime,omitzero"`
}

// Chunk is an embedded slice of a document's text.
type Chunk struct {
	Id         ID
	DocumentId ID
	Index      int
	Text       string
	Position   string
	PageNumber int
	Vector     []float32
}

// ChunkMatch is a chunk found by vector similarity.
type ChunkMatch struct {
	Chunk *Chunk
	Score float32
}

// CachedReference is the content of one piece of evidence as held in the response cache.
type CachedReference struct {
	DocumentId      ID
	ChunkText       string
	ChunkPosition   string
	SimilarityScore float64
	PageNumber      int
}

// CachedAnswer is a fully assembled answer without session or message identity.
type CachedAnswer struct {
	Answer     string
	Model      string
	References []CachedReference
}
