package search

import (
	"encoding/json"
	"fmt"

	"github.com/poiesic/counsel/core"
)

// Source records which leg produced a result.
type Source uint8

const (
	SourceKeyword Source = iota + 1
	SourceSemantic
	SourceHybrid
)

func (s Source) String() string {
	switch s {
	case SourceKeyword:
		return "keyword"
	case SourceSemantic:
		return "semantic"
	case SourceHybrid:
		return "hybrid"
	}
	return fmt.Sprintf("Source(%d)", uint8(s))
}

func (s Source) MarshalJSON() ([]byte, error) {
	switch s {
	case SourceKeyword, SourceSemantic, SourceHybrid:
		return json.Marshal(s.String())
	}
	return nil, fmt.Errorf("invalid search source %d", uint8(s))
}

// Result is one document returned by HybridSearch.
type Result struct {
	DocumentId    core.ID `json:"documentId"`
	Title         string  `json:"title"`
	Category      string  `json:"category"`
	FileName      string  `json:"fileName"`
	Source        Source  `json:"source"`
	Score         float64 `json:"score"`
	ChunkText     string  `json:"chunkText,omitempty"`
	ChunkPosition string  `json:"chunkPosition,omitempty"`
}
