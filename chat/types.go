package chat

import (
	"github.com/poiesic/counsel/backend"
	"github.com/poiesic/counsel/core"
)

// Answer is the result of a question.
type Answer struct {
	SessionId      string          `json:"sessionId"`
	MessageId      core.ID         `json:"messageId"`
	Answer         string          `json:"answer"`
	Model          string          `json:"model"`
	TokensUsed     int             `json:"tokensUsed"`
	Cached         bool            `json:"cached"`
	ResponseTimeMs int64           `json:"responseTime"`
	References     []ReferenceView `json:"references"`
}

// ReferenceView is the reduced form of a supporting excerpt returned with an answer.
type ReferenceView struct {
	DocumentId      core.ID `json:"documentId"`
	DocumentTitle   string  `json:"documentTitle,omitempty"`
	ChunkPosition   string  `json:"chunkPosition"`
	SimilarityScore float64 `json:"similarityScore"`
}

// ReferenceDetail is a stored excerpt joined with its document's metadata.
type ReferenceDetail struct {
	ReferenceId     core.ID `json:"referenceId"`
	DocumentId      core.ID `json:"documentId"`
	DocumentTitle   string  `json:"documentTitle,omitempty"`
	FileName        string  `json:"fileName,omitempty"`
	FilePath        string  `json:"filePath,omitempty"`
	ChunkText       string  `json:"chunkText"`
	ChunkPosition   string  `json:"chunkPosition"`
	SimilarityScore float64 `json:"similarityScore"`
	PageNumber      int     `json:"pageNumber,omitempty"`
}

func evidenceFromReferences(messageID core.ID, refs []backend.Reference) []*core.Evidence {
	evidence := make([]*core.Evidence, 0, len(refs))
	for _, ref := range refs {
		evidence = append(evidence, &core.Evidence{
			MessageId:       messageID,
			DocumentId:      ref.DocumentId,
			ChunkText:       ref.ChunkText,
			ChunkPosition:   ref.ChunkPosition,
			SimilarityScore: ref.SimilarityScore,
			PageNumber:      ref.PageNumber,
		})
	}
	return evidence
}

func evidenceFromCache(messageID core.ID, refs []core.CachedReference) []*core.Evidence {
	evidence := make([]*core.Evidence, 0, len(refs))
	for _, ref := range refs {
		evidence = append(evidence, &core.Evidence{
			MessageId:       messageID,
			DocumentId:      ref.DocumentId,
			ChunkText:       ref.ChunkText,
			ChunkPosition:   ref.ChunkPosition,
			SimilarityScore: ref.SimilarityScore,
			PageNumber:      ref.PageNumber,
		})
	}
	return evidence
}

func cachedReferences(refs []backend.Reference) []core.CachedReference {
	cached := make([]core.CachedReference, 0, len(refs))
	for _, ref := range refs {
		cached = append(cached, core.CachedReference{
			DocumentId:      ref.DocumentId,
			ChunkText:       ref.ChunkText,
			ChunkPosition:   ref.ChunkPosition,
			SimilarityScore: ref.SimilarityScore,
			PageNumber:      ref.PageNumber,
		})
	}
	return cached
}

// referenceViews projects evidence, taking titles from docs when present.
func referenceViews(evidence []*core.Evidence, docs map[core.ID]*core.Document) []ReferenceView {
	views := make([]ReferenceView, 0, len(evidence))
	for _, ev := range evidence {
		view := ReferenceView{
			DocumentId:      ev.DocumentId,
			ChunkPosition:   ev.ChunkPosition,
			SimilarityScore: ev.SimilarityScore,
		}
		if doc, ok := docs[ev.DocumentId]; ok {
			view.DocumentTitle = doc.Title
		}
		views = append(views, view)
	}
	return views
}

func referenceDetail(ev *core.Evidence, doc *core.Document) ReferenceDetail {
	detail := ReferenceDetail{
		ReferenceId:     ev.Id,
		DocumentId:      ev.DocumentId,
		ChunkText:       ev.ChunkText,
		ChunkPosition:   ev.ChunkPosition,
		SimilarityScore: ev.SimilarityScore,
		PageNumber:      ev.PageNumber,
	}
	if doc != nil {
		detail.DocumentTitle = doc.Title
		detail.FileName = doc.FileName
		detail.FilePath = doc.FilePath
	}
	return detail
}
