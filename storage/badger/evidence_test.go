package badger

import (
	"context"
	"testing"

	"github.com/poiesic/counsel/core"
	"github.com/poiesic/counsel/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvidenceForMessage(t *testing.T) {
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	ctx := context.Background()
	added, err := repos.Messages.AddMessages(ctx, &core.Message{
		SessionId: "s-1",
		Role:      core.RoleAssistant,
		Content:   "answer",
	})
	require.NoError(t, err)
	msgID := added[0].Id

	_, err = repos.Evidence.AddEvidence(ctx,
		&core.Evidence{MessageId: msgID, DocumentId: 1, ChunkText: "low", SimilarityScore: 0.42},
		&core.Evidence{MessageId: msgID, DocumentId: 2, ChunkText: "high", SimilarityScore: 0.91},
		&core.Evidence{MessageId: msgID, DocumentId: 3, ChunkText: "tie-first", SimilarityScore: 0.60},
		&core.Evidence{MessageId: msgID, DocumentId: 4, ChunkText: "tie-second", SimilarityScore: 0.60},
	)
	require.NoError(t, err)

	evidence, err := repos.Evidence.GetEvidenceForMessage(ctx, msgID)
	require.NoError(t, err)
	require.Len(t, evidence, 4)

	texts := make([]string, len(evidence))
	for i, ev := range evidence {
		texts[i] = ev.ChunkText
		assert.NotZero(t, ev.Id)
		assert.Equal(t, msgID, ev.MessageId)
	}
	assert.Equal(t, []string{"high", "tie-first", "tie-second", "low"}, texts)

	t.Run("message without evidence", func(t *testing.T) {
		other, err := repos.Messages.AddMessages(ctx, &core.Message{SessionId: "s-1", Role: core.RoleAssistant, Content: "bare"})
		require.NoError(t, err)
		evidence, err := repos.Evidence.GetEvidenceForMessage(ctx, other[0].Id)
		require.NoError(t, err)
		assert.Empty(t, evidence)
	})
}

func TestAddEvidence_UnknownMessage(t *testing.T) {
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	_, err = repos.Evidence.AddEvidence(context.Background(), &core.Evidence{MessageId: 77, DocumentId: 1})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
