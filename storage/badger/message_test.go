package badger

import (
	"context"
	"fmt"
	"testing"

	"github.com/poiesic/counsel/core"
	"github.com/poiesic/counsel/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageBasics(t *testing.T) {
	repos, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()

	ctx := context.Background()

	msg := &core.Message{
		SessionId: "s-1",
		Role:      core.RoleUser,
		Content:   "What is force majeure?",
	}

	added, err := repos.Messages.AddMessages(ctx, msg)
	if err != nil {
		t.Fatalf("Failed to add message: %v", err)
	}
	if added[0].Id == 0 {
		t.Fatal("Expected non-zero ID")
	}
	if added[0].CreatedAt.IsZero() {
		t.Fatal("Expected CreatedAt to be set")
	}

	retrieved, err := repos.Messages.GetMessage(ctx, added[0].Id)
	if err != nil {
		t.Fatalf("Failed to get message: %v", err)
	}
	if retrieved.Content != "What is force majeure?" {
		t.Fatalf("Expected question content, got '%s'", retrieved.Content)
	}

	if _, err := repos.Messages.GetMessage(ctx, 999999); err != storage.ErrNotFound {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestAddMessages_Invalid(t *testing.T) {
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	_, err = repos.Messages.AddMessages(context.Background(), &core.Message{SessionId: "s", Role: core.RoleUser})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestGetRecentMessages(t *testing.T) {
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		role := core.RoleUser
		if i%2 == 0 {
			role = core.RoleAssistant
		}
		_, err := repos.Messages.AddMessages(ctx, &core.Message{
			SessionId: "s-1",
			Role:      role,
			Content:   fmt.Sprintf("message %d", i),
		})
		require.NoError(t, err)
	}
	_, err = repos.Messages.AddMessages(ctx, &core.Message{SessionId: "s-2", Role: core.RoleUser, Content: "elsewhere"})
	require.NoError(t, err)

	t.Run("newest N in creation order", func(t *testing.T) {
		msgs, err := repos.Messages.GetRecentMessages(ctx, "s-1", 3)
		require.NoError(t, err)
		require.Len(t, msgs, 3)
		assert.Equal(t, "message 3", msgs[0].Content)
		assert.Equal(t, "message 4", msgs[1].Content)
		assert.Equal(t, "message 5", msgs[2].Content)
	})

	t.Run("limit larger than log", func(t *testing.T) {
		msgs, err := repos.Messages.GetRecentMessages(ctx, "s-1", 50)
		require.NoError(t, err)
		require.Len(t, msgs, 5)
		for i := 1; i < len(msgs); i++ {
			assert.False(t, msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt))
			assert.Greater(t, msgs[i].Id, msgs[i-1].Id)
		}
	})

	t.Run("sessions are isolated", func(t *testing.T) {
		msgs, err := repos.Messages.GetRecentMessages(ctx, "s-2", 50)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, "elsewhere", msgs[0].Content)
	})

	t.Run("unknown session is empty", func(t *testing.T) {
		msgs, err := repos.Messages.GetRecentMessages(ctx, "s-404", 10)
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("invalid limit", func(t *testing.T) {
		_, err := repos.Messages.GetRecentMessages(ctx, "s-1", 0)
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)
	})
}
