//go:build integration

package integration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askmom/internal/core"
	"askmom/internal/store"
)

func newMongoStore(t *testing.T) *store.MongoStore {
	t.Helper()
	s, err := store.NewMongoDB(testCtx, store.MongoDBConfig{URL: mongoURL, Database: "askmom_test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMongoStoreConversationLifecycle(t *testing.T) {
	s := newMongoStore(t)
	now := time.Now().UTC().Truncate(time.Millisecond)

	conv := &core.Conversation{
		UserID:        "mongo-user-1",
		Title:         "pop-up says my computer is infected",
		Status:        core.StatusOpen,
		RiskLevel:     core.RiskMedium,
		LastMessageAt: now,
		CreatedAt:     now,
	}
	require.NoError(t, s.CreateConversation(testCtx, conv))
	require.NotEmpty(t, conv.ID)

	got, err := s.GetConversation(testCtx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.Title, got.Title)
	assert.Equal(t, core.RiskMedium, got.RiskLevel)

	got.Status = core.StatusEscalated
	got.LastMessageAt = now.Add(time.Minute)
	require.NoError(t, s.UpdateConversationSummary(testCtx, got))

	got, err = s.GetConversation(testCtx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusEscalated, got.Status)

	_, err = s.GetConversation(testCtx, "missing")
	var oe *core.OrchestratorError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, core.ErrorTypeNotFound, oe.Type)
}

func TestMongoStoreTurnsAndSearch(t *testing.T) {
	s := newMongoStore(t)
	now := time.Now().UTC()

	conv := &core.Conversation{
		UserID:        "mongo-user-2",
		Status:        core.StatusOpen,
		RiskLevel:     core.RiskLow,
		LastMessageAt: now,
		CreatedAt:     now,
	}
	require.NoError(t, s.CreateConversation(testCtx, conv))

	for i, txt := range []string{"the tv remote stopped working", "try new batteries", "that fixed it"} {
		role := core.RoleUser
		if i == 1 {
			role = core.RoleAssistant
		}
		_, err := s.AppendTurn(testCtx, &core.Turn{
			ConversationID: conv.ID,
			Role:           role,
			Text:           txt,
			RiskLevel:      core.RiskLow,
			CreatedAt:      now.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	turns, err := s.RecentTurns(testCtx, conv.ID, core.TurnFilter{})
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "the tv remote stopped working", turns[0].Text)

	turns, err = s.RecentTurns(testCtx, conv.ID, core.TurnFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "try new batteries", turns[0].Text)
	assert.Equal(t, "that fixed it", turns[1].Text)

	out, err := s.ListConversations(testCtx, "mongo-user-2", "Remote", 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, conv.ID, out[0].ID)

	// Regex metacharacters in the query are treated as literals.
	out, err = s.ListConversations(testCtx, "mongo-user-2", ".*", 0)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestMongoStorePruneExpired(t *testing.T) {
	s := newMongoStore(t)
	cutoff := time.Now().UTC().Add(-24 * time.Hour)

	stale := &core.Conversation{
		UserID:        "mongo-user-3",
		Status:        core.StatusClosed,
		RiskLevel:     core.RiskLow,
		LastMessageAt: cutoff.Add(-time.Hour),
		CreatedAt:     cutoff.Add(-time.Hour),
	}
	require.NoError(t, s.CreateConversation(testCtx, stale))
	_, err := s.AppendTurn(testCtx, &core.Turn{
		ConversationID: stale.ID,
		Role:           core.RoleUser,
		Text:           "long since resolved",
		RiskLevel:      core.RiskLow,
		CreatedAt:      cutoff.Add(-time.Hour),
	})
	require.NoError(t, err)

	removed, err := s.PruneExpired(testCtx, cutoff)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, removed, int64(1))

	_, err = s.GetConversation(testCtx, stale.ID)
	assert.Error(t, err)

	turns, err := s.RecentTurns(testCtx, stale.ID, core.TurnFilter{})
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestMongoStoreRecordRedaction(t *testing.T) {
	s := newMongoStore(t)

	err := s.RecordRedaction(testCtx, &core.BlockedArtifact{
		ConversationID:  "mongo-conv",
		TurnID:          "mongo-turn",
		Reasons:         []core.RedactionReason{core.ReasonBankAccount},
		RedactedContent: "routing [REDACTED_BANK]",
		Fingerprint:     42,
	})
	require.NoError(t, err)
}
