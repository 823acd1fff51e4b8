package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"askmom/internal/core"
)

// MemoryStore is an in-memory ConversationStore. It backs tests and
// single-process development runs; nothing survives a restart.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*core.Conversation
	turns         map[string][]core.Turn
	artifacts     []core.BlockedArtifact
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*core.Conversation),
		turns:         make(map[string][]core.Turn),
	}
}

// CreateConversation inserts a new conversation record.
func (s *MemoryStore) CreateConversation(_ context.Context, conv *core.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	cp := *conv
	s.conversations[conv.ID] = &cp
	return nil
}

// GetConversation returns the conversation or a not-found error.
func (s *MemoryStore) GetConversation(_ context.Context, id string) (*core.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, core.NewNotFoundError("conversation not found: " + id)
	}
	cp := *conv
	return &cp, nil
}

// ListConversations returns a user's conversations ordered by most recent
// activity. A non-empty query matches case-insensitively against turn text.
func (s *MemoryStore) ListConversations(_ context.Context, userID, query string, limit int) ([]core.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit = clampListLimit(limit)
	q := strings.ToLower(strings.TrimSpace(query))

	var out []core.Conversation
	for _, conv := range s.conversations {
		if conv.UserID != userID {
			continue
		}
		if q != "" && !s.anyTurnContains(conv.ID, q) {
			continue
		}
		out = append(out, *conv)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) anyTurnContains(conversationID, loweredQuery string) bool {
	for _, t := range s.turns[conversationID] {
		if strings.Contains(strings.ToLower(t.Text), loweredQuery) {
			return true
		}
	}
	return false
}

// AppendTurn appends a turn and returns its ID.
func (s *MemoryStore) AppendTurn(_ context.Context, turn *core.Turn) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if turn.ID == "" {
		turn.ID = uuid.New().String()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	s.turns[turn.ConversationID] = append(s.turns[turn.ConversationID], *turn)
	return turn.ID, nil
}

// RecentTurns returns turns in ascending creation order, keeping the
// newest when a limit applies.
func (s *MemoryStore) RecentTurns(_ context.Context, conversationID string, filter core.TurnFilter) ([]core.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := clampTurnsLimit(filter.Limit)

	var out []core.Turn
	for _, t := range s.turns[conversationID] {
		if filter.Role != "" && t.Role != filter.Role {
			continue
		}
		if !filter.Since.IsZero() && t.CreatedAt.Before(filter.Since) {
			continue
		}
		out = append(out, t)
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// UpdateConversationSummary updates the mutable summary fields.
func (s *MemoryStore) UpdateConversationSummary(_ context.Context, conv *core.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.conversations[conv.ID]
	if !ok {
		return core.NewNotFoundError("conversation not found: " + conv.ID)
	}
	if conv.Title != "" {
		existing.Title = conv.Title
	}
	if conv.Status != "" {
		existing.Status = conv.Status
	}
	if conv.RiskLevel != "" {
		existing.RiskLevel = conv.RiskLevel
	}
	if !conv.LastMessageAt.IsZero() {
		existing.LastMessageAt = conv.LastMessageAt
	}
	return nil
}

// RecordRedaction persists a blocked artifact.
func (s *MemoryStore) RecordRedaction(_ context.Context, artifact *core.BlockedArtifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if artifact.ID == "" {
		artifact.ID = uuid.New().String()
	}
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now().UTC()
	}
	s.artifacts = append(s.artifacts, *artifact)
	return nil
}

// Artifacts returns a copy of all recorded artifacts; used by tests.
func (s *MemoryStore) Artifacts() []core.BlockedArtifact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.BlockedArtifact, len(s.artifacts))
	copy(out, s.artifacts)
	return out
}

// PruneExpired deletes closed conversations whose last activity is older
// than the cutoff, along with their turns.
func (s *MemoryStore) PruneExpired(_ context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, conv := range s.conversations {
		if conv.Status == core.StatusClosed && conv.LastMessageAt.Before(olderThan) {
			delete(s.conversations, id)
			delete(s.turns, id)
			removed++
		}
	}
	return removed, nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}
