package core

import (
	"context"
	"time"
)

// TurnFilter narrows RecentTurns queries.
type TurnFilter struct {
	// Role restricts results to a single role when set.
	Role Role
	// Limit caps the number of returned turns (0 = store default).
	Limit int
	// Since restricts results to turns created at or after this time.
	Since time.Time
}

// ConversationStore persists conversations, turns, and redaction artifacts.
// Implementations must be safe for concurrent use across conversations;
// turns within one conversation are appended by a single request at a time.
type ConversationStore interface {
	// CreateConversation inserts a new conversation record.
	CreateConversation(ctx context.Context, conv *Conversation) error

	// GetConversation returns the conversation, or a not-found error.
	GetConversation(ctx context.Context, id string) (*Conversation, error)

	// ListConversations returns a user's conversations, most recent
	// activity first. The query string, when non-empty, matches against
	// turn text.
	ListConversations(ctx context.Context, userID, query string, limit int) ([]Conversation, error)

	// AppendTurn appends a turn and returns its ID.
	AppendTurn(ctx context.Context, turn *Turn) (string, error)

	// RecentTurns returns a conversation's turns in ascending creation
	// order, subject to the filter. When a limit applies it keeps the
	// newest turns.
	RecentTurns(ctx context.Context, conversationID string, filter TurnFilter) ([]Turn, error)

	// UpdateConversationSummary updates the mutable summary fields
	// (title, status, risk level, last message time).
	UpdateConversationSummary(ctx context.Context, conv *Conversation) error

	// RecordRedaction persists a blocked artifact.
	RecordRedaction(ctx context.Context, artifact *BlockedArtifact) error

	// PruneExpired deletes closed conversations whose last activity is
	// older than the cutoff. Returns the number of conversations removed.
	PruneExpired(ctx context.Context, olderThan time.Time) (int64, error)

	// Close releases the store's resources.
	Close() error
}

// GenerateRequest carries a bounded conversation context to the upstream
// model. Turns are ordered oldest first and already truncated to the
// context budget.
type GenerateRequest struct {
	Instructions string
	Turns        []Turn
	UserText     string
}

// GenerateResult is the model's structured output, validated at the
// boundary where the response is parsed.
type GenerateResult struct {
	RiskLevel         RiskLevel
	Title             string
	Summary           string
	Steps             []string
	EscalateSuggested bool
	Confidence        float64
	Model             string
}

// Generator is the opaque upstream advice model. Implementations must
// honor context cancellation; the orchestrator calls with an explicit
// timeout and treats any error as upstream unavailability.
type Generator interface {
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error)
}
