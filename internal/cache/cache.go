// Package cache stores the most recent structured reply per conversation so
// read endpoints can surface it without replaying the turn history. Supports
// a local in-memory backend and Redis for multi-instance deployments.
package cache

import (
	"context"
	"time"

	"askmom/internal/core"
)

// ReplySnapshot is the cached view of a conversation's latest assistant reply.
type ReplySnapshot struct {
	Reply    core.StructuredReply `json:"reply"`
	CachedAt time.Time            `json:"cached_at"`
}

// Cache defines the interface for reply snapshot storage.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get retrieves the snapshot for a conversation.
	// Returns nil, nil if no snapshot exists.
	Get(ctx context.Context, conversationID string) (*ReplySnapshot, error)

	// Set stores the snapshot for a conversation.
	Set(ctx context.Context, conversationID string, snap *ReplySnapshot) error

	// Delete removes a conversation's snapshot, if present.
	Delete(ctx context.Context, conversationID string) error

	// Close releases any resources held by the cache.
	Close() error
}
