package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultLocalTTL bounds how long a snapshot stays useful without updates.
const DefaultLocalTTL = 24 * time.Hour

type localEntry struct {
	snap      ReplySnapshot
	expiresAt time.Time
}

// LocalCache implements Cache with an in-process map.
// This is suitable for single-instance deployments.
type LocalCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]localEntry
}

// NewLocalCache creates an in-memory cache. A zero ttl uses DefaultLocalTTL.
func NewLocalCache(ttl time.Duration) *LocalCache {
	if ttl <= 0 {
		ttl = DefaultLocalTTL
	}
	return &LocalCache{
		ttl:     ttl,
		entries: make(map[string]localEntry),
	}
}

func (c *LocalCache) Get(_ context.Context, conversationID string) (*ReplySnapshot, error) {
	c.mu.RLock()
	entry, ok := c.entries[conversationID]
	c.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, conversationID)
		c.mu.Unlock()
		return nil, nil
	}
	snap := entry.snap
	return &snap, nil
}

func (c *LocalCache) Set(_ context.Context, conversationID string, snap *ReplySnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[conversationID] = localEntry{
		snap:      *snap,
		expiresAt: time.Now().Add(c.ttl),
	}
	return nil
}

func (c *LocalCache) Delete(_ context.Context, conversationID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, conversationID)
	return nil
}

// Close is a no-op for the local cache.
func (c *LocalCache) Close() error {
	return nil
}
