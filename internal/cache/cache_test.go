package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askmom/internal/core"
)

func TestLocalCacheRoundTrip(t *testing.T) {
	c := NewLocalCache(0)
	ctx := context.Background()

	got, err := c.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, got, "empty cache should return nil, nil")

	snap := &ReplySnapshot{
		Reply: core.StructuredReply{
			ConversationID: "c1",
			RiskLevel:      core.RiskMedium,
			Summary:        "Let's get your printer back online.",
			Steps:          []string{"Turn the printer off and on."},
			Confidence:     0.88,
			Model:          "stub",
		},
		CachedAt: time.Now().UTC(),
	}
	require.NoError(t, c.Set(ctx, "c1", snap))

	got, err = c.Get(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "c1", got.Reply.ConversationID)
	assert.Equal(t, core.RiskMedium, got.Reply.RiskLevel)

	// Mutating the returned copy must not affect the stored snapshot.
	got.Reply.Summary = "changed"
	again, err := c.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Let's get your printer back online.", again.Reply.Summary)

	require.NoError(t, c.Delete(ctx, "c1"))
	got, err = c.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLocalCacheExpiry(t *testing.T) {
	c := NewLocalCache(10 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "c1", &ReplySnapshot{CachedAt: time.Now()}))
	time.Sleep(25 * time.Millisecond)

	got, err := c.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, got, "expired entries should read as missing")
}
