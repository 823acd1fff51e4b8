package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"askmom/internal/store"
)

func TestSweeperThrottles(t *testing.T) {
	s := NewSweeper(store.NewMemory())
	now := time.Now()

	assert.True(t, s.MaybeSweep(context.Background(), now), "first poke should sweep")
	assert.False(t, s.MaybeSweep(context.Background(), now.Add(30*time.Second)),
		"pokes inside the interval are dropped")
	assert.True(t, s.MaybeSweep(context.Background(), now.Add(61*time.Second)),
		"the interval elapsing re-arms the sweep")
}

func TestSweeperSingleWinnerUnderRace(t *testing.T) {
	s := NewSweeper(store.NewMemory())
	now := time.Now().Add(2 * time.Minute)

	wins := 0
	for i := 0; i < 10; i++ {
		if s.MaybeSweep(context.Background(), now) {
			wins++
		}
	}
	assert.Equal(t, 1, wins, "exactly one concurrent poke should win the swap")
}
