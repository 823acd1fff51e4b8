package orchestrator

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"askmom/internal/core"
	"askmom/internal/metrics"
)

const (
	// sweepMinInterval throttles request-driven sweeps.
	sweepMinInterval = 60 * time.Second

	// defaultRetention is how long closed conversations linger before the
	// sweep removes them.
	defaultRetention = 30 * 24 * time.Hour
)

// Sweeper prunes expired conversations at most once per interval. Requests
// poke it after every turn; a compare-and-swap on the last-run stamp makes
// sure only one of them pays for the sweep.
type Sweeper struct {
	store     core.ConversationStore
	retention time.Duration
	interval  time.Duration

	lastRunUnix atomic.Int64
}

// NewSweeper creates a sweeper with the default retention and interval.
func NewSweeper(store core.ConversationStore) *Sweeper {
	return &Sweeper{
		store:     store,
		retention: defaultRetention,
		interval:  sweepMinInterval,
	}
}

// SetRetention overrides how long closed conversations are kept.
func (s *Sweeper) SetRetention(d time.Duration) {
	if d > 0 {
		s.retention = d
	}
}

// MaybeSweep runs the sweep if at least the minimum interval has passed
// since the last run. The sweep itself happens in the background so the
// triggering request never waits on it.
func (s *Sweeper) MaybeSweep(ctx context.Context, now time.Time) bool {
	last := s.lastRunUnix.Load()
	if now.Unix()-last < int64(s.interval/time.Second) {
		return false
	}
	if !s.lastRunUnix.CompareAndSwap(last, now.Unix()) {
		return false
	}

	go s.sweep(context.WithoutCancel(ctx), now)
	return true
}

// RunSweepLoop runs the sweep on a fixed ticker until the context is
// cancelled. Intended for daemon wiring as an alternative to the
// request-driven path.
func (s *Sweeper) RunSweepLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = s.interval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("retention sweep loop started", "interval", interval, "retention", s.retention)
	for {
		select {
		case <-ctx.Done():
			slog.Info("retention sweep loop stopped")
			return
		case now := <-ticker.C:
			s.lastRunUnix.Store(now.Unix())
			s.sweep(ctx, now)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context, now time.Time) {
	metrics.SweepRuns.Inc()

	removed, err := s.store.PruneExpired(ctx, now.Add(-s.retention))
	if err != nil {
		slog.Warn("retention sweep failed", "error", err)
		return
	}
	if removed > 0 {
		metrics.SweepRemoved.Add(float64(removed))
		slog.Info("retention sweep removed expired conversations", "count", removed)
	}
}
