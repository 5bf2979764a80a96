package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/netinterceptor/blockfilter"
)

// maxIdleCheckInterval is the maximum interval between the activity checks.
const maxIdleCheckInterval = time.Minute

// statsSource provides the decision counters.  [*blockfilter.Engine]
// implements it.
type statsSource interface {
	// Stats returns the current values of the counters.
	Stats() (s blockfilter.StatsSnapshot)
}

// type check
var _ statsSource = (*blockfilter.Engine)(nil)

// idleMonitor detects the periods without any proxied requests.  A request
// is an activity if the engine has made a decision for it.
type idleMonitor struct {
	logger   *slog.Logger
	stats    statsSource
	timeout  time.Duration
	interval time.Duration
}

// newIdleMonitor returns a new *idleMonitor.  timeout must be positive.
func newIdleMonitor(l *slog.Logger, stats statsSource, timeout time.Duration) (m *idleMonitor) {
	return &idleMonitor{
		logger:   l,
		stats:    stats,
		timeout:  timeout,
		interval: min(timeout/4, maxIdleCheckInterval),
	}
}

// wait blocks until no requests have been decided for the timeout or until
// ctx is canceled.  idle is true in the former case.
func (m *idleMonitor) wait(ctx context.Context) (idle bool) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.InfoContext(ctx, "starting idle monitoring", "timeout", m.timeout)

	lastTotal := m.stats.Stats().Total()
	lastActivity := time.Now()
	for {
		select {
		case <-ctx.Done():
			return false
		case now := <-ticker.C:
			total := m.stats.Stats().Total()
			if total != lastTotal {
				lastTotal, lastActivity = total, now

				continue
			}

			if idleFor := now.Sub(lastActivity); idleFor >= m.timeout {
				m.logger.InfoContext(ctx, "idle timeout reached", "idle_for", idleFor)

				return true
			}
		}
	}
}
