package blockfilter

import "sync/atomic"

// Stats contains the interception counters.  It is safe for concurrent use.
// The counters are only reset by creating a new Stats.
type Stats struct {
	blocked atomic.Uint64
	allowed atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	// Blocked is the number of requests that were blocked.
	Blocked uint64 `json:"blocked"`

	// Allowed is the number of requests that were forwarded.
	Allowed uint64 `json:"allowed"`
}

// Total returns the total number of decisions.
func (s StatsSnapshot) Total() (n uint64) {
	return s.Blocked + s.Allowed
}

// IncBlocked increments the blocked counter.
func (s *Stats) IncBlocked() {
	s.blocked.Add(1)
}

// IncAllowed increments the allowed counter.
func (s *Stats) IncAllowed() {
	s.allowed.Add(1)
}

// Snapshot returns the current values of the counters.  The two values are
// read independently, so under concurrent updates the snapshot may be
// slightly behind one of them.
func (s *Stats) Snapshot() (snap StatsSnapshot) {
	return StatsSnapshot{
		Blocked: s.blocked.Load(),
		Allowed: s.allowed.Load(),
	}
}
