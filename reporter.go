package blockfilter

import "log/slog"

// BlockEvent describes a blocked request.
type BlockEvent struct {
	// Method is the HTTP method of the request.
	Method string

	// URL is the full URL of the request.
	URL string

	// Host is the host of the request.
	Host string

	// Domain is the registered domain of the host.
	Domain string

	// Reason is the reason of the block.
	Reason string
}

// Reporter receives the decision events and the final counters of an engine.
// Implementations must be safe for concurrent use.
type Reporter interface {
	// Blocked is called for every blocked request if logging of blocked
	// requests is enabled.  ev must not be retained.
	Blocked(ev *BlockEvent)

	// Summary is called once when the engine is closed.
	Summary(s StatsSnapshot)
}

// EmptyReporter is a [Reporter] that does nothing.
type EmptyReporter struct{}

// type check
var _ Reporter = EmptyReporter{}

// Blocked implements the [Reporter] interface for EmptyReporter.
func (EmptyReporter) Blocked(_ *BlockEvent) {}

// Summary implements the [Reporter] interface for EmptyReporter.
func (EmptyReporter) Summary(_ StatsSnapshot) {}

// SlogReporter is a [Reporter] that writes the events to a structured logger.
type SlogReporter struct {
	logger *slog.Logger
}

// NewSlogReporter returns a new *SlogReporter.  l must not be nil.
func NewSlogReporter(l *slog.Logger) (r *SlogReporter) {
	return &SlogReporter{
		logger: l,
	}
}

// type check
var _ Reporter = (*SlogReporter)(nil)

// Blocked implements the [Reporter] interface for *SlogReporter.
func (r *SlogReporter) Blocked(ev *BlockEvent) {
	r.logger.Info(
		"blocked",
		"method", ev.Method,
		"url", ev.URL,
		"host", ev.Host,
		"domain", ev.Domain,
		"reason", ev.Reason,
	)
}

// Summary implements the [Reporter] interface for *SlogReporter.
func (r *SlogReporter) Summary(s StatsSnapshot) {
	r.logger.Info("interception stats", "blocked", s.Blocked, "allowed", s.Allowed)
}
