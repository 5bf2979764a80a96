package blockfilter

import (
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/netinterceptor/blockfilter/rules"
)

// DefaultStatusCode is the status code of synthetic responses when none is
// configured.
const DefaultStatusCode = 204

// Settings shape the synthetic responses for blocked requests.
type Settings struct {
	// Body is the body of synthetic responses.  If it's not empty, the
	// responses have the JSON content type.
	Body []byte

	// StatusCode is the status code of synthetic responses.  Zero means
	// [DefaultStatusCode].
	StatusCode int

	// LogBlocked enables reporting of every blocked request.
	LogBlocked bool
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() (s *Settings) {
	return &Settings{
		Body:       nil,
		StatusCode: DefaultStatusCode,
		LogBlocked: true,
	}
}

// SettingsUpdate is a partial update of [Settings].  Only non-nil fields are
// applied.
type SettingsUpdate struct {
	// Body, if not nil, replaces [Settings.Body].
	Body *[]byte

	// StatusCode, if not nil, replaces [Settings.StatusCode].
	StatusCode *int

	// LogBlocked, if not nil, replaces [Settings.LogBlocked].
	LogBlocked *bool
}

// IsEmpty returns true if u changes nothing.
func (u *SettingsUpdate) IsEmpty() (ok bool) {
	return u.Body == nil && u.StatusCode == nil && u.LogBlocked == nil
}

// Config is the configuration of an [Engine].
type Config struct {
	// Logger is used for the engine's own debug records.  If nil,
	// [slog.Default] is used.
	Logger *slog.Logger

	// Reporter receives the block events and the final summary.  If nil, a
	// [SlogReporter] writing to Logger is used.
	Reporter Reporter

	// Settings are the initial response settings.  If nil,
	// [DefaultSettings] are used.
	Settings *Settings

	// Patterns is the initial pattern set.  If nil, the engine starts with an
	// empty set and allows everything.
	Patterns *PatternSet

	// MatchCacheSize is the size of the match result cache of every pattern
	// set snapshot.  Zero or a negative value disables the cache.
	MatchCacheSize int
}

// cacheKey is the key of the match result cache.
type cacheKey struct {
	url  string
	host string
}

// snapshot is an installed pattern set together with the match results
// cached for it.
type snapshot struct {
	// cache is nil if caching is disabled.
	cache *lru.Cache[cacheKey, MatchResult]

	set *PatternSet
}

// Engine makes the interception decisions.  It is safe for concurrent use.
// Create a separate Engine for every proxy instance.
type Engine struct {
	logger   *slog.Logger
	reporter Reporter
	stats    *Stats

	// snap is the current pattern set snapshot.  It is replaced as a whole.
	snap atomic.Pointer[snapshot]

	// settings is the current response settings.  It is replaced as a whole
	// under settingsMu, readers load it without locking.
	settings atomic.Pointer[Settings]

	// settingsMu serializes the read-modify-write of settings updates.
	settingsMu *sync.Mutex

	closeOnce *sync.Once

	cacheSize int
}

// NewEngine returns a new properly initialized *Engine.  c must not be nil.
func NewEngine(c *Config) (e *Engine) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	reporter := c.Reporter
	if reporter == nil {
		reporter = NewSlogReporter(logger)
	}

	e = &Engine{
		logger:     logger,
		reporter:   reporter,
		stats:      &Stats{},
		settingsMu: &sync.Mutex{},
		closeOnce:  &sync.Once{},
		cacheSize:  c.MatchCacheSize,
	}

	settings := c.Settings
	if settings == nil {
		settings = DefaultSettings()
	}

	e.settings.Store(cloneSettings(settings))
	e.snap.Store(e.newSnapshot(c.Patterns))

	return e
}

// newSnapshot returns a snapshot of set with an empty cache.
func (e *Engine) newSnapshot(set *PatternSet) (s *snapshot) {
	s = &snapshot{
		set: set,
	}

	if e.cacheSize <= 0 {
		return s
	}

	cache, err := lru.New[cacheKey, MatchResult](e.cacheSize)
	if err != nil {
		// Should not happen, since the size is positive.
		e.logger.Error("creating match cache", "size", e.cacheSize, slogutil.KeyError, err)

		return s
	}

	s.cache = cache

	return s
}

// cloneSettings returns a deep copy of s.
func cloneSettings(s *Settings) (c *Settings) {
	return &Settings{
		Body:       slices.Clone(s.Body),
		StatusCode: s.StatusCode,
		LogBlocked: s.LogBlocked,
	}
}

// ReplacePatterns atomically installs set as the active pattern set.  Every
// decision started after ReplacePatterns returns uses set, and no decision
// ever uses a mix of the old and the new set.  set may be nil, which means an
// empty set.
func (e *Engine) ReplacePatterns(set *PatternSet) {
	e.snap.Store(e.newSnapshot(set))

	e.logger.Debug("pattern set replaced", "num_patterns", set.Len())
}

// Patterns returns the active pattern set.
func (e *Engine) Patterns() (set *PatternSet) {
	return e.snap.Load().set
}

// Configure applies the non-nil fields of u to the response settings.
func (e *Engine) Configure(u *SettingsUpdate) {
	if u.IsEmpty() {
		return
	}

	e.settingsMu.Lock()
	defer e.settingsMu.Unlock()

	s := cloneSettings(e.settings.Load())
	if u.Body != nil {
		s.Body = slices.Clone(*u.Body)
	}

	if u.StatusCode != nil {
		s.StatusCode = *u.StatusCode
	}

	if u.LogBlocked != nil {
		s.LogBlocked = *u.LogBlocked
	}

	e.settings.Store(s)

	e.logger.Debug(
		"settings updated",
		"status_code", s.StatusCode,
		"body_len", len(s.Body),
		"log_blocked", s.LogBlocked,
	)
}

// Settings returns a copy of the current response settings.
func (e *Engine) Settings() (s *Settings) {
	return cloneSettings(e.settings.Load())
}

// Match evaluates the request against the active pattern set without
// updating the counters.  req must not be nil.
func (e *Engine) Match(req *rules.Request) (res MatchResult) {
	return e.snap.Load().match(req.URL, req.Hostname)
}

// match evaluates url and host against the snapshot, using the cache if it's
// enabled.
func (s *snapshot) match(url, host string) (res MatchResult) {
	if s.cache == nil {
		return s.set.Match(url, host)
	}

	key := cacheKey{url: url, host: host}
	res, ok := s.cache.Get(key)
	if ok {
		return res
	}

	res = s.set.Match(url, host)
	s.cache.Add(key, res)

	return res
}

// Decide makes the interception decision for req and updates the counters.
// It never performs any network I/O, the caller is responsible for
// substituting the response or forwarding the request.  req must not be nil.
func (e *Engine) Decide(req *rules.Request) (d Decision) {
	res := e.Match(req)
	if !res.Matched {
		e.stats.IncAllowed()

		return Decision{Action: ActionAllow}
	}

	e.stats.IncBlocked()

	s := e.settings.Load()
	if s.LogBlocked {
		e.reporter.Blocked(&BlockEvent{
			Method: req.Method,
			URL:    req.URL,
			Host:   req.Hostname,
			Domain: req.Domain,
			Reason: res.Reason,
		})
	}

	return newBlockDecision(s, res.Reason)
}

// Stats returns the current values of the counters.
func (e *Engine) Stats() (s StatsSnapshot) {
	return e.stats.Snapshot()
}

// Close reports the final counters.  Only the first call has any effect.  It
// always returns nil.
func (e *Engine) Close() (err error) {
	e.closeOnce.Do(func() {
		e.reporter.Summary(e.stats.Snapshot())
	})

	return nil
}
