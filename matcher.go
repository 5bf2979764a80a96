package blockfilter

import "github.com/netinterceptor/blockfilter/rules"

// MatchResult is the result of evaluating a request against a pattern set.
type MatchResult struct {
	// Pattern is the first pattern that matched the request.  It is nil if
	// Matched is false.
	Pattern *rules.Pattern

	// Reason is the human-readable reason of the match.  It is empty if
	// Matched is false.
	Reason string

	// Index is the position of Pattern in the set.  It is -1 if Matched is
	// false.
	Index int

	// Matched is true if any pattern matched the request.
	Matched bool
}

// noMatch is the result returned when no pattern matches.
var noMatch = MatchResult{Index: -1}

// Match scans the set in declaration order and returns the first pattern that
// matches url or host.  The scan is linear, since pattern sets are small and
// the order of the patterns is significant.
func (s *PatternSet) Match(url, host string) (res MatchResult) {
	if s == nil {
		return noMatch
	}

	for i, p := range s.patterns {
		if p.Match(url, host) {
			return MatchResult{
				Pattern: p,
				Reason:  p.Reason(),
				Index:   i,
				Matched: true,
			}
		}
	}

	return noMatch
}
