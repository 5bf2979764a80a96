// Package blockfilter implements the interception decision engine of a
// blocking HTTP proxy: an ordered set of blacklist patterns, the first-match
// evaluation over it, and the synthetic responses for blocked requests.
package blockfilter

import (
	"slices"

	"github.com/netinterceptor/blockfilter/rules"
)

// PatternSet is an immutable ordered collection of patterns.  The order of the
// patterns is the order of evaluation.  A nil *PatternSet is an empty set.
type PatternSet struct {
	patterns []*rules.Pattern
}

// NewPatternSet returns a new pattern set containing patterns in the given
// order.  patterns is copied, so the caller may reuse it.  patterns must not
// contain nil values.
func NewPatternSet(patterns []*rules.Pattern) (s *PatternSet) {
	return &PatternSet{
		patterns: slices.Clone(patterns),
	}
}

// Len returns the number of patterns in the set.
func (s *PatternSet) Len() (n int) {
	if s == nil {
		return 0
	}

	return len(s.patterns)
}

// Patterns returns a copy of the patterns of the set in evaluation order.
func (s *PatternSet) Patterns() (patterns []*rules.Pattern) {
	if s == nil {
		return nil
	}

	return slices.Clone(s.patterns)
}
