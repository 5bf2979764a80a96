// Package rules contains the blacklist patterns and the request data they are
// matched against.
package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
)

// Kind is the kind of a blacklist pattern.  It is fixed at construction.
type Kind uint8

// Kind values.
const (
	// KindUnknown is the kind of patterns with an unrecognized type.  Such
	// patterns never match anything.
	KindUnknown Kind = iota

	// KindExact matches the full URL byte for byte.
	KindExact

	// KindDomain matches the host and all of its subdomains.
	KindDomain

	// KindPath matches a substring anywhere in the full URL, not only in its
	// path component.
	KindPath

	// KindRegex matches an unanchored regular expression against the full
	// URL.
	KindRegex
)

// Type strings as they appear in the configuration.
const (
	TypeExact  = "exact"
	TypeDomain = "domain"
	TypePath   = "path"
	TypeRegex  = "regex"
)

// String implements the [fmt.Stringer] interface for Kind.  It returns the
// configuration type string.
func (k Kind) String() (s string) {
	switch k {
	case KindExact:
		return TypeExact
	case KindDomain:
		return TypeDomain
	case KindPath:
		return TypePath
	case KindRegex:
		return TypeRegex
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// ErrUnknownType is returned when the pattern type is not recognized.
const ErrUnknownType errors.Error = "unknown pattern type"

// ParseKind converts a configuration type string into a Kind.  An empty
// string is treated as [TypeExact].  Unrecognized strings return [KindUnknown]
// and an error.
func ParseKind(typ string) (k Kind, err error) {
	switch typ {
	case TypeExact, "":
		return KindExact, nil
	case TypeDomain:
		return KindDomain, nil
	case TypePath:
		return KindPath, nil
	case TypeRegex:
		return KindRegex, nil
	default:
		return KindUnknown, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
}

// PatternError describes why a pattern was constructed in the permanently
// non-matching state.
type PatternError struct {
	// Err is the underlying error.
	Err error

	// Type is the type string from the configuration.
	Type string

	// Value is the pattern value from the configuration.
	Value string
}

// type check
var _ error = (*PatternError)(nil)

// Error implements the error interface for *PatternError.
func (e *PatternError) Error() (msg string) {
	return fmt.Sprintf("pattern %s %q: %s", e.Type, e.Value, e.Err)
}

// Unwrap implements the [errors.Wrapper] interface for *PatternError.
func (e *PatternError) Unwrap() (err error) {
	return e.Err
}

// Pattern is an immutable compiled blacklist rule.
type Pattern struct {
	// re is the compiled expression of a [KindRegex] pattern.  It is nil for
	// other kinds and for regex patterns that failed to compile.
	re *regexp.Regexp

	// value is the literal string, domain, URL fragment, or expression
	// source.
	value string

	// description is an optional human-readable label.
	description string

	// kind is the kind of the pattern.
	kind Kind

	// broken is true if the pattern can never match.
	broken bool
}

// NewPattern creates a new pattern from its configuration fields.  p is never
// nil.  If err is not nil, it is a *PatternError, and p never matches.
func NewPattern(typ, value, description string) (p *Pattern, err error) {
	p = &Pattern{
		value:       value,
		description: description,
	}

	p.kind, err = ParseKind(typ)
	if err != nil {
		p.broken = true

		return p, &PatternError{Err: err, Type: typ, Value: value}
	}

	if p.kind != KindRegex {
		return p, nil
	}

	p.re, err = regexp.Compile(value)
	if err != nil {
		p.broken = true

		return p, &PatternError{Err: err, Type: typ, Value: value}
	}

	return p, nil
}

// Kind returns the kind of the pattern.
func (p *Pattern) Kind() (k Kind) { return p.kind }

// Value returns the value of the pattern.
func (p *Pattern) Value() (v string) { return p.value }

// Description returns the description of the pattern.
func (p *Pattern) Description() (d string) { return p.description }

// Broken returns true if the pattern was constructed from an invalid
// configuration and therefore never matches.
func (p *Pattern) Broken() (ok bool) { return p.broken }

// Match returns true if the pattern matches the request URL or host.  Note
// that an empty [KindPath] value matches every URL.
func (p *Pattern) Match(url, host string) (ok bool) {
	if p.broken {
		return false
	}

	switch p.kind {
	case KindExact:
		return url == p.value
	case KindDomain:
		return matchDomain(host, p.value)
	case KindPath:
		return strings.Contains(url, p.value)
	case KindRegex:
		return p.re.MatchString(url)
	default:
		return false
	}
}

// matchDomain returns true if host is domain or one of its subdomains.
func matchDomain(host, domain string) (ok bool) {
	if !strings.HasSuffix(host, domain) {
		return false
	}

	n := len(host) - len(domain)

	return n == 0 || host[n-1] == '.'
}

// Reason returns the human-readable reason for blocking a request with this
// pattern: the description or, if it's empty, the kind and the value.
func (p *Pattern) Reason() (reason string) {
	if p.description != "" {
		return p.description
	}

	return p.String()
}

// String implements the [fmt.Stringer] interface for *Pattern.
func (p *Pattern) String() (s string) {
	if p.kind == KindUnknown {
		return "unknown: " + p.value
	}

	return p.kind.String() + ": " + p.value
}
