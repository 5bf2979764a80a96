package filterlist

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/netutil"
	"github.com/netinterceptor/blockfilter"
	"github.com/netinterceptor/blockfilter/rules"
)

// ErrNoPath is returned when the path of the blacklist document is empty.
const ErrNoPath errors.Error = "no blacklist config path specified"

// LoaderConfig is the configuration of a [Loader].
type LoaderConfig struct {
	// Logger is used to report the invalid patterns and the results of
	// loading.  It must not be nil.
	Logger *slog.Logger
}

// Loader builds pattern sets from blacklist documents.  Invalid patterns never
// fail a load: they are reported and kept in the set in the non-matching
// state.
type Loader struct {
	logger *slog.Logger
}

// NewLoader returns a new *Loader.  c must not be nil.
func NewLoader(c *LoaderConfig) (l *Loader) {
	return &Loader{
		logger: c.Logger,
	}
}

// Load reads the document at path and builds a pattern set from it.  If err
// is not nil, set is nil and the caller should keep using its previous set.
func (l *Loader) Load(ctx context.Context, path string) (set *blockfilter.PatternSet, err error) {
	if path == "" {
		l.logger.WarnContext(ctx, "loading patterns", slogutil.KeyError, ErrNoPath)

		return nil, ErrNoPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		// Don't wrap the error, since it already contains the path.
		return nil, err
	}

	doc, err := Parse(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("parsing %q: %w", path, err)
	}

	set = l.Build(ctx, doc)

	l.logger.InfoContext(ctx, "loaded patterns", "num_patterns", set.Len(), "path", path)

	return set, nil
}

// Build creates a pattern set from doc, preserving the order of the patterns.
// doc must not be nil.
func (l *Loader) Build(ctx context.Context, doc *Document) (set *blockfilter.PatternSet) {
	patterns := make([]*rules.Pattern, 0, len(doc.Patterns))
	for i, spec := range doc.Patterns {
		p, err := rules.NewPattern(spec.Type, spec.Value, spec.Description)
		if err != nil {
			l.logger.ErrorContext(ctx, "invalid pattern", "idx", i, slogutil.KeyError, err)
		} else {
			l.warnSuspicious(ctx, i, p)
		}

		patterns = append(patterns, p)
	}

	return blockfilter.NewPatternSet(patterns)
}

// warnSuspicious reports valid patterns that are likely to be configuration
// mistakes.  The patterns are still used as is.
func (l *Loader) warnSuspicious(ctx context.Context, idx int, p *rules.Pattern) {
	switch p.Kind() {
	case rules.KindPath:
		if p.Value() == "" {
			l.logger.WarnContext(ctx, "empty path pattern matches every request", "idx", idx)
		}
	case rules.KindDomain:
		err := netutil.ValidateDomainName(p.Value())
		if err != nil {
			l.logger.WarnContext(
				ctx,
				"domain pattern is not a valid domain name",
				"idx", idx,
				"value", p.Value(),
				slogutil.KeyError, err,
			)
		}
	default:
		// Go on.
	}
}
