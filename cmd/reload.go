package main

import (
	"context"
	"log/slog"
	"sync"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/netinterceptor/blockfilter"
	"github.com/netinterceptor/blockfilter/filterlist"
	"github.com/netinterceptor/blockfilter/internal/config"
)

// reloader applies the configuration changes to the engine and keeps the
// blacklist watcher on the configured path.
type reloader struct {
	logger *slog.Logger
	engine *blockfilter.Engine
	loader *filterlist.Loader

	// mu protects conf and watcher.
	mu      *sync.Mutex
	conf    *config.Config
	watcher *filterlist.Watcher
}

// newReloader returns a new *reloader for engine.
func newReloader(l *slog.Logger, engine *blockfilter.Engine) (r *reloader) {
	return &reloader{
		logger: l,
		engine: engine,
		loader: filterlist.NewLoader(&filterlist.LoaderConfig{
			Logger: l,
		}),
		mu: &sync.Mutex{},
	}
}

// apply applies the changed settings of c and reloads the blacklist if its
// path has changed.  If the blacklist can't be loaded, the previous patterns
// are kept.
func (r *reloader) apply(ctx context.Context, c *config.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, reload := c.Diff(r.conf)
	r.conf = c

	r.engine.Configure(u)
	if !reload {
		return
	}

	set, err := r.loader.Load(ctx, c.BlacklistConfig)
	switch {
	case err == nil:
		r.engine.ReplacePatterns(set)
	case errors.Is(err, filterlist.ErrNoPath):
		// Already reported by the loader.
	default:
		r.logger.ErrorContext(ctx, "loading blacklist, keeping previous patterns", slogutil.KeyError, err)
	}

	r.restartWatcher(ctx, c.BlacklistConfig)
}

// restartWatcher stops the current blacklist watcher, if any, and starts
// watching path.  r.mu must be locked.
func (r *reloader) restartWatcher(ctx context.Context, path string) {
	if r.watcher != nil {
		err := r.watcher.Shutdown(ctx)
		if err != nil {
			r.logger.WarnContext(ctx, "stopping blacklist watcher", slogutil.KeyError, err)
		}

		r.watcher = nil
	}

	if path == "" {
		return
	}

	w, err := filterlist.NewWatcher(&filterlist.WatcherConfig{
		Logger:    r.logger,
		Loader:    r.loader,
		Installer: r.engine,
		Path:      path,
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "creating blacklist watcher", slogutil.KeyError, err)

		return
	}

	err = w.Start(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "starting blacklist watcher", slogutil.KeyError, err)
		_ = w.Shutdown(ctx)

		return
	}

	r.watcher = w
}

// shutdown stops the blacklist watcher.
func (r *reloader) shutdown(ctx context.Context) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.watcher == nil {
		return nil
	}

	err = r.watcher.Shutdown(ctx)
	r.watcher = nil
	if err != nil {
		return errors.Annotate(err, "stopping blacklist watcher: %w")
	}

	return nil
}
