package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the default delay between the last change of the
// configuration file and the reload.
const DefaultDebounce = 250 * time.Millisecond

// WatcherConfig is the configuration of a [Watcher].
type WatcherConfig struct {
	// Logger is used to report the reload errors.  It must not be nil.
	Logger *slog.Logger

	// OnChange is called with every successfully reloaded configuration.  It
	// must not be nil.
	OnChange func(c *Config)

	// Path is the path to the configuration file.  It must not be empty.
	Path string

	// Debounce is the delay between the last change and the reload.  If
	// zero, [DefaultDebounce] is used.
	Debounce time.Duration
}

// Watcher reloads the configuration file when it changes.  Configurations
// that fail to load or validate are reported and skipped.
type Watcher struct {
	logger   *slog.Logger
	onChange func(c *Config)
	watcher  *fsnotify.Watcher
	wg       *sync.WaitGroup
	path     string
	debounce time.Duration
}

// NewWatcher returns a new *Watcher.  c must not be nil.
func NewWatcher(c *WatcherConfig) (w *Watcher, err error) {
	path, err := filepath.Abs(c.Path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	debounce := c.Debounce
	if debounce == 0 {
		debounce = DefaultDebounce
	}

	return &Watcher{
		logger:   c.Logger,
		onChange: c.OnChange,
		watcher:  fsw,
		wg:       &sync.WaitGroup{},
		path:     path,
		debounce: debounce,
	}, nil
}

// Start starts watching the file.  The directory of the file is watched, so
// that files replaced by renaming are supported.
func (w *Watcher) Start(ctx context.Context) (err error) {
	err = w.watcher.Add(filepath.Dir(w.path))
	if err != nil {
		return fmt.Errorf("watching %q: %w", w.path, err)
	}

	w.wg.Add(1)
	go w.handleEvents(context.WithoutCancel(ctx))

	return nil
}

// Shutdown stops watching and waits for the event handler to exit.  No
// OnChange calls happen after Shutdown returns.
func (w *Watcher) Shutdown(_ context.Context) (err error) {
	err = w.watcher.Close()
	w.wg.Wait()

	if err != nil {
		return fmt.Errorf("closing fsnotify watcher: %w", err)
	}

	return nil
}

// handleEvents reloads the file after the changes settle.  It is intended to
// be used as a goroutine.
func (w *Watcher) handleEvents(ctx context.Context) {
	defer w.wg.Done()
	defer slogutil.RecoverAndLog(ctx, w.logger)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if filepath.Clean(ev.Name) == w.path &&
				(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)) {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}

			w.logger.ErrorContext(ctx, "watching config", slogutil.KeyError, err)
		case <-timer.C:
			w.reload(ctx)
		}
	}
}

// reload loads the file and passes the result to the callback.
func (w *Watcher) reload(ctx context.Context) {
	c, err := Load(w.path)
	if err != nil {
		w.logger.ErrorContext(ctx, "reloading config, keeping previous settings", slogutil.KeyError, err)

		return
	}

	w.onChange(c)
}
