package filterlist

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/fsnotify/fsnotify"
	"github.com/netinterceptor/blockfilter"
)

// DefaultDebounce is the default delay between the last change of the watched
// file and the reload.
const DefaultDebounce = 250 * time.Millisecond

// PatternInstaller installs the reloaded pattern sets.  [*blockfilter.Engine]
// implements it.
type PatternInstaller interface {
	// ReplacePatterns atomically replaces the active pattern set.
	ReplacePatterns(set *blockfilter.PatternSet)
}

// type check
var _ PatternInstaller = (*blockfilter.Engine)(nil)

// WatcherConfig is the configuration of a [Watcher].
type WatcherConfig struct {
	// Logger is used to report the reload errors.  It must not be nil.
	Logger *slog.Logger

	// Loader is used to reload the file.  It must not be nil.
	Loader *Loader

	// Installer receives the reloaded sets.  It must not be nil.
	Installer PatternInstaller

	// Path is the path to the blacklist document.  It must not be empty.
	Path string

	// Debounce is the delay between the last change and the reload.  If
	// zero, [DefaultDebounce] is used.
	Debounce time.Duration
}

// Watcher reloads the blacklist document when it changes.  The previous set
// stays active if the reload fails.
type Watcher struct {
	logger    *slog.Logger
	loader    *Loader
	installer PatternInstaller
	watcher   *fsnotify.Watcher
	wg        *sync.WaitGroup
	path      string
	debounce  time.Duration
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
		logger:    c.Logger,
		loader:    c.Loader,
		installer: c.Installer,
		watcher:   fsw,
		wg:        &sync.WaitGroup{},
		path:      path,
		debounce:  debounce,
	}, nil
}

// Start starts watching the file.  The directory of the file is watched, so
// that editors replacing the file by renaming are supported.
func (w *Watcher) Start(ctx context.Context) (err error) {
	err = w.watcher.Add(filepath.Dir(w.path))
	if err != nil {
		return fmt.Errorf("watching %q: %w", w.path, err)
	}

	w.wg.Add(1)
	go w.handleEvents(context.WithoutCancel(ctx))

	w.logger.DebugContext(ctx, "watching", "path", w.path)

	return nil
}

// Shutdown stops watching and waits for the event handler to exit.
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

	var timer *time.Timer
	var timerCh <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if !w.isRelevant(ev) {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}

			timerCh = timer.C
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}

			w.logger.ErrorContext(ctx, "watching blacklist", slogutil.KeyError, err)
		case <-timerCh:
			timerCh = nil
			w.reload(ctx)
		}
	}
}

// isRelevant returns true if ev may have changed the watched file.
func (w *Watcher) isRelevant(ev fsnotify.Event) (ok bool) {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}

	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}

// reload loads the file and installs the new set.
func (w *Watcher) reload(ctx context.Context) {
	set, err := w.loader.Load(ctx, w.path)
	if err != nil {
		w.logger.ErrorContext(ctx, "reloading blacklist, keeping previous patterns", slogutil.KeyError, err)

		return
	}

	w.installer.ReplacePatterns(set)
}
