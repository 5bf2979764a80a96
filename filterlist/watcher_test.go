package filterlist_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/netinterceptor/blockfilter"
	"github.com/netinterceptor/blockfilter/filterlist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testTimeout is the common timeout for tests.
const testTimeout = 5 * time.Second

// replaceFile atomically replaces the contents of the file at path, so that
// the watcher never sees a partially written file.
func replaceFile(tb testing.TB, path, data string) {
	tb.Helper()

	tmp := path + ".tmp"
	err := os.WriteFile(tmp, []byte(data), 0o600)
	require.NoError(tb, err)

	err = os.Rename(tmp, path)
	require.NoError(tb, err)
}

func TestWatcher(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "blacklist.json", `{"patterns": [
		{"type": "domain", "value": "old.example"}
	]}`)

	ctx := testutil.ContextWithTimeout(t, testTimeout)
	loader := newTestLoader()

	set, err := loader.Load(ctx, path)
	require.NoError(t, err)

	engine := blockfilter.NewEngine(&blockfilter.Config{
		Logger:   slogutil.NewDiscardLogger(),
		Reporter: blockfilter.EmptyReporter{},
		Patterns: set,
	})

	w, err := filterlist.NewWatcher(&filterlist.WatcherConfig{
		Logger:    slogutil.NewDiscardLogger(),
		Loader:    loader,
		Installer: engine,
		Path:      path,
		Debounce:  10 * time.Millisecond,
	})
	require.NoError(t, err)

	require.NoError(t, w.Start(ctx))
	testutil.CleanupAndRequireSuccess(t, func() (err error) {
		return w.Shutdown(context.Background())
	})

	replaceFile(t, path, `{"patterns": [
		{"type": "domain", "value": "new.example"},
		{"type": "path", "value": "/ads/"}
	]}`)

	require.Eventually(t, func() (ok bool) {
		return engine.Patterns().Len() == 2
	}, testTimeout, 10*time.Millisecond)

	newSet := engine.Patterns()
	assert.True(t, newSet.Match("http://new.example/", "new.example").Matched)
	assert.False(t, newSet.Match("http://old.example/", "old.example").Matched)

	// A broken document must not replace the active set.
	replaceFile(t, path, `{"patterns": [`)

	time.Sleep(100 * time.Millisecond)
	assert.Same(t, newSet, engine.Patterns())
}

func TestNewWatcher_badDir(t *testing.T) {
	t.Parallel()

	w, err := filterlist.NewWatcher(&filterlist.WatcherConfig{
		Logger:    slogutil.NewDiscardLogger(),
		Loader:    newTestLoader(),
		Installer: blockfilter.NewEngine(&blockfilter.Config{}),
		Path:      "/nonexistent/dir/blacklist.json",
	})
	require.NoError(t, err)

	err = w.Start(context.Background())
	assert.Error(t, err)

	require.NoError(t, w.Shutdown(context.Background()))
}
