package main

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/netinterceptor/blockfilter"
	"github.com/netinterceptor/blockfilter/rules"
	"github.com/stretchr/testify/assert"
)

func TestIdleMonitor_wait(t *testing.T) {
	t.Parallel()

	const idleTimeout = 50 * time.Millisecond

	t.Run("idle", func(t *testing.T) {
		t.Parallel()

		e := blockfilter.NewEngine(&blockfilter.Config{
			Logger:   slogutil.NewDiscardLogger(),
			Reporter: blockfilter.EmptyReporter{},
		})
		m := newIdleMonitor(slogutil.NewDiscardLogger(), e, idleTimeout)

		ctx := testutil.ContextWithTimeout(t, testTimeout)
		start := time.Now()

		assert.True(t, m.wait(ctx))
		assert.GreaterOrEqual(t, time.Since(start), idleTimeout)
	})

	t.Run("active", func(t *testing.T) {
		t.Parallel()

		e := blockfilter.NewEngine(&blockfilter.Config{
			Logger:   slogutil.NewDiscardLogger(),
			Reporter: blockfilter.EmptyReporter{},
		})
		m := newIdleMonitor(slogutil.NewDiscardLogger(), e, idleTimeout)

		// Keep the proxy busy for several timeouts.
		ctx, cancel := context.WithTimeout(context.Background(), 6*idleTimeout)
		t.Cleanup(cancel)

		go func() {
			req := rules.NewRequest("http://example.org/", "", http.MethodGet)
			for ctx.Err() == nil {
				_ = e.Decide(req)
				time.Sleep(idleTimeout / 10)
			}
		}()

		assert.False(t, m.wait(ctx))
	})
}

func TestNewIdleMonitor_interval(t *testing.T) {
	t.Parallel()

	m := newIdleMonitor(slogutil.NewDiscardLogger(), nil, time.Hour)
	assert.Equal(t, maxIdleCheckInterval, m.interval)

	m = newIdleMonitor(slogutil.NewDiscardLogger(), nil, time.Minute)
	assert.Equal(t, 15*time.Second, m.interval)
}
