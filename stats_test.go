package blockfilter_test

import (
	"sync"
	"testing"

	"github.com/netinterceptor/blockfilter"
	"github.com/stretchr/testify/assert"
)

func TestStats(t *testing.T) {
	t.Parallel()

	s := &blockfilter.Stats{}
	assert.Equal(t, blockfilter.StatsSnapshot{}, s.Snapshot())

	const n = 1000

	wg := &sync.WaitGroup{}
	for range n {
		wg.Add(2)
		go func() {
			defer wg.Done()

			s.IncBlocked()
		}()
		go func() {
			defer wg.Done()

			s.IncAllowed()
		}()
	}

	wg.Wait()

	snap := s.Snapshot()
	assert.Equal(t, blockfilter.StatsSnapshot{Blocked: n, Allowed: n}, snap)
	assert.Equal(t, uint64(2*n), snap.Total())
}
