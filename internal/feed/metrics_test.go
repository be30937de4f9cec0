package feed

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIngestCounters(t *testing.T) {
	t.Run("snapshot reflects stored and failed events", func(t *testing.T) {
		c := newIngestCounters()

		c.markStored(100 * time.Millisecond)
		c.markStored(300 * time.Millisecond)
		c.markFailed()

		stats := c.snapshot()
		assert.Equal(t, int64(2), stats.Stored)
		assert.Equal(t, int64(1), stats.Failed)
		assert.Equal(t, int64(200), stats.AvgLatencyMs)
		assert.Greater(t, stats.UptimeSeconds, 0.0)
	})

	t.Run("empty counters snapshot to zeros", func(t *testing.T) {
		stats := newIngestCounters().snapshot()
		assert.Zero(t, stats.Stored)
		assert.Zero(t, stats.Failed)
		assert.Zero(t, stats.AvgLatencyMs)
		assert.Zero(t, stats.PerSecond)
	})

	t.Run("concurrent workers keep an exact count", func(t *testing.T) {
		c := newIngestCounters()

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.markStored(time.Millisecond)
				c.markFailed()
			}()
		}
		wg.Wait()

		stats := c.snapshot()
		assert.Equal(t, int64(50), stats.Stored)
		assert.Equal(t, int64(50), stats.Failed)
	})
}
