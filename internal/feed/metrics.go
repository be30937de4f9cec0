package feed

import (
	"sync/atomic"
	"time"
)

// ingestStats is a point-in-time snapshot of feed throughput. Workers keep
// counting while a snapshot is taken.
type ingestStats struct {
	Stored        int64
	Failed        int64
	PerSecond     float64
	AvgLatencyMs  int64
	UptimeSeconds float64
}

// ingestCounters tracks how many bank feed events the workers stored or
// failed, plus cumulative processing latency. One instance is shared across
// all workers; every update is atomic.
type ingestCounters struct {
	stored    int64
	failed    int64
	latencyNs int64
	startedAt time.Time
}

func newIngestCounters() *ingestCounters {
	return &ingestCounters{startedAt: time.Now()}
}

func (c *ingestCounters) markStored(latency time.Duration) {
	atomic.AddInt64(&c.stored, 1)
	atomic.AddInt64(&c.latencyNs, int64(latency))
}

func (c *ingestCounters) markFailed() {
	atomic.AddInt64(&c.failed, 1)
}

func (c *ingestCounters) snapshot() ingestStats {
	stored := atomic.LoadInt64(&c.stored)
	uptime := time.Since(c.startedAt).Seconds()

	stats := ingestStats{
		Stored:        stored,
		Failed:        atomic.LoadInt64(&c.failed),
		UptimeSeconds: uptime,
	}
	if uptime > 0 {
		stats.PerSecond = float64(stored) / uptime
	}
	if stored > 0 {
		avg := time.Duration(atomic.LoadInt64(&c.latencyNs) / stored)
		stats.AvgLatencyMs = avg.Milliseconds()
	}
	return stats
}
