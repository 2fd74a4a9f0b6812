package metrics

import (
	"sync/atomic"
	"time"
)

// Collector keeps process-wide request counters. All counters are atomic so
// the HTTP middleware can record from concurrent requests without locking.
type Collector struct {
	startedAt       time.Time
	totalRequests   uint64
	errorRequests   uint64
	rateLimited     uint64
	totalDurationMs uint64
}

func New() *Collector {
	return &Collector{startedAt: time.Now()}
}

// Record counts one finished request. Statuses >= 500 count as errors and
// 429 responses are tracked separately so rate-limit pressure is visible.
func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	if status == 429 {
		atomic.AddUint64(&c.rateLimited, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

// Snapshot returns the current counters in a shape ready for JSON encoding.
func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	errs := atomic.LoadUint64(&c.errorRequests)
	limited := atomic.LoadUint64(&c.rateLimited)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}
	return map[string]any{
		"uptimeSeconds":    int64(time.Since(c.startedAt).Seconds()),
		"requestsTotal":    total,
		"errorsTotal":      errs,
		"rateLimitedTotal": limited,
		"avgDurationMs":    avg,
		"totalDurationMs":  totalMs,
	}
}
