package middleware

import (
	"net/http"
	"time"

	"leavehub/internal/platform/metrics"
)

// Metrics records response status and latency for every request. A nil
// collector disables recording without changing the handler chain.
func Metrics(c *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if c == nil {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)
			c.Record(recorder.status, time.Since(start))
		})
	}
}
