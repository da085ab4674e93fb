package fetcher

import (
	"context"
	"time"
)

type Stats struct {
	TotalRequests      int64   `json:"totalRequests"`
	SuccessfulRequests int64   `json:"successfulRequests"`
	CachedRequests     int64   `json:"cachedRequests"`
	FailedRequests     int64   `json:"failedRequests"`
	AvgResponseMs      float64 `json:"averageResponseTimeMs"`
	CacheSize          int     `json:"cacheSize"`
	QueueLength        int     `json:"queueLength"`
	HitRate            float64 `json:"cacheHitRate"`
	SuccessRate        float64 `json:"successRate"`
}

type Health struct {
	Healthy bool     `json:"healthy"`
	Issues  []string `json:"issues,omitempty"`
	Stats   Stats    `json:"stats"`
}

func (f *Fetcher) countTotal() {
	f.statsMu.Lock()
	f.stats.total++
	f.statsMu.Unlock()
}

func (f *Fetcher) countCached() {
	f.statsMu.Lock()
	f.stats.cached++
	f.statsMu.Unlock()
}

func (f *Fetcher) countSuccess() {
	f.statsMu.Lock()
	f.stats.successful++
	f.statsMu.Unlock()
}

func (f *Fetcher) countFailed() {
	f.statsMu.Lock()
	f.stats.failed++
	f.statsMu.Unlock()
}

// observe folds one network round trip into the running mean.
func (f *Fetcher) observe(d time.Duration) {
	ms := float64(d.Microseconds()) / 1000
	f.statsMu.Lock()
	f.stats.network++
	f.stats.avgMs += (ms - f.stats.avgMs) / float64(f.stats.network)
	f.statsMu.Unlock()
}

func (f *Fetcher) Stats(ctx context.Context) Stats {
	f.statsMu.Lock()
	c := f.stats
	f.statsMu.Unlock()

	st := Stats{
		TotalRequests:      c.total,
		SuccessfulRequests: c.successful,
		CachedRequests:     c.cached,
		FailedRequests:     c.failed,
		AvgResponseMs:      c.avgMs,
		QueueLength:        f.QueueLength(),
	}
	if f.cache != nil {
		if n, err := f.cache.Len(ctx); err == nil {
			st.CacheSize = n
		}
	}
	if c.total > 0 {
		st.HitRate = float64(c.cached) / float64(c.total)
		st.SuccessRate = float64(c.successful) / float64(c.total)
	}
	return st
}

func (f *Fetcher) ResetStats() {
	f.statsMu.Lock()
	f.stats = counters{}
	f.statsMu.Unlock()
}

// HealthCheck reports unhealthy when the queue or the cache reaches its
// limit.
func (f *Fetcher) HealthCheck(ctx context.Context) Health {
	st := f.Stats(ctx)
	h := Health{Healthy: true, Stats: st}
	if st.QueueLength >= f.healthQueue {
		h.Healthy = false
		h.Issues = append(h.Issues, "request queue too long")
	}
	if f.cache != nil && st.CacheSize >= f.maxEntries {
		h.Healthy = false
		h.Issues = append(h.Issues, "cache at capacity")
	}
	return h
}
