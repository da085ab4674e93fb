// Package debugger emits per-stage telemetry for link resolutions. All
// methods are safe on a nil *Debugger, which records nothing.
package debugger

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"media-resolver-go/internal/logger"
)

type Debugger struct {
	enabled   bool
	sessionID string
	startedAt time.Time

	mu    sync.Mutex
	spans map[string]*spanStats
}

type spanStats struct {
	count int
	total time.Duration
	max   time.Duration
}

type SpanSummary struct {
	Count   int     `json:"count"`
	TotalMs float64 `json:"totalMs"`
	AvgMs   float64 `json:"avgMs"`
	MaxMs   float64 `json:"maxMs"`
}

type Stats struct {
	SessionID string                 `json:"sessionId"`
	Enabled   bool                   `json:"enabled"`
	UptimeSec float64                `json:"uptimeSec"`
	Levels    map[string]int         `json:"levels"`
	Spans     map[string]SpanSummary `json:"spans"`
}

func New(enabled bool) *Debugger {
	id := uuid.NewString()
	return &Debugger{
		enabled:   enabled,
		sessionID: id,
		startedAt: time.Now(),
		spans:     map[string]*spanStats{},
	}
}

func (d *Debugger) SessionID() string {
	if d == nil {
		return ""
	}
	return d.sessionID
}

func (d *Debugger) Enabled() bool {
	return d != nil && d.enabled
}

// Log writes msg at level with data flattened into attributes. Sensitive
// keys are masked by the logger. Errors are always written; other levels
// only when the debugger is enabled.
func (d *Debugger) Log(ctx context.Context, level slog.Level, msg string, data map[string]any) {
	if d == nil {
		return
	}
	if !d.enabled && level < slog.LevelError {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(data)*2+6)
	args = append(args, "component", "debugger", "session_id", d.sessionID)
	if tid := TraceID(ctx); tid != "" {
		args = append(args, "trace_id", tid)
	}
	for _, k := range keys {
		args = append(args, k, data[k])
	}
	slog.Default().Log(ctx, level, msg, args...)
}

func (d *Debugger) IDExtraction(ctx context.Context, url, id string) {
	d.Log(ctx, slog.LevelDebug, "id extraction", map[string]any{
		"url":     url,
		"id":      id,
		"success": id != "",
	})
}

func (d *Debugger) APIRequest(ctx context.Context, source, url string, headers map[string]string) {
	hdr := make(map[string]any, len(headers))
	for k, v := range headers {
		hdr[k] = v
	}
	d.Log(ctx, slog.LevelDebug, "api request", map[string]any{
		"source":  source,
		"url":     url,
		"headers": logger.RedactMap(hdr),
	})
}

func (d *Debugger) APIResponse(ctx context.Context, source string, status int, elapsed time.Duration, err error) {
	level := slog.LevelDebug
	data := map[string]any{
		"source":     source,
		"status":     status,
		"elapsed_ms": elapsed.Milliseconds(),
	}
	if err != nil {
		level = slog.LevelWarn
		data["err"] = err.Error()
	}
	d.Log(ctx, level, "api response", data)
}

func (d *Debugger) DataParsing(ctx context.Context, source string, fields map[string]any, err error) {
	data := map[string]any{"source": source, "success": err == nil}
	for k, v := range fields {
		data[k] = v
	}
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelWarn
		data["err"] = err.Error()
	}
	d.Log(ctx, level, "data parsing", data)
}

// CacheEvent logs a cache operation. Only a digest of the cache key is
// recorded.
func (d *Debugger) CacheEvent(ctx context.Context, op, cacheKey string, hit bool) {
	d.Log(ctx, slog.LevelDebug, "cache "+op, map[string]any{
		"entry": HashKey(cacheKey),
		"hit":   hit,
	})
}

func (d *Debugger) NetworkError(ctx context.Context, source, url string, err error) {
	if err == nil {
		return
	}
	d.Log(ctx, slog.LevelError, "network error", map[string]any{
		"source": source,
		"url":    url,
		"err":    err.Error(),
	})
}

// StartSpan starts timing name; the returned func stops it and reports the
// elapsed time.
func (d *Debugger) StartSpan(name string) func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		elapsed := time.Since(start)
		if d == nil {
			return elapsed
		}
		d.mu.Lock()
		st := d.spans[name]
		if st == nil {
			st = &spanStats{}
			d.spans[name] = st
		}
		st.count++
		st.total += elapsed
		if elapsed > st.max {
			st.max = elapsed
		}
		d.mu.Unlock()
		d.Log(context.Background(), slog.LevelDebug, "span", map[string]any{
			"span":       name,
			"elapsed_ms": float64(elapsed.Microseconds()) / 1000,
		})
		return elapsed
	}
}

func (d *Debugger) Stats() Stats {
	if d == nil {
		return Stats{}
	}
	d.mu.Lock()
	spans := make(map[string]SpanSummary, len(d.spans))
	for name, st := range d.spans {
		sum := SpanSummary{
			Count:   st.count,
			TotalMs: ms(st.total),
			MaxMs:   ms(st.max),
		}
		if st.count > 0 {
			sum.AvgMs = ms(st.total / time.Duration(st.count))
		}
		spans[name] = sum
	}
	d.mu.Unlock()
	return Stats{
		SessionID: d.sessionID,
		Enabled:   d.enabled,
		UptimeSec: time.Since(d.startedAt).Seconds(),
		Levels:    logger.LevelCounts(),
		Spans:     spans,
	}
}

func (d *Debugger) ResetSpans() {
	if d == nil {
		return
	}
	d.mu.Lock()
	d.spans = map[string]*spanStats{}
	d.mu.Unlock()
}

func HashKey(key string) string {
	return strconv.FormatUint(xxhash.Sum64String(key), 36)
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
