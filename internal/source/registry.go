package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"media-resolver-go/internal/debugger"
	"media-resolver-go/internal/metrics"
	"media-resolver-go/internal/video"
)

const (
	DefaultFailureThreshold = 5
	DefaultCooldown         = 5 * time.Minute
	DefaultWindow           = time.Minute
)

var (
	ErrUnknownSource   = errors.New("unknown source")
	ErrDuplicateSource = errors.New("source already registered")
)

type Options struct {
	// Now is the registry clock; nil means time.Now.
	Now              func() time.Time
	FailureThreshold int
	Cooldown         time.Duration
	Window           time.Duration
	Weights          ScoreWeights
	Debugger         *debugger.Debugger
}

type entry struct {
	cfg           Config
	enabled       bool
	successRate   float64
	failureCount  int
	avgResponse   time.Duration
	requests      int64
	successes     int64
	lastUsed      time.Time
	disabledUntil time.Time
	windowStart   time.Time
	windowCount   int
	lastErr       string
}

type Registry struct {
	opts Options

	mu      sync.Mutex
	entries map[string]*entry
}

func NewRegistry(opts Options, sources ...Config) (*Registry, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = DefaultFailureThreshold
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Weights == (ScoreWeights{}) {
		opts.Weights = DefaultWeights
	}
	r := &Registry{opts: opts, entries: map[string]*entry{}}
	for _, cfg := range sources {
		if err := r.Add(cfg); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add registers a source. Unset fields take the package defaults.
func (r *Registry) Add(cfg Config) error {
	cfg.Name = strings.ToLower(strings.TrimSpace(cfg.Name))
	if cfg.Name == "" {
		return errors.New("source name is required")
	}
	if cfg.Fetch == nil {
		return fmt.Errorf("source %s: fetch func is required", cfg.Name)
	}
	cfg = cfg.withDefaults()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[cfg.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSource, cfg.Name)
	}
	r.entries[cfg.Name] = &entry{cfg: cfg, enabled: !cfg.Disabled, successRate: InitialSuccessRate}
	return nil
}

// Toggle enables or disables a source by hand. Enabling clears any breaker
// cooldown.
func (r *Registry) Toggle(name string, enabled bool) error {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	e.enabled = enabled
	e.disabledUntil = time.Time{}
	if enabled {
		e.failureCount = 0
	}
	metrics.SourceBreakerOpen.WithLabelValues(name).Set(0)
	return nil
}

// ResetStats restores every source to its initial health. Sources disabled
// in their Config stay disabled.
func (r *Registry) ResetStats() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, e := range r.entries {
		*e = entry{cfg: e.cfg, enabled: !e.cfg.Disabled, successRate: InitialSuccessRate}
		metrics.SourceBreakerOpen.WithLabelValues(name).Set(0)
	}
}

// HasIDlessSource reports whether any enabled source can run without an id.
func (r *Registry) HasIDlessSource() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recoverLocked(r.opts.Now())
	for _, e := range r.entries {
		if e.enabled && !e.cfg.NeedsID {
			return true
		}
	}
	return false
}

// Status returns a snapshot of every source in current try order, with
// disabled sources last.
func (r *Registry) Status() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.opts.Now()
	r.recoverLocked(now)

	out := make([]Status, 0, len(r.entries))
	for _, e := range r.sortedLocked(func(*entry) bool { return true }) {
		used := e.windowCount
		if now.Sub(e.windowStart) >= r.opts.Window {
			used = 0
		}
		out = append(out, Status{
			Name:          e.cfg.Name,
			Priority:      e.cfg.Priority,
			RateLimit:     e.cfg.RateLimit,
			TimeoutMs:     e.cfg.Timeout.Milliseconds(),
			NeedsID:       e.cfg.NeedsID,
			Enabled:       e.enabled,
			SuccessRate:   e.successRate,
			FailureCount:  e.failureCount,
			AvgResponseMs: float64(e.avgResponse) / float64(time.Millisecond),
			Requests:      e.requests,
			Successes:     e.successes,
			WindowUsed:    used,
			Score:         r.score(e),
			LastUsed:      e.lastUsed,
			DisabledUntil: e.disabledUntil,
			LastError:     e.lastErr,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Enabled && !out[j].Enabled })
	return out
}

func (r *Registry) score(e *entry) float64 {
	return float64(e.cfg.Priority) +
		(1-e.successRate)*r.opts.Weights.SuccessRate +
		float64(e.failureCount)*r.opts.Weights.Failures
}

// recoverLocked re-enables breaker-disabled sources whose cooldown has
// passed.
func (r *Registry) recoverLocked(now time.Time) {
	for name, e := range r.entries {
		if e.enabled || e.disabledUntil.IsZero() || now.Before(e.disabledUntil) {
			continue
		}
		e.enabled = true
		e.failureCount = 0
		e.disabledUntil = time.Time{}
		metrics.SourceBreakerOpen.WithLabelValues(name).Set(0)
		r.opts.Debugger.Log(context.Background(), slog.LevelInfo, "source recovered", map[string]any{"source": name})
	}
}

func (r *Registry) sortedLocked(keep func(*entry) bool) []*entry {
	out := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := r.score(out[i]), r.score(out[j])
		if si != sj {
			return si < sj
		}
		if out[i].cfg.Priority != out[j].cfg.Priority {
			return out[i].cfg.Priority < out[j].cfg.Priority
		}
		return out[i].cfg.Name < out[j].cfg.Name
	})
	return out
}

func (r *Registry) candidates(id string) []Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recoverLocked(r.opts.Now())
	entries := r.sortedLocked(func(e *entry) bool {
		return e.enabled && (id != "" || !e.cfg.NeedsID)
	})
	out := make([]Config, len(entries))
	for i, e := range entries {
		out[i] = e.cfg
	}
	return out
}

// allow applies the fixed-window rate limit and reserves a slot on success.
func (r *Registry) allow(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return false
	}
	now := r.opts.Now()
	if e.windowStart.IsZero() || now.Sub(e.windowStart) >= r.opts.Window {
		e.windowStart = now
		e.windowCount = 0
	}
	if e.windowCount >= e.cfg.RateLimit {
		return false
	}
	e.windowCount++
	return true
}

func (r *Registry) recordSuccess(name string, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return
	}
	e.requests++
	e.successes++
	e.lastUsed = r.opts.Now()
	e.lastErr = ""
	e.successRate = e.successRate*0.9 + 0.1
	if e.failureCount > 0 {
		e.failureCount--
	}
	if e.avgResponse == 0 {
		e.avgResponse = elapsed
	} else {
		e.avgResponse = time.Duration(float64(e.avgResponse)*0.8 + float64(elapsed)*0.2)
	}
}

func (r *Registry) recordFailure(ctx context.Context, name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return
	}
	now := r.opts.Now()
	e.requests++
	e.lastUsed = now
	e.lastErr = err.Error()
	e.successRate *= 0.9
	e.failureCount++
	if e.enabled && e.failureCount >= r.opts.FailureThreshold {
		e.enabled = false
		e.disabledUntil = now.Add(r.opts.Cooldown)
		metrics.SourceBreakerOpen.WithLabelValues(name).Set(1)
		r.opts.Debugger.Log(ctx, slog.LevelWarn, "source disabled", map[string]any{
			"source":         name,
			"failures":       e.failureCount,
			"disabled_until": e.disabledUntil.Format(time.RFC3339),
		})
	}
}

// Resolve tries sources in score order and returns the first record with a
// content id. When every candidate fails or is rate limited the error is a
// video.Error of kind all_sources_exhausted listing what was tried.
func (r *Registry) Resolve(ctx context.Context, id, fullURL string) (video.Record, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var attempted, skipped []string
	var lastErr error

	for _, cfg := range r.candidates(id) {
		if err := ctx.Err(); err != nil {
			return video.Record{}, video.Error{Kind: video.KindOf(err), Msg: "resolution canceled", Err: err, Attempted: attempted, Skipped: skipped}
		}
		if !r.allow(cfg.Name) {
			skipped = append(skipped, cfg.Name)
			metrics.SourceAttemptsTotal.WithLabelValues(cfg.Name, "rate_limited").Inc()
			r.opts.Debugger.Log(ctx, slog.LevelDebug, "source rate limited", map[string]any{"source": cfg.Name})
			continue
		}
		attempted = append(attempted, cfg.Name)

		rec, elapsed, err := r.invoke(ctx, cfg, id, fullURL)
		metrics.SourceLatencySeconds.WithLabelValues(cfg.Name).Observe(elapsed.Seconds())
		if err == nil && rec.ContentID == "" {
			err = video.Error{Kind: video.ErrorKindEmptyResult, Source: cfg.Name, Msg: "record has no content id"}
		}
		if err == nil {
			r.recordSuccess(cfg.Name, elapsed)
			metrics.SourceAttemptsTotal.WithLabelValues(cfg.Name, "success").Inc()
			if rec.Source == "" {
				rec.Source = cfg.Name
			}
			return rec, nil
		}
		if ctx.Err() != nil {
			// The caller gave up; this is not the source's fault.
			return video.Record{}, video.Error{Kind: video.KindOf(ctx.Err()), Msg: "resolution canceled", Err: ctx.Err(), Attempted: attempted, Skipped: skipped}
		}

		lastErr = err
		r.recordFailure(ctx, cfg.Name, err)
		metrics.SourceAttemptsTotal.WithLabelValues(cfg.Name, "failure").Inc()
		r.opts.Debugger.Log(ctx, slog.LevelWarn, "source failed", map[string]any{
			"source": cfg.Name,
			"kind":   string(video.KindOf(err)),
			"err":    err.Error(),
		})
	}

	msg := "all sources exhausted"
	if len(attempted) == 0 && len(skipped) == 0 {
		msg = "no enabled source can handle this request"
	} else if len(attempted) > 0 {
		msg = fmt.Sprintf("all sources exhausted (attempted: %s)", strings.Join(attempted, ", "))
	}
	return video.Record{}, video.Error{
		Kind:      video.ErrorKindAllSourcesExhausted,
		Msg:       msg,
		Err:       lastErr,
		Attempted: attempted,
		Skipped:   skipped,
	}
}

func (r *Registry) invoke(ctx context.Context, cfg Config, id, fullURL string) (rec video.Record, elapsed time.Duration, err error) {
	callCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	start := r.opts.Now()
	defer func() {
		elapsed = r.opts.Now().Sub(start)
		if p := recover(); p != nil {
			err = video.Error{Kind: video.ErrorKindUnknown, Source: cfg.Name, Msg: fmt.Sprintf("source panicked: %v", p)}
		}
	}()
	rec, err = cfg.Fetch(callCtx, id, fullURL)
	if err != nil && callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		err = video.Error{Kind: video.ErrorKindTimeout, Source: cfg.Name, Msg: "source timed out", Err: err}
	}
	return rec, elapsed, err
}
