// Package resolver runs the link resolution pipeline: normalize, extract the
// content id, then walk the source registry with an outer retry loop.
package resolver

import (
	"context"
	"log/slog"
	"time"

	"media-resolver-go/internal/debugger"
	"media-resolver-go/internal/extract"
	"media-resolver-go/internal/metrics"
	"media-resolver-go/internal/normalize"
	"media-resolver-go/internal/source"
	"media-resolver-go/internal/store"
	"media-resolver-go/internal/video"
)

const (
	DefaultMaxAttempts = 5
	DefaultRetryDelay  = time.Second
)

type Options struct {
	// Platform labels stored history entries.
	Platform    string
	MaxAttempts int
	// RetryDelay is multiplied by the attempt number between registry passes.
	RetryDelay time.Duration
	// Sleep waits between passes; it returns false when ctx ends first.
	Sleep    func(ctx context.Context, d time.Duration) bool
	Store    store.Store
	Debugger *debugger.Debugger
}

type Resolver struct {
	normalizer *normalize.Normalizer
	extractor  *extract.Extractor
	registry   *source.Registry
	opts       Options
}

func New(n *normalize.Normalizer, x *extract.Extractor, reg *source.Registry, opts Options) *Resolver {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	if opts.Sleep == nil {
		opts.Sleep = video.Sleep
	}
	if x == nil {
		x = extract.New()
	}
	return &Resolver{normalizer: n, extractor: x, registry: reg, opts: opts}
}

func (r *Resolver) Registry() *source.Registry {
	return r.registry
}

// Resolve never returns an error: every outcome, including invalid input,
// is reported through the Result.
func (r *Resolver) Resolve(ctx context.Context, input string) video.Result {
	ctx, traceID := debugger.WithTrace(ctx)
	stop := r.opts.Debugger.StartSpan("resolve")
	res := r.resolve(ctx, input)
	elapsed := stop()
	res.TraceID = traceID

	label := "success"
	if !res.Success {
		label = string(res.ErrorKind)
	}
	metrics.ResolutionsTotal.WithLabelValues(label).Inc()
	r.opts.Debugger.Log(ctx, slog.LevelInfo, "resolution finished", map[string]any{
		"success":    res.Success,
		"video_id":   res.VideoID,
		"error_kind": string(res.ErrorKind),
		"attempts":   res.Attempts,
		"elapsed_ms": elapsed.Milliseconds(),
	})
	r.save(ctx, input, res)
	return res
}

func (r *Resolver) resolve(ctx context.Context, input string) video.Result {
	link, err := r.normalizer.Normalize(ctx, input)
	if err != nil {
		return failure(err, nil, "", 0)
	}

	id, ok := r.extractor.Extract(link.NormalizedURL)
	r.opts.Debugger.IDExtraction(ctx, link.NormalizedURL, id)
	if !ok {
		if !r.registry.HasIDlessSource() {
			return failure(video.Error{
				Kind: video.ErrorKindIDExtractionFailed,
				URL:  link.NormalizedURL,
				Msg:  "no content id found in url",
			}, nil, "", 0)
		}
		id = ""
	}

	var attempted []string
	for attempt := 1; ; attempt++ {
		rec, err := r.registry.Resolve(ctx, id, link.NormalizedURL)
		attempted = appendUnique(attempted, video.AttemptedSources(err)...)
		if err == nil {
			return video.Result{Record: &rec, Success: true, VideoID: rec.ContentID, Attempts: attempt}
		}
		if attempt >= r.opts.MaxAttempts || !video.ShouldRetryResolve(err) {
			return failure(err, attempted, id, attempt)
		}
		delay := time.Duration(attempt) * r.opts.RetryDelay
		r.opts.Debugger.Log(ctx, slog.LevelWarn, "registry pass failed, retrying", map[string]any{
			"attempt":  attempt,
			"delay_ms": delay.Milliseconds(),
			"err":      err.Error(),
		})
		if !r.opts.Sleep(ctx, delay) {
			return failure(video.Error{Kind: video.KindOf(ctx.Err()), Msg: "resolution canceled", Err: ctx.Err()}, attempted, id, attempt)
		}
	}
}

// Expand normalizes input and reports the expanded link without contacting
// any source.
func (r *Resolver) Expand(ctx context.Context, input string) (video.ResolvedLink, string, error) {
	link, err := r.normalizer.Normalize(ctx, input)
	if err != nil {
		return link, "", err
	}
	id, _ := r.extractor.Extract(link.NormalizedURL)
	return link, id, nil
}

func (r *Resolver) save(ctx context.Context, input string, res video.Result) {
	if r.opts.Store == nil {
		return
	}
	e := store.Entry{
		TraceID:   res.TraceID,
		Platform:  r.opts.Platform,
		Input:     input,
		ContentID: res.VideoID,
		Success:   res.Success,
		ErrorKind: string(res.ErrorKind),
		Attempts:  res.Attempts,
		Result:    res,
		CreatedAt: time.Now().UTC(),
	}
	if res.Record != nil {
		e.Source = res.Record.Source
	}
	// A canceled request still gets its history row.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := r.opts.Store.SaveResolution(saveCtx, e); err != nil {
		r.opts.Debugger.Log(ctx, slog.LevelWarn, "save resolution failed", map[string]any{"err": err.Error()})
	}
}

func failure(err error, attempted []string, id string, attempts int) video.Result {
	return video.Result{
		Success:          false,
		Error:            err.Error(),
		ErrorKind:        video.KindOf(err),
		AttemptedSources: attempted,
		VideoID:          id,
		Attempts:         attempts,
	}
}

func appendUnique(dst []string, names ...string) []string {
	for _, n := range names {
		seen := false
		for _, d := range dst {
			if d == n {
				seen = true
				break
			}
		}
		if !seen {
			dst = append(dst, n)
		}
	}
	return dst
}
