package resolver

import (
	"context"

	"media-resolver-go/internal/video"
)

// MaxBatchConcurrency caps parallel resolutions in one batch. The fetcher
// still serializes the underlying network calls.
const MaxBatchConcurrency = 8

type BatchResult struct {
	Results      []video.Result `json:"results"`
	Processed    int            `json:"processed"`
	Succeeded    int            `json:"succeeded"`
	Failed       int            `json:"failed"`
	FailureKinds map[string]int `json:"failureKinds,omitempty"`
}

// ResolveBatch resolves inputs with at most limit in flight. Results keep
// input order; inputs not started before ctx ends get a canceled result.
func (r *Resolver) ResolveBatch(ctx context.Context, inputs []string, limit int) BatchResult {
	if ctx == nil {
		ctx = context.Background()
	}
	if limit > MaxBatchConcurrency {
		limit = MaxBatchConcurrency
	}
	out := BatchResult{Results: make([]video.Result, len(inputs))}
	started := forEachLimit(ctx, len(inputs), limit, func(ctx context.Context, i int) {
		out.Results[i] = r.Resolve(ctx, inputs[i])
	})

	for i := range out.Results {
		if !started[i] {
			out.Results[i] = video.Result{
				Success:   false,
				Error:     "batch canceled before this input was processed",
				ErrorKind: video.ErrorKindCanceled,
			}
			continue
		}
		out.Processed++
		if out.Results[i].Success {
			out.Succeeded++
			continue
		}
		out.Failed++
		out.FailureKinds = mergeFailureKind(out.FailureKinds, out.Results[i].ErrorKind)
	}
	return out
}

// forEachLimit runs fn for indexes [0,n) on up to limit goroutines and
// reports which indexes were handed out before ctx ended.
func forEachLimit(ctx context.Context, n, limit int, fn func(context.Context, int)) []bool {
	started := make([]bool, n)
	if limit <= 1 {
		for i := 0; i < n; i++ {
			select {
			case <-ctx.Done():
				return started
			default:
			}
			started[i] = true
			fn(ctx, i)
		}
		return started
	}

	jobs := make(chan int)
	done := make(chan struct{}, limit)
	for w := 0; w < limit; w++ {
		go func() {
			for i := range jobs {
				fn(ctx, i)
				done <- struct{}{}
			}
		}()
	}

	processed := 0
	stopped := false
	for i := 0; i < n && !stopped; i++ {
		select {
		case <-ctx.Done():
			stopped = true
		case jobs <- i:
			started[i] = true
			processed++
		}
	}
	close(jobs)
	for i := 0; i < processed; i++ {
		<-done
	}
	return started
}

func mergeFailureKind(m map[string]int, kind video.ErrorKind) map[string]int {
	if kind == "" {
		kind = video.ErrorKindUnknown
	}
	if m == nil {
		m = make(map[string]int, 1)
	}
	m[string(kind)]++
	return m
}
