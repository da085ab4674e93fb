package debugger

import (
	"context"

	"github.com/google/uuid"
)

type traceKey struct{}

// WithTrace attaches a fresh trace id to ctx unless one is already present.
func WithTrace(ctx context.Context) (context.Context, string) {
	if ctx == nil {
		ctx = context.Background()
	}
	if id := TraceID(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return context.WithValue(ctx, traceKey{}, id), id
}

func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}
