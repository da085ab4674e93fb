package logger

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// captureHandler copies each record into the in-memory journal as an Event
// before passing it on. Attributes bound through WithAttrs are resolved once
// into base; records clone it.
type captureHandler struct {
	next   slog.Handler
	base   map[string]any
	groups []string
}

func newCaptureHandler(next slog.Handler) slog.Handler {
	return &captureHandler{next: next, base: map[string]any{}}
}

func (h *captureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *captureHandler) Handle(ctx context.Context, r slog.Record) error {
	err := h.next.Handle(ctx, r)

	attrs := cloneAttrMap(h.base)
	dst := groupMap(attrs, h.groups)
	r.Attrs(func(a slog.Attr) bool {
		putAttr(dst, a)
		return true
	})
	evt := Event{
		Level: r.Level.String(),
		Msg:   r.Message,
		level: r.Level,
	}
	if !r.Time.IsZero() {
		evt.Time = r.Time.UTC().Format(time.RFC3339Nano)
	}
	if id, ok := attrs["trace_id"].(string); ok {
		evt.TraceID = id
	}
	if len(attrs) > 0 {
		evt.Attrs = attrs
	}
	events.append(evt)
	return err
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	base := cloneAttrMap(h.base)
	dst := groupMap(base, h.groups)
	for _, a := range attrs {
		putAttr(dst, a)
	}
	return &captureHandler{next: h.next.WithAttrs(attrs), base: base, groups: h.groups}
}

func (h *captureHandler) WithGroup(name string) slog.Handler {
	if strings.TrimSpace(name) == "" {
		return h
	}
	groups := append(append([]string(nil), h.groups...), name)
	return &captureHandler{next: h.next.WithGroup(name), base: h.base, groups: groups}
}

func groupMap(m map[string]any, groups []string) map[string]any {
	for _, g := range groups {
		sub, ok := m[g].(map[string]any)
		if !ok {
			sub = map[string]any{}
			m[g] = sub
		}
		m = sub
	}
	return m
}

func cloneAttrMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sub, ok := v.(map[string]any); ok {
			v = cloneAttrMap(sub)
		}
		out[k] = v
	}
	return out
}

func putAttr(m map[string]any, a slog.Attr) {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		group := v.Group()
		if len(group) == 0 {
			return
		}
		dst := m
		if a.Key != "" {
			dst = groupMap(m, []string{a.Key})
		}
		for _, ga := range group {
			putAttr(dst, ga)
		}
	case slog.KindTime:
		m[a.Key] = v.Time().UTC().Format(time.RFC3339Nano)
	case slog.KindDuration:
		m[a.Key] = v.Duration().String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			m[a.Key] = err.Error()
			return
		}
		m[a.Key] = v.Any()
	default:
		if a.Key != "" {
			m[a.Key] = v.Any()
		}
	}
}
