package debugger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"media-resolver-go/internal/logger"
)

func initLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	if err := logger.Init(logger.Options{Level: "debug", Format: "json", Output: &buf}); err != nil {
		t.Fatalf("logger.Init: %v", err)
	}
	logger.Clear()
	return &buf
}

func TestDebuggerRedactsHeaders(t *testing.T) {
	buf := initLogs(t)
	d := New(true)
	ctx, trace := WithTrace(context.Background())

	d.APIRequest(ctx, "web", "https://www.douyin.com/aweme/v1/web/aweme/detail/", map[string]string{
		"Cookie":     "ttwid=secret",
		"User-Agent": "ua",
	})

	out := buf.String()
	if strings.Contains(out, "ttwid=secret") {
		t.Fatalf("cookie leaked: %s", out)
	}
	if !strings.Contains(out, d.SessionID()) {
		t.Fatalf("session id missing: %s", out)
	}
	evts := logger.Recent(1)
	if len(evts) != 1 || evts[0].TraceID != trace {
		t.Fatalf("trace not propagated: %#v", evts)
	}
}

func TestDisabledDebuggerOnlyLogsErrors(t *testing.T) {
	buf := initLogs(t)
	d := New(false)

	d.IDExtraction(context.Background(), "https://x", "123")
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %s", buf.String())
	}
	d.NetworkError(context.Background(), "mobile", "https://x", errors.New("boom"))
	if !strings.Contains(buf.String(), "boom") {
		t.Fatalf("expected error output, got %s", buf.String())
	}
}

func TestNilDebuggerIsNoop(t *testing.T) {
	var d *Debugger
	d.Log(context.Background(), slog.LevelError, "x", nil)
	d.CacheEvent(context.Background(), "hit", "GET:https://x", true)
	stop := d.StartSpan("noop")
	if stop() < 0 {
		t.Fatalf("negative duration")
	}
	if d.SessionID() != "" || d.Enabled() {
		t.Fatalf("nil debugger should report empty state")
	}
}

func TestSpansAndStats(t *testing.T) {
	initLogs(t)
	d := New(true)

	for i := 0; i < 3; i++ {
		stop := d.StartSpan("resolve")
		stop()
	}
	st := d.Stats()
	if st.Spans["resolve"].Count != 3 {
		t.Fatalf("span count = %d", st.Spans["resolve"].Count)
	}
	if st.Levels["DEBUG"] != 3 {
		t.Fatalf("level counts = %#v", st.Levels)
	}
	d.ResetSpans()
	if len(d.Stats().Spans) != 0 {
		t.Fatalf("spans not reset")
	}
}

func TestCacheEventHashesKey(t *testing.T) {
	buf := initLogs(t)
	d := New(true)
	key := "GET:https://www.iesdouyin.com/web/api/v2/aweme/iteminfo/?item_ids=7525082444551310602"
	d.CacheEvent(context.Background(), "hit", key, true)
	if strings.Contains(buf.String(), "iteminfo") {
		t.Fatalf("raw cache key leaked: %s", buf.String())
	}
	if !strings.Contains(buf.String(), HashKey(key)) {
		t.Fatalf("digest missing: %s", buf.String())
	}
}

func TestExport(t *testing.T) {
	initLogs(t)
	logger.Info("exported", "source", "web")

	b, ct, err := Export("json", 10)
	if err != nil {
		t.Fatalf("Export json: %v", err)
	}
	if !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("content type = %s", ct)
	}
	var evts []logger.Event
	if err := json.Unmarshal(b, &evts); err != nil || len(evts) != 1 {
		t.Fatalf("decode export: %v (%d)", err, len(evts))
	}

	txt, _, err := Export("text", 10)
	if err != nil {
		t.Fatalf("Export text: %v", err)
	}
	if !strings.Contains(string(txt), "exported source=web") {
		t.Fatalf("text export = %q", txt)
	}

	if _, _, err := Export("xml", 10); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}
