package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"media-resolver-go/internal/config"
	"media-resolver-go/internal/video"
)

func sampleEntries() []Entry {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	ok := Entry{
		TraceID:   "t-1",
		Platform:  "douyin",
		Input:     "https://v.douyin.com/abc123/",
		ContentID: "7471165520058862848",
		Success:   true,
		Source:    "official_v2",
		Attempts:  1,
		Result: video.Result{
			Record:  &video.Record{ContentID: "7471165520058862848", Title: "first", Tags: []string{}},
			Success: true,
			VideoID: "7471165520058862848",
		},
		CreatedAt: base,
	}
	again := ok
	again.TraceID = "t-2"
	again.Result.Record = &video.Record{ContentID: "7471165520058862848", Title: "second", Tags: []string{}}
	again.CreatedAt = base.Add(time.Minute)

	failed := Entry{
		TraceID:   "t-3",
		Platform:  "douyin",
		Input:     "hello",
		ErrorKind: string(video.ErrorKindNoLinkFound),
		Result:    video.Result{Success: false, Error: "no link", ErrorKind: video.ErrorKindNoLinkFound},
		CreatedAt: base.Add(2 * time.Minute),
	}
	return []Entry{ok, again, failed}
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	for _, e := range sampleEntries() {
		if err := s.SaveResolution(ctx, e); err != nil {
			t.Fatalf("SaveResolution(%s): %v", e.TraceID, err)
		}
	}

	recent, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 || recent[0].TraceID != "t-3" || recent[1].TraceID != "t-2" {
		t.Fatalf("Recent = %+v", recent)
	}
	if recent[0].Result.ErrorKind != video.ErrorKindNoLinkFound {
		t.Fatalf("failure result not preserved: %+v", recent[0].Result)
	}

	rec, ok, err := s.Video(ctx, "douyin", "7471165520058862848")
	if err != nil || !ok {
		t.Fatalf("Video: ok=%v err=%v", ok, err)
	}
	if rec.Title != "second" || rec.ContentID != "7471165520058862848" {
		t.Fatalf("Video = %+v", rec)
	}
	if _, ok, err := s.Video(ctx, "douyin", "1234567890"); ok || err != nil {
		t.Fatalf("missing video ok=%v err=%v", ok, err)
	}

	if err := s.SaveResolution(ctx, Entry{Input: "x"}); err == nil {
		t.Fatalf("expected error for entry without platform")
	}
}

func TestFileStore(t *testing.T) {
	s := NewFileStore(t.TempDir())
	exerciseStore(t, s)
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "data", "resolver.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	exerciseStore(t, s)
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Default()
	s, err := NewFromConfig(context.Background(), cfg)
	if err != nil || s != nil {
		t.Fatalf("none backend = %v, %v", s, err)
	}

	cfg.StoreBackend = "file"
	cfg.DataDir = t.TempDir()
	s, err = NewFromConfig(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*FileStore); !ok {
		t.Fatalf("file backend = %T", s)
	}

	cfg.StoreBackend = "mysql"
	cfg.MySQLDSN = ""
	if _, err := NewFromConfig(context.Background(), cfg); err == nil || !strings.Contains(err.Error(), "MYSQL_DSN") {
		t.Fatalf("mysql without dsn err=%v", err)
	}
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{kind: backendPostgres}
	if got := pg.rebind("a=? AND b=?"); got != "a=$1 AND b=$2" {
		t.Fatalf("rebind=%q", got)
	}
	lite := &SQLStore{kind: backendSQLite}
	if got := lite.rebind("a=?"); got != "a=?" {
		t.Fatalf("rebind=%q", got)
	}
}
