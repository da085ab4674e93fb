package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"media-resolver-go/internal/video"
)

// SQLStore backs history with sqlite, mysql or postgres.
type SQLStore struct {
	db   *sql.DB
	kind backendKind
}

func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = "data/media_resolver.db"
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	return OpenSQL(ctx, backendSQLite, path)
}

func OpenSQL(ctx context.Context, kind backendKind, dsn string) (*SQLStore, error) {
	driver := map[backendKind]string{
		backendSQLite:   "sqlite",
		backendMySQL:    "mysql",
		backendPostgres: "pgx",
	}[kind]
	if driver == "" {
		return nil, fmt.Errorf("unsupported sql backend: %s", kind)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if kind == backendSQLite {
		setDBPoolDefaults(db, 1)
		for _, pragma := range []string{`PRAGMA busy_timeout = 5000;`, `PRAGMA journal_mode = WAL;`} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
	} else {
		setDBPoolDefaults(db, 8)
		db.SetConnMaxIdleTime(2 * time.Minute)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &SQLStore{db: db, kind: kind}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) initSchema(ctx context.Context) error {
	var stmts []string
	switch s.kind {
	case backendMySQL:
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS resolutions (
				trace_id VARCHAR(64) NOT NULL,
				platform VARCHAR(32) NOT NULL,
				content_id VARCHAR(32) NOT NULL,
				success TINYINT NOT NULL,
				error_kind VARCHAR(64) NOT NULL,
				source VARCHAR(64) NOT NULL,
				data_json LONGTEXT NOT NULL,
				created_at BIGINT NOT NULL,
				PRIMARY KEY (trace_id),
				KEY idx_resolutions_created (created_at)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`,
			`CREATE TABLE IF NOT EXISTS videos (
				platform VARCHAR(32) NOT NULL,
				content_id VARCHAR(32) NOT NULL,
				data_json LONGTEXT NOT NULL,
				updated_at BIGINT NOT NULL,
				PRIMARY KEY (platform, content_id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`,
		}
	default:
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS resolutions (
				trace_id TEXT NOT NULL PRIMARY KEY,
				platform TEXT NOT NULL,
				content_id TEXT NOT NULL,
				success INTEGER NOT NULL,
				error_kind TEXT NOT NULL,
				source TEXT NOT NULL,
				data_json TEXT NOT NULL,
				created_at BIGINT NOT NULL
			);`,
			`CREATE INDEX IF NOT EXISTS idx_resolutions_created ON resolutions(created_at);`,
			`CREATE TABLE IF NOT EXISTS videos (
				platform TEXT NOT NULL,
				content_id TEXT NOT NULL,
				data_json TEXT NOT NULL,
				updated_at BIGINT NOT NULL,
				PRIMARY KEY (platform, content_id)
			);`,
		}
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s init schema: %w", s.kind, err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders for the backend.
func (s *SQLStore) rebind(q string) string {
	if s.kind != backendPostgres {
		return q
	}
	var b strings.Builder
	idx := 0
	for _, r := range q {
		if r == '?' {
			idx++
			b.WriteString(placeholder(s.kind, idx))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func placeholder(k backendKind, idx int) string {
	if k == backendPostgres {
		return fmt.Sprintf("$%d", idx)
	}
	return "?"
}

func setDBPoolDefaults(db *sql.DB, maxOpen int) {
	if db == nil {
		return
	}
	if maxOpen <= 0 {
		maxOpen = 4
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(0)
}

func (s *SQLStore) upsertVideoSQL() string {
	if s.kind == backendMySQL {
		return `INSERT INTO videos(platform, content_id, data_json, updated_at) VALUES(?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE data_json=VALUES(data_json), updated_at=VALUES(updated_at);`
	}
	return s.rebind(`INSERT INTO videos(platform, content_id, data_json, updated_at)
		 VALUES(?, ?, ?, ?)
		 ON CONFLICT(platform, content_id)
		 DO UPDATE SET data_json=excluded.data_json, updated_at=excluded.updated_at;`)
}

func (s *SQLStore) SaveResolution(ctx context.Context, e Entry) error {
	if err := prepareEntry(&e); err != nil {
		return err
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	success := 0
	if e.Success {
		success = 1
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		s.rebind(`INSERT INTO resolutions(trace_id, platform, content_id, success, error_kind, source, data_json, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?);`),
		e.TraceID, e.Platform, e.ContentID, success, e.ErrorKind, e.Source, string(b), e.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return err
	}

	if e.Success && e.ContentID != "" && e.Result.Record != nil {
		rec := *e.Result.Record
		rec.ContentID = e.ContentID
		rb, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.upsertVideoSQL(), e.Platform, e.ContentID, string(rb), e.CreatedAt.Unix()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT data_json FROM resolutions ORDER BY created_at DESC LIMIT ?;`),
		clampLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decode resolution: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLStore) Video(ctx context.Context, platform, contentID string) (video.Record, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT data_json FROM videos WHERE platform=? AND content_id=?;`),
		platform, contentID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return video.Record{}, false, nil
	}
	if err != nil {
		return video.Record{}, false, err
	}
	var rec video.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return video.Record{}, false, fmt.Errorf("decode video: %w", err)
	}
	return rec, true, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
