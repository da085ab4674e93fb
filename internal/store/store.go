// Package store persists resolution history and the latest record per
// content id.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"media-resolver-go/internal/config"
	"media-resolver-go/internal/video"
)

// Entry is one pipeline run.
type Entry struct {
	TraceID   string       `json:"traceId"`
	Platform  string       `json:"platform"`
	Input     string       `json:"input"`
	ContentID string       `json:"contentId,omitempty"`
	Success   bool         `json:"success"`
	ErrorKind string       `json:"errorKind,omitempty"`
	Source    string       `json:"source,omitempty"`
	Attempts  int          `json:"attempts"`
	Result    video.Result `json:"result"`
	CreatedAt time.Time    `json:"createdAt"`
}

type Store interface {
	// SaveResolution records e. Successful entries also replace the stored
	// record for their content id.
	SaveResolution(ctx context.Context, e Entry) error
	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)
	// Video returns the latest stored record for a content id.
	Video(ctx context.Context, platform, contentID string) (video.Record, bool, error)
	Close() error
}

type backendKind string

const (
	backendNone     backendKind = "none"
	backendFile     backendKind = "file"
	backendSQLite   backendKind = "sqlite"
	backendMySQL    backendKind = "mysql"
	backendPostgres backendKind = "postgres"
	backendMongoDB  backendKind = "mongodb"
)

func kindOf(cfg config.Config) backendKind {
	switch strings.ToLower(strings.TrimSpace(cfg.StoreBackend)) {
	case "file", "json":
		return backendFile
	case "sqlite":
		return backendSQLite
	case "mysql":
		return backendMySQL
	case "postgres", "postgresql":
		return backendPostgres
	case "mongodb", "mongo":
		return backendMongoDB
	default:
		return backendNone
	}
}

// NewFromConfig opens the configured backend. It returns (nil, nil) when
// persistence is off.
func NewFromConfig(ctx context.Context, cfg config.Config) (Store, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	var (
		s   Store
		err error
	)
	switch kindOf(cfg) {
	case backendFile:
		return NewFileStore(cfg.DataDir), nil
	case backendSQLite:
		s, err = OpenSQLite(ctx, cfg.SQLitePath)
	case backendMySQL:
		if strings.TrimSpace(cfg.MySQLDSN) == "" {
			return nil, errors.New("MYSQL_DSN is empty")
		}
		s, err = OpenSQL(ctx, backendMySQL, cfg.MySQLDSN)
	case backendPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return nil, errors.New("POSTGRES_DSN is empty")
		}
		s, err = OpenSQL(ctx, backendPostgres, cfg.PostgresDSN)
	case backendMongoDB:
		s, err = OpenMongo(ctx, cfg.MongoURI, cfg.MongoDB)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func prepareEntry(e *Entry) error {
	if e.TraceID == "" {
		e.TraceID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if strings.TrimSpace(e.Platform) == "" {
		return errors.New("platform is empty")
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return 100
	}
	return limit
}
