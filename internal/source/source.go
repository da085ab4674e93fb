// Package source keeps the ordered set of fetch strategies for a platform
// and tracks their health.
package source

import (
	"context"
	"time"

	"media-resolver-go/internal/video"
)

const (
	DefaultPriority    = 10
	DefaultRateLimit   = 5
	DefaultTimeout     = 15 * time.Second
	InitialSuccessRate = 0.5
)

// FetchFunc fetches and parses one content item. id may be empty for
// sources that do not need it.
type FetchFunc func(ctx context.Context, id, fullURL string) (video.Record, error)

// Config describes a source. Lower Priority is tried first.
type Config struct {
	Name      string
	Priority  int
	RateLimit int
	Timeout   time.Duration
	// NeedsID is false for sources that work from the page URL alone.
	NeedsID  bool
	Disabled bool
	Fetch    FetchFunc
}

func (c Config) withDefaults() Config {
	if c.Priority == 0 {
		c.Priority = DefaultPriority
	}
	if c.RateLimit <= 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// ScoreWeights tune the composite ordering score
// priority + (1-successRate)*SuccessRate + failureCount*Failures.
type ScoreWeights struct {
	SuccessRate float64
	Failures    float64
}

var DefaultWeights = ScoreWeights{SuccessRate: 10, Failures: 2}

type Status struct {
	Name          string    `json:"name"`
	Priority      int       `json:"priority"`
	RateLimit     int       `json:"rateLimit"`
	TimeoutMs     int64     `json:"timeoutMs"`
	NeedsID       bool      `json:"needsId"`
	Enabled       bool      `json:"enabled"`
	SuccessRate   float64   `json:"successRate"`
	FailureCount  int       `json:"failureCount"`
	AvgResponseMs float64   `json:"avgResponseMs"`
	Requests      int64     `json:"requests"`
	Successes     int64     `json:"successes"`
	WindowUsed    int       `json:"windowUsed"`
	Score         float64   `json:"score"`
	LastUsed      time.Time `json:"lastUsed,omitempty"`
	DisabledUntil time.Time `json:"disabledUntil,omitempty"`
	LastError     string    `json:"lastError,omitempty"`
}
