package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"media-resolver-go/internal/cache"
	"media-resolver-go/internal/config"
	"media-resolver-go/internal/debugger"
	"media-resolver-go/internal/fetcher"
	"media-resolver-go/internal/normalize"
	"media-resolver-go/internal/parser"
	"media-resolver-go/internal/platform"
	"media-resolver-go/internal/proxy"
	"media-resolver-go/internal/source"
	"media-resolver-go/internal/store"
)

// Components is a pipeline wired from configuration, plus the shared parts
// the HTTP API reports on.
type Components struct {
	Platform string
	Resolver *Resolver
	Registry *source.Registry
	Fetcher  *fetcher.Fetcher
	Parser   *parser.Parser
	Store    store.Store
	Debugger *debugger.Debugger
}

// FromConfig builds every component for cfg.Platform. Platforms must be
// registered beforehand, usually by a blank import.
func FromConfig(ctx context.Context, cfg config.Config) (*Components, error) {
	dbg := debugger.New(cfg.DebugEnabled)

	pool, err := proxy.NewPoolFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("proxy pool: %w", err)
	}
	f := fetcher.New(fetcher.OptionsFromConfig(cfg, cache.NewFromConfig(cfg), pool, dbg))

	prs := parser.New(cfg.PlayURLTemplate, dbg)
	p, err := platform.New(cfg.Platform, platform.Deps{
		Config:   cfg,
		Fetcher:  f,
		Parser:   prs,
		Debugger: dbg,
	})
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	reg, err := source.NewRegistry(source.Options{
		FailureThreshold: cfg.BreakerFailureThreshold,
		Cooldown:         time.Duration(cfg.BreakerCooldownSec) * time.Second,
		Window:           time.Duration(cfg.RateLimitWindowSec) * time.Second,
		Debugger:         dbg,
	}, p.Sources...)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	st, err := store.NewFromConfig(ctx, cfg)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("store: %w", err)
	}

	expander := normalize.FetchExpander{
		Fetcher: f,
		Headers: p.ExpandHeaders,
		Timeout: time.Duration(cfg.ShortLinkTimeoutSec) * time.Second,
	}
	r := New(normalize.New(p.Rules, expander, dbg), p.Extractor, reg, Options{
		Platform:    p.Name,
		MaxAttempts: cfg.ResolveMaxAttempts,
		RetryDelay:  time.Duration(cfg.ResolveRetryDelayMs) * time.Millisecond,
		Store:       st,
		Debugger:    dbg,
	})

	return &Components{
		Platform: p.Name,
		Resolver: r,
		Registry: reg,
		Fetcher:  f,
		Parser:   prs,
		Store:    st,
		Debugger: dbg,
	}, nil
}

func (c *Components) Close() error {
	var errs []error
	if c.Fetcher != nil {
		errs = append(errs, c.Fetcher.Close())
	}
	if c.Store != nil {
		errs = append(errs, c.Store.Close())
	}
	return errors.Join(errs...)
}
