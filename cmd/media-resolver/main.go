package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"media-resolver-go/internal/api"
	"media-resolver-go/internal/config"
	"media-resolver-go/internal/logger"
	"media-resolver-go/internal/metrics"
	"media-resolver-go/internal/platform"
	_ "media-resolver-go/internal/platform/douyin"
	"media-resolver-go/internal/resolver"
)

func main() {
	configPath := flag.String("config", ".", "path to config file")
	apiMode := flag.Bool("api", false, "start api server")
	apiAddr := flag.String("addr", "", "api server address (default API_ADDR)")
	concurrency := flag.Int("concurrency", 1, "links resolved in parallel when several are given")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <link or share text>...\n", os.Args[0])
		flag.PrintDefaults()
		fmt.Fprintf(flag.CommandLine.Output(), "platforms: %s\n", strings.Join(platform.Names(), ", "))
	}
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
	}
	if err := config.LoadConfig(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.InitFromConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetRingSize(config.AppConfig.DebugMaxEvents)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	c, err := resolver.FromConfig(ctx, config.AppConfig)
	if err != nil {
		logger.Error("resolver init failed", "err", err, "platform", config.AppConfig.Platform)
		os.Exit(1)
	}

	code := run(ctx, c, *apiMode, *apiAddr, *concurrency)
	stop()
	if err := c.Close(); err != nil {
		logger.Warn("close failed", "err", err)
	}
	_ = logger.Close()
	os.Exit(code)
}

func run(ctx context.Context, c *resolver.Components, apiMode bool, apiAddr string, concurrency int) int {
	if apiMode {
		if apiAddr == "" {
			apiAddr = config.AppConfig.APIAddr
		}
		if err := serve(ctx, apiAddr, api.NewServer(c).Handler()); err != nil {
			logger.Error("api server failed", "err", err)
			return 1
		}
		return 0
	}

	inputs := flag.Args()
	if len(inputs) == 0 {
		flag.Usage()
		return 2
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")

	if len(inputs) == 1 {
		res := c.Resolver.Resolve(ctx, inputs[0])
		_ = enc.Encode(res)
		if !res.Success {
			logger.Error("resolution failed", "error_kind", res.ErrorKind, "attempted_sources", res.AttemptedSources, "trace_id", res.TraceID)
			return 1
		}
		return 0
	}

	out := c.Resolver.ResolveBatch(ctx, inputs, concurrency)
	_ = enc.Encode(out)
	logger.Info("batch finished", "processed", out.Processed, "succeeded", out.Succeeded, "failed", out.Failed, "failure_kinds", out.FailureKinds)
	return batchExitCode(out, len(inputs))
}

// batchExitCode is 1 when any input failed or was never started.
func batchExitCode(out resolver.BatchResult, inputs int) int {
	if out.Failed > 0 || out.Processed < inputs {
		return 1
	}
	return 0
}

func serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting api server", "addr", addr, "platform", config.AppConfig.Platform)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down api server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
