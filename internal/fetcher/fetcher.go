package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/singleflight"

	"media-resolver-go/internal/cache"
	"media-resolver-go/internal/config"
	"media-resolver-go/internal/debugger"
	"media-resolver-go/internal/metrics"
	"media-resolver-go/internal/proxy"
	"media-resolver-go/internal/video"
)

const (
	DefaultTTL         = 5 * time.Minute
	DefaultQueueDelay  = 100 * time.Millisecond
	DefaultHealthQueue = 100
	queueCapacity      = 4096
)

var ErrClosed = errors.New("fetcher closed")

type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	// Timeout bounds this request; zero uses the client timeout.
	Timeout time.Duration
	NoCache bool
	// Source names the caller in telemetry.
	Source string
}

type Response struct {
	StatusCode int           `json:"status"`
	Body       []byte        `json:"body"`
	FinalURL   string        `json:"finalUrl"`
	Header     http.Header   `json:"header,omitempty"`
	Cached     bool          `json:"-"`
	Elapsed    time.Duration `json:"-"`
}

// Doer is the request surface platforms depend on; *Fetcher implements it.
type Doer interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

func (r *Response) IsSuccess() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

type Options struct {
	Cache       cache.Cache
	TTL         time.Duration
	QueueDelay  time.Duration
	HealthQueue int
	// MaxCacheEntries is the cache bound used by HealthCheck.
	MaxCacheEntries int

	Timeout time.Duration
	// MaxRedirects caps followed redirects; the last response is returned
	// once it is reached.
	MaxRedirects int
	RetryCount   int
	RetryWait    time.Duration
	RetryMaxWait time.Duration
	Transport    http.RoundTripper
	// Pool, when set, is told about upstream answers so blocked proxies
	// are rotated out.
	Pool     *proxy.Pool
	Debugger *debugger.Debugger
}

func OptionsFromConfig(cfg config.Config, c cache.Cache, pool *proxy.Pool, dbg *debugger.Debugger) Options {
	opts := Options{
		Cache:           c,
		TTL:             time.Duration(cfg.CacheTTLSec) * time.Second,
		QueueDelay:      time.Duration(cfg.QueueDelayMs) * time.Millisecond,
		HealthQueue:     cfg.QueueHealthMax,
		MaxCacheEntries: cfg.CacheMaxEntries,
		Timeout:         time.Duration(cfg.HttpTimeoutSec) * time.Second,
		MaxRedirects:    cfg.ShortLinkMaxRedirects,
		RetryCount:      cfg.HttpRetryCount,
		RetryWait:       time.Duration(cfg.HttpRetryBaseDelayMs) * time.Millisecond,
		RetryMaxWait:    time.Duration(cfg.HttpRetryMaxDelayMs) * time.Millisecond,
		Debugger:        dbg,
	}
	if pool != nil {
		opts.Transport = proxy.Transport(pool)
		opts.Pool = pool
	}
	return opts
}

type job struct {
	ctx  context.Context
	req  Request
	done chan jobResult
}

type jobResult struct {
	resp *Response
	err  error
}

// Fetcher sends every outbound request through one worker that drains a
// FIFO queue with a fixed pause between requests. Successful GET responses
// are cached and identical in-flight requests share one network call.
type Fetcher struct {
	client      *resty.Client
	cache       cache.Cache
	ttl         time.Duration
	timeout     time.Duration
	delay       time.Duration
	healthQueue int
	maxEntries  int
	pool        *proxy.Pool
	dbg         *debugger.Debugger

	group   singleflight.Group
	queue   chan *job
	pending atomic.Int64
	closed  chan struct{}
	once    sync.Once
	wg      sync.WaitGroup

	statsMu sync.Mutex
	stats   counters
}

type counters struct {
	total      int64
	successful int64
	cached     int64
	failed     int64
	network    int64
	avgMs      float64
}

func New(opts Options) *Fetcher {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.QueueDelay < 0 {
		opts.QueueDelay = 0
	}
	if opts.HealthQueue <= 0 {
		opts.HealthQueue = DefaultHealthQueue
	}
	if opts.MaxCacheEntries <= 0 {
		opts.MaxCacheEntries = cache.DefaultMaxEntries
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = 10
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport.(*http.Transport).Clone()
	}

	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	hc := &http.Client{
		Transport: opts.Transport,
		Timeout:   opts.Timeout,
		Jar:       jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= opts.MaxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
	rc := resty.NewWithClient(hc)
	if opts.RetryCount > 0 {
		rc.SetRetryCount(opts.RetryCount)
		if opts.RetryWait > 0 {
			rc.SetRetryWaitTime(opts.RetryWait)
		}
		if opts.RetryMaxWait > 0 {
			rc.SetRetryMaxWaitTime(opts.RetryMaxWait)
		}
		rc.AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
			}
			if r == nil {
				return false
			}
			return video.ShouldRetryStatus(r.StatusCode())
		})
	}

	f := &Fetcher{
		client:      rc,
		cache:       opts.Cache,
		ttl:         opts.TTL,
		timeout:     opts.Timeout,
		delay:       opts.QueueDelay,
		healthQueue: opts.HealthQueue,
		maxEntries:  opts.MaxCacheEntries,
		pool:        opts.Pool,
		dbg:         opts.Debugger,
		queue:       make(chan *job, queueCapacity),
		closed:      make(chan struct{}),
	}
	f.wg.Add(1)
	go f.worker()
	return f
}

// Do performs req, serving it from cache when possible. Non-2xx responses
// are returned with a nil error; callers decide how to treat them.
func (f *Fetcher) Do(ctx context.Context, req Request) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req.Method = strings.ToUpper(strings.TrimSpace(req.Method))
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if strings.TrimSpace(req.URL) == "" {
		return nil, video.Error{Kind: video.ErrorKindInvalidInput, Source: req.Source, Msg: "request url is empty"}
	}
	f.countTotal()

	key := CacheKey(req.Method, req.URL, req.Headers)
	cacheable := f.cache != nil && !req.NoCache && req.Method == http.MethodGet

	if cacheable {
		if resp, ok := f.fromCache(ctx, key); ok {
			f.dbg.CacheEvent(ctx, "hit", key, true)
			f.countCached()
			metrics.FetcherRequestsTotal.WithLabelValues("cached").Inc()
			return resp, nil
		}
		f.dbg.CacheEvent(ctx, "miss", key, false)
	}

	ch := f.group.DoChan(key, func() (any, error) {
		// The shared call outlives any single caller; each caller still
		// stops waiting on its own ctx below.
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.sharedDeadline(req))
		defer cancel()
		return f.enqueue(sctx, req)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		f.countFailed()
		metrics.FetcherRequestsTotal.WithLabelValues("error").Inc()
		return nil, res.Err
	}
	shared := res.Val.(*Response)
	resp := *shared
	resp.Body = append([]byte(nil), shared.Body...)

	if resp.IsSuccess() {
		f.countSuccess()
		if cacheable {
			f.toCache(ctx, key, &resp)
		}
	} else {
		f.countFailed()
	}
	metrics.FetcherRequestsTotal.WithLabelValues("network").Inc()
	return &resp, nil
}

// sharedDeadline bounds a coalesced call: one request timeout for the wait
// in the queue and one for the request itself.
func (f *Fetcher) sharedDeadline(req Request) time.Duration {
	d := req.Timeout
	if d <= 0 {
		d = f.timeout
	}
	return 2 * d
}

func (f *Fetcher) enqueue(ctx context.Context, req Request) (*Response, error) {
	select {
	case <-f.closed:
		return nil, ErrClosed
	default:
	}
	j := &job{ctx: ctx, req: req, done: make(chan jobResult, 1)}
	f.pending.Add(1)
	metrics.FetcherQueueLength.Set(float64(f.pending.Load()))
	select {
	case f.queue <- j:
	case <-ctx.Done():
		f.pending.Add(-1)
		return nil, ctx.Err()
	case <-f.closed:
		f.pending.Add(-1)
		return nil, ErrClosed
	}
	select {
	case r := <-j.done:
		return r.resp, r.err
	case <-f.closed:
		return nil, ErrClosed
	}
}

func (f *Fetcher) worker() {
	defer f.wg.Done()
	for {
		select {
		case <-f.closed:
			return
		case j := <-f.queue:
			f.pending.Add(-1)
			metrics.FetcherQueueLength.Set(float64(f.pending.Load()))
			if err := j.ctx.Err(); err != nil {
				j.done <- jobResult{err: err}
				continue
			}
			resp, err := f.execute(j.ctx, j.req)
			j.done <- jobResult{resp: resp, err: err}
			if f.delay > 0 {
				t := time.NewTimer(f.delay)
				select {
				case <-f.closed:
					t.Stop()
					return
				case <-t.C:
				}
			}
		}
	}
}

func (f *Fetcher) execute(ctx context.Context, req Request) (*Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	f.dbg.APIRequest(ctx, req.Source, req.URL, req.Headers)

	start := time.Now()
	r, err := f.client.R().
		SetContext(ctx).
		SetHeaders(req.Headers).
		Execute(req.Method, req.URL)
	elapsed := time.Since(start)
	f.observe(elapsed)
	if err != nil {
		f.dbg.NetworkError(ctx, req.Source, req.URL, err)
		return nil, classifyTransportError(req, err)
	}
	resp := &Response{
		StatusCode: r.StatusCode(),
		Body:       r.Body(),
		Header:     r.Header(),
		FinalURL:   req.URL,
		Elapsed:    elapsed,
	}
	if raw := r.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		resp.FinalURL = raw.Request.URL.String()
	}
	f.dbg.APIResponse(ctx, req.Source, resp.StatusCode, elapsed, nil)
	if f.pool.Report(resp.StatusCode) {
		f.dbg.Log(ctx, slog.LevelWarn, "proxy rotated after upstream status", map[string]any{
			"source": req.Source,
			"status": resp.StatusCode,
		})
	}
	return resp, nil
}

func classifyTransportError(req Request, err error) error {
	kind := video.KindOf(err)
	if kind == video.ErrorKindUnknown {
		kind = video.ErrorKindNetwork
	}
	return video.Error{Kind: kind, Source: req.Source, URL: req.URL, Msg: "request failed", Err: err}
}

type cachedResponse struct {
	StatusCode int    `json:"status"`
	Body       []byte `json:"body"`
	FinalURL   string `json:"finalUrl"`
}

func (f *Fetcher) fromCache(ctx context.Context, key string) (*Response, bool) {
	b, ok, err := f.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	var cr cachedResponse
	if err := json.Unmarshal(b, &cr); err != nil {
		return nil, false
	}
	return &Response{StatusCode: cr.StatusCode, Body: cr.Body, FinalURL: cr.FinalURL, Cached: true}, true
}

func (f *Fetcher) toCache(ctx context.Context, key string, resp *Response) {
	b, err := json.Marshal(cachedResponse{StatusCode: resp.StatusCode, Body: resp.Body, FinalURL: resp.FinalURL})
	if err != nil {
		return
	}
	if err := f.cache.Set(ctx, key, b, f.ttl); err == nil {
		f.dbg.CacheEvent(ctx, "store", key, false)
	}
}

// Close stops the worker and the cache janitor. Queued requests fail with
// ErrClosed.
func (f *Fetcher) Close() error {
	var err error
	f.once.Do(func() {
		close(f.closed)
		f.wg.Wait()
		if f.cache != nil {
			err = f.cache.Close()
		}
	})
	return err
}

func (f *Fetcher) ClearCache(ctx context.Context) error {
	if f.cache == nil {
		return nil
	}
	return f.cache.Clear(ctx)
}

// ProxyStatus reports the outbound proxy pool, if one is configured.
func (f *Fetcher) ProxyStatus() (proxy.PoolStatus, bool) {
	if f.pool == nil {
		return proxy.PoolStatus{}, false
	}
	return f.pool.Status(), true
}

func (f *Fetcher) QueueLength() int {
	return int(f.pending.Load())
}
