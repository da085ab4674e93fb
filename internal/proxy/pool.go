package proxy

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"media-resolver-go/internal/video"
)

var ErrNoProxyAvailable = errors.New("no proxy available")

const DefaultExpiryBuffer = 30 * time.Second

// Pool routes outbound requests through one proxy at a time. The current
// proxy is kept until it nears expiry or an upstream answer marks it as
// blocked; the next one is taken in provider order, refilling the batch
// when it runs out.
type Pool struct {
	provider Provider
	count    int
	buffer   time.Duration
	now      func() time.Time

	mu            sync.Mutex
	batch         []Proxy
	current       *Proxy
	rotations     int64
	invalidations int64
	lastErr       string
}

// PoolStatus is reported by the stats endpoint. Credentials are never
// included.
type PoolStatus struct {
	Provider      ProviderName `json:"provider"`
	Current       string       `json:"current,omitempty"`
	Queued        int          `json:"queued"`
	Rotations     int64        `json:"rotations"`
	Invalidations int64        `json:"invalidations"`
	LastError     string       `json:"lastError,omitempty"`
}

func NewPool(provider Provider, count int) *Pool {
	if count <= 0 {
		count = 2
	}
	return &Pool{
		provider: provider,
		count:    count,
		buffer:   DefaultExpiryBuffer,
		now:      time.Now,
	}
}

func (p *Pool) SetExpiryBuffer(buffer time.Duration) {
	if buffer <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buffer = buffer
}

func (p *Pool) expired(pr *Proxy) bool {
	return !pr.ExpiredAt.IsZero() && !p.now().Before(pr.ExpiredAt.Add(-p.buffer))
}

// Next returns the proxy to use for the next request.
func (p *Pool) Next(ctx context.Context) (Proxy, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil && !p.expired(p.current) {
		return *p.current, nil
	}
	p.current = nil

	for len(p.batch) > 0 && p.expired(&p.batch[0]) {
		p.batch = p.batch[1:]
	}
	if len(p.batch) == 0 {
		fresh, err := p.provider.GetProxies(ctx, p.count)
		if err != nil {
			p.lastErr = err.Error()
			return Proxy{}, err
		}
		p.batch = append(p.batch[:0], fresh...)
	}
	if len(p.batch) == 0 {
		p.lastErr = ErrNoProxyAvailable.Error()
		return Proxy{}, ErrNoProxyAvailable
	}

	next := p.batch[0]
	p.batch = p.batch[1:]
	p.current = &next
	p.rotations++
	return next, nil
}

// Report feeds an upstream status code back to the pool. Answers that
// suggest the proxy address is blocked drop the current proxy.
func (p *Pool) Report(statusCode int) bool {
	if p == nil || !video.ShouldInvalidateProxyStatus(statusCode) {
		return false
	}
	p.Invalidate()
	return true
}

func (p *Pool) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		p.current = nil
		p.invalidations++
	}
}

func (p *Pool) Status() PoolStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := PoolStatus{
		Provider:      p.provider.Name(),
		Queued:        len(p.batch),
		Rotations:     p.rotations,
		Invalidations: p.invalidations,
		LastError:     p.lastErr,
	}
	if p.current != nil {
		st.Current = p.current.String()
	}
	return st
}

// ProxyFunc plugs the pool into an http.Transport. A nil pool proxies
// nothing.
func (p *Pool) ProxyFunc(req *http.Request) (*url.URL, error) {
	if p == nil {
		return nil, nil
	}
	ctx := context.Background()
	if req != nil {
		ctx = req.Context()
	}
	pr, err := p.Next(ctx)
	if err != nil {
		return nil, err
	}
	return pr.URL(), nil
}

// Transport returns a clone of the default transport routed through p.
func Transport(p *Pool) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	if p != nil {
		t.Proxy = p.ProxyFunc
	}
	return t
}
