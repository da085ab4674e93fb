package proxy

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

type mockProvider struct {
	name    ProviderName
	batches [][]Proxy
	calls   int
	err     error
}

func (m *mockProvider) Name() ProviderName { return m.name }

func (m *mockProvider) GetProxies(ctx context.Context, num int) ([]Proxy, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.calls >= len(m.batches) {
		return nil, nil
	}
	b := m.batches[m.calls]
	m.calls++
	if len(b) > num {
		b = b[:num]
	}
	return b, nil
}

func newClockPool(prov Provider, count int, now *time.Time) *Pool {
	p := NewPool(prov, count)
	p.now = func() time.Time { return *now }
	return p
}

func TestPoolKeepsCurrentUntilExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p1 := Proxy{IP: "1.1.1.1", Port: 8080, ExpiredAt: now.Add(time.Minute)}
	p2 := Proxy{IP: "2.2.2.2", Port: 8080, ExpiredAt: now.Add(5 * time.Minute)}
	pool := newClockPool(&mockProvider{name: ProviderAPI, batches: [][]Proxy{{p1, p2}}}, 2, &now)
	pool.SetExpiryBuffer(10 * time.Second)

	got1, err := pool.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	got2, _ := pool.Next(context.Background())
	if got1.IP != "1.1.1.1" || got2.IP != got1.IP {
		t.Fatalf("expected first proxy to stick, got %v then %v", got1, got2)
	}

	now = now.Add(55 * time.Second)
	got3, err := pool.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got3.IP != "2.2.2.2" {
		t.Fatalf("expected rotation inside the expiry buffer, got %v", got3)
	}
	if st := pool.Status(); st.Rotations != 2 || st.Current != "2.2.2.2:8080" || st.Queued != 0 {
		t.Fatalf("status=%+v", st)
	}
}

func TestPoolReportInvalidatesBlockedProxy(t *testing.T) {
	now := time.Now()
	prov := &mockProvider{name: ProviderStatic, batches: [][]Proxy{
		{{IP: "1.1.1.1", Port: 80}},
		{{IP: "3.3.3.3", Port: 80}},
	}}
	pool := newClockPool(prov, 1, &now)

	first, _ := pool.Next(context.Background())
	if pool.Report(http.StatusOK) || pool.Report(http.StatusInternalServerError) {
		t.Fatalf("non-blocking statuses must keep the proxy")
	}
	if !pool.Report(http.StatusForbidden) {
		t.Fatalf("403 should invalidate")
	}
	second, err := pool.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if first.IP == second.IP || prov.calls != 2 {
		t.Fatalf("expected refill after invalidation: %v -> %v (calls=%d)", first, second, prov.calls)
	}
	if st := pool.Status(); st.Invalidations != 1 {
		t.Fatalf("status=%+v", st)
	}

	var nilPool *Pool
	if nilPool.Report(http.StatusTooManyRequests) {
		t.Fatalf("nil pool reported invalidation")
	}
}

func TestPoolProviderError(t *testing.T) {
	now := time.Now()
	pool := newClockPool(&mockProvider{name: ProviderAPI, err: errors.New("quota exceeded")}, 1, &now)
	if _, err := pool.Next(context.Background()); err == nil {
		t.Fatalf("expected provider error")
	}
	if st := pool.Status(); st.LastError != "quota exceeded" || st.Current != "" {
		t.Fatalf("status=%+v", st)
	}

	pool = newClockPool(&mockProvider{name: ProviderAPI}, 1, &now)
	if _, err := pool.Next(context.Background()); !errors.Is(err, ErrNoProxyAvailable) {
		t.Fatalf("err=%v", err)
	}
}
