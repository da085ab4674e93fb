package proxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"media-resolver-go/internal/config"
)

func TestAPIProviderFormats(t *testing.T) {
	cases := []struct {
		name string
		body string
		want []string
	}{
		{"json array", `["1.1.1.1:80","2.2.2.2:81"]`, []string{"1.1.1.1", "2.2.2.2"}},
		{"json object", `{"code":0,"data":{"proxy_list":["3.3.3.3:8080,120"]}}`, []string{"3.3.3.3"}},
		{"plain text", "4.4.4.4:1080\n5.5.5.5:1081\n", []string{"4.4.4.4", "5.5.5.5"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("num") == "" {
					t.Errorf("num query missing")
				}
				_, _ = w.Write([]byte(c.body))
			}))
			defer srv.Close()

			p := NewAPIProvider(srv.URL)
			got, err := p.GetProxies(context.Background(), 5)
			if err != nil {
				t.Fatalf("GetProxies: %v", err)
			}
			if len(got) != len(c.want) {
				t.Fatalf("got %d proxies, want %d", len(got), len(c.want))
			}
			for i, ip := range c.want {
				if got[i].IP != ip {
					t.Fatalf("proxy[%d] = %s, want %s", i, got[i].IP, ip)
				}
			}
		})
	}
}

func TestAPIProviderLifetimeSuffix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`["1.1.1.1:80,60"]`))
	}))
	defer srv.Close()

	base := time.Unix(1700000000, 0)
	p := NewAPIProvider(srv.URL)
	p.now = func() time.Time { return base }
	got, err := p.GetProxies(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetProxies: %v", err)
	}
	want := base.Add(55 * time.Second)
	if !got[0].ExpiredAt.Equal(want) {
		t.Fatalf("ExpiredAt = %v, want %v", got[0].ExpiredAt, want)
	}
}

func TestNewPoolFromConfig(t *testing.T) {
	pool, err := NewPoolFromConfig(config.Config{})
	if err != nil || pool != nil {
		t.Fatalf("disabled proxy should yield nil pool, got %v %v", pool, err)
	}
	pool, err = NewPoolFromConfig(config.Config{EnableIPProxy: true, IPProxyProviderName: "static", IPProxyList: "1.1.1.1:80"})
	if err != nil || pool == nil {
		t.Fatalf("static pool: %v %v", pool, err)
	}
	if _, err := NewPoolFromConfig(config.Config{EnableIPProxy: true, IPProxyProviderName: "api"}); err == nil {
		t.Fatalf("api provider without url should fail")
	}
	if _, err := NewPoolFromConfig(config.Config{EnableIPProxy: true, IPProxyProviderName: "bogus"}); err == nil {
		t.Fatalf("unknown provider should fail")
	}
}

func TestPoolProxyFunc(t *testing.T) {
	pool := NewPool(NewStaticProvider("9.9.9.9:3128", ""), 1)
	req := httptest.NewRequest(http.MethodGet, "https://www.douyin.com/", nil)
	u, err := pool.ProxyFunc(req)
	if err != nil {
		t.Fatalf("ProxyFunc: %v", err)
	}
	if u.Host != "9.9.9.9:3128" {
		t.Fatalf("proxy host = %s", u.Host)
	}

	var nilPool *Pool
	if u, err := nilPool.ProxyFunc(req); u != nil || err != nil {
		t.Fatalf("nil pool should not proxy")
	}
}
