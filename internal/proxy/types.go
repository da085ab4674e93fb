package proxy

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type ProviderName string

const (
	ProviderStatic ProviderName = "static"
	ProviderAPI    ProviderName = "api"
)

// Provider hands out batches of proxies. It may return fewer than num.
type Provider interface {
	Name() ProviderName
	GetProxies(ctx context.Context, num int) ([]Proxy, error)
}

// Proxy is one outbound HTTP proxy endpoint. A zero ExpiredAt never
// expires.
type Proxy struct {
	IP        string
	Port      int
	User      string
	Password  string
	Protocol  string
	ExpiredAt time.Time
}

// ParseProxy accepts "host:port", "user:pass@host:port" and the same with
// a scheme prefix. The scheme defaults to http.
func ParseProxy(s string) (Proxy, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Proxy{}, fmt.Errorf("empty proxy entry")
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return Proxy{}, fmt.Errorf("parse proxy %q: %w", s, err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		return Proxy{}, fmt.Errorf("parse proxy %q: %w", s, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return Proxy{}, fmt.Errorf("parse proxy %q: bad port", s)
	}
	pr := Proxy{IP: host, Port: port, Protocol: strings.ToLower(u.Scheme)}
	if u.User != nil {
		pr.User = u.User.Username()
		pr.Password, _ = u.User.Password()
	}
	return pr, nil
}

func (p Proxy) URL() *url.URL {
	scheme := p.Protocol
	if scheme == "" {
		scheme = "http"
	}
	u := &url.URL{Scheme: scheme, Host: p.String()}
	if p.User != "" || p.Password != "" {
		u.User = url.UserPassword(p.User, p.Password)
	}
	return u
}

// String omits credentials.
func (p Proxy) String() string {
	return net.JoinHostPort(p.IP, strconv.Itoa(p.Port))
}
