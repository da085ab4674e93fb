package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// APIProvider pulls proxies from an HTTP endpoint. The body may be a JSON
// array of entries, an object with data.proxy_list, or plain text with one
// entry per line. An entry may carry a ",<seconds>" lifetime suffix.
type APIProvider struct {
	Endpoint string
	client   *resty.Client
	now      func() time.Time
}

const apiExpiryMargin = 5 * time.Second

func NewAPIProvider(endpoint string) *APIProvider {
	return &APIProvider{
		Endpoint: strings.TrimSpace(endpoint),
		client:   resty.New().SetTimeout(20 * time.Second),
		now:      time.Now,
	}
}

func (p *APIProvider) Name() ProviderName {
	return ProviderAPI
}

func (p *APIProvider) GetProxies(ctx context.Context, num int) ([]Proxy, error) {
	if num <= 0 {
		num = 1
	}
	r, err := p.client.R().
		SetContext(ctx).
		SetQueryParam("num", strconv.Itoa(num)).
		Get(p.Endpoint)
	if err != nil {
		return nil, err
	}
	if r.IsError() {
		return nil, fmt.Errorf("proxy api http status=%d", r.StatusCode())
	}
	entries := decodeAPIEntries(r.Body())
	if len(entries) == 0 {
		return nil, ErrNoProxyAvailable
	}

	now := p.now()
	out := make([]Proxy, 0, len(entries))
	for _, e := range entries {
		addr, ttl, _ := strings.Cut(e, ",")
		pr, err := ParseProxy(addr)
		if err != nil {
			continue
		}
		if secs, err := strconv.Atoi(strings.TrimSpace(ttl)); err == nil && secs > 0 {
			pr.ExpiredAt = now.Add(time.Duration(secs)*time.Second - apiExpiryMargin)
		}
		out = append(out, pr)
		if len(out) >= num {
			break
		}
	}
	if len(out) == 0 {
		return nil, ErrNoProxyAvailable
	}
	return out, nil
}

func decodeAPIEntries(body []byte) []string {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var list []string
		if err := json.Unmarshal(body, &list); err == nil {
			return list
		}
	}
	if strings.HasPrefix(trimmed, "{") {
		var obj struct {
			Data struct {
				ProxyList []string `json:"proxy_list"`
			} `json:"data"`
		}
		if err := json.Unmarshal(body, &obj); err == nil {
			return obj.Data.ProxyList
		}
		return nil
	}
	var out []string
	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
