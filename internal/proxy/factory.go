package proxy

import (
	"fmt"
	"strings"

	"media-resolver-go/internal/config"
)

func NewProvider(cfg config.Config) (Provider, error) {
	switch ProviderName(strings.ToLower(strings.TrimSpace(cfg.IPProxyProviderName))) {
	case "", ProviderStatic:
		return NewStaticProvider(cfg.IPProxyList, cfg.IPProxyFile), nil
	case ProviderAPI:
		if strings.TrimSpace(cfg.IPProxyAPIURL) == "" {
			return nil, fmt.Errorf("proxy provider api requires IP_PROXY_API_URL")
		}
		return NewAPIProvider(cfg.IPProxyAPIURL), nil
	default:
		return nil, fmt.Errorf("unknown proxy provider: %s", cfg.IPProxyProviderName)
	}
}

// NewPoolFromConfig returns nil when outbound proxying is disabled.
func NewPoolFromConfig(cfg config.Config) (*Pool, error) {
	if !cfg.EnableIPProxy {
		return nil, nil
	}
	p, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	return NewPool(p, cfg.IPProxyPoolCount), nil
}
