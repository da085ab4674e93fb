package proxy

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

// StaticProvider serves a fixed list of proxies, configured inline or in a
// file. Successive calls continue where the previous batch stopped, so a
// pool refilling after an invalidation moves on to fresh addresses.
type StaticProvider struct {
	List string
	File string

	mu     sync.Mutex
	cursor int
}

func NewStaticProvider(list, file string) *StaticProvider {
	return &StaticProvider{List: strings.TrimSpace(list), File: strings.TrimSpace(file)}
}

func (p *StaticProvider) Name() ProviderName {
	return ProviderStatic
}

func (p *StaticProvider) GetProxies(ctx context.Context, num int) ([]Proxy, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all, err := p.load()
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, ErrNoProxyAvailable
	}
	num = max(1, min(num, len(all)))

	p.mu.Lock()
	start := p.cursor % len(all)
	p.cursor = start + num
	p.mu.Unlock()

	out := make([]Proxy, 0, num)
	for i := range num {
		out = append(out, all[(start+i)%len(all)])
	}
	return out, nil
}

// load parses the inline list when set, the file otherwise. Lines in the
// file starting with '#' are comments; invalid entries are skipped.
func (p *StaticProvider) load() ([]Proxy, error) {
	text := p.List
	if text == "" && p.File != "" {
		b, err := os.ReadFile(p.File)
		if err != nil {
			return nil, fmt.Errorf("read proxy file: %w", err)
		}
		var kept []string
		for _, line := range strings.Split(string(b), "\n") {
			if line = strings.TrimSpace(line); line != "" && !strings.HasPrefix(line, "#") {
				kept = append(kept, line)
			}
		}
		text = strings.Join(kept, ",")
	}
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n' || r == '\r'
	})
	var out []Proxy
	for _, f := range fields {
		if pr, err := ParseProxy(f); err == nil {
			out = append(out, pr)
		}
	}
	return out, nil
}
