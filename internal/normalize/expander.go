package normalize

import (
	"context"
	"fmt"
	"time"

	"media-resolver-go/internal/fetcher"
)

// FetchExpander expands short links through the shared fetcher, so
// expansion is queued, cached and proxied like every other request.
type FetchExpander struct {
	Fetcher fetcher.Doer
	Headers map[string]string
	// Timeout bounds one expansion; zero uses the fetcher's timeout.
	Timeout time.Duration
}

func (e FetchExpander) Expand(ctx context.Context, shortURL string) (string, error) {
	resp, err := e.Fetcher.Do(ctx, fetcher.Request{
		URL:     shortURL,
		Headers: e.Headers,
		Timeout: e.Timeout,
		Source:  "short_link",
	})
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("short link expansion http status=%d", resp.StatusCode)
	}
	return resp.FinalURL, nil
}
