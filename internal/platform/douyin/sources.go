package douyin

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"media-resolver-go/internal/fetcher"
	"media-resolver-go/internal/parser"
	"media-resolver-go/internal/platform"
	"media-resolver-go/internal/source"
	"media-resolver-go/internal/video"
)

const (
	sourceThirdParty = "third_party"
	sourceHTML       = "html_scrape"
	sourceProbe      = "playwm_probe"
)

type client struct {
	fetcher fetcher.Doer
	parser  *parser.Parser
	headers *Headers
}

func newClient(deps platform.Deps) *client {
	p := deps.Parser
	if p == nil {
		p = parser.New(deps.Config.PlayURLTemplate, deps.Debugger)
	}
	return &client{
		fetcher: deps.Fetcher,
		parser:  p,
		headers: &Headers{Cookies: deps.Config.Cookies},
	}
}

// get fetches url and turns transport failures and non-2xx answers into
// video errors.
func (c *client) get(ctx context.Context, name, url string, headers map[string]string) (*fetcher.Response, error) {
	if c.fetcher == nil {
		return nil, video.Error{Kind: video.ErrorKindNetwork, Source: name, URL: url, Msg: "no fetcher configured"}
	}
	resp, err := c.fetcher.Do(ctx, fetcher.Request{URL: url, Headers: headers, Source: name})
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, video.NewHTTPStatusError(name, url, resp.StatusCode, string(resp.Body))
	}
	return resp, nil
}

func (c *client) apiSource(ep endpoint) source.Config {
	return source.Config{
		Name:      ep.name,
		Priority:  ep.priority,
		RateLimit: ep.rateLimit,
		Timeout:   ep.timeout,
		NeedsID:   true,
		Fetch: func(ctx context.Context, id, _ string) (video.Record, error) {
			u := ep.build(id)
			resp, err := c.get(ctx, ep.name, u, c.headers.For(ep.preset, u, ep.headers))
			if err != nil {
				return video.Record{}, err
			}
			var rec video.Record
			switch ep.shape {
			case shapeItemList:
				rec, err = c.parser.ParseItemList(resp.Body)
			case shapeAwemeDetail:
				rec, err = c.parser.ParseAwemeDetail(resp.Body)
			default:
				rec, err = c.parser.ParseAny(resp.Body)
			}
			if err != nil {
				return video.Record{}, video.RiskError(ep.name, u, string(resp.Body), err)
			}
			return rec, nil
		},
	}
}

// thirdPartySource calls an operator-supplied JSON API. It stays disabled
// until a URL pattern is configured.
func (c *client) thirdPartySource(pattern string) source.Config {
	return source.Config{
		Name:      sourceThirdParty,
		Priority:  6,
		RateLimit: 3,
		Timeout:   25 * time.Second,
		NeedsID:   true,
		Disabled:  !strings.Contains(pattern, "%s"),
		Fetch: func(ctx context.Context, id, _ string) (video.Record, error) {
			if !strings.Contains(pattern, "%s") {
				return video.Record{}, video.Error{Kind: video.ErrorKindUnknown, Source: sourceThirdParty, Msg: "third party api url is not configured"}
			}
			u := strings.Replace(pattern, "%s", url.QueryEscape(id), 1)
			resp, err := c.get(ctx, sourceThirdParty, u, c.headers.For(PresetBase, u, nil))
			if err != nil {
				return video.Record{}, err
			}
			return c.parser.ParseAny(resp.Body)
		},
	}
}

// htmlSource scrapes the share page itself and works without an id.
func (c *client) htmlSource() source.Config {
	return source.Config{
		Name:      sourceHTML,
		Priority:  7,
		RateLimit: 10,
		Timeout:   20 * time.Second,
		NeedsID:   false,
		Fetch: func(ctx context.Context, id, fullURL string) (video.Record, error) {
			page := fullURL
			if page == "" && id != "" {
				page = "https://www.douyin.com/video/" + id
			}
			if page == "" {
				return video.Record{}, video.Error{Kind: video.ErrorKindInvalidInput, Source: sourceHTML, Msg: "no page url"}
			}
			resp, err := c.get(ctx, sourceHTML, page, c.headers.For(PresetStealth, page, nil))
			if err != nil {
				return video.Record{}, err
			}
			rec, err := c.parser.ParseHTML(ctx, string(resp.Body), id)
			if err != nil {
				return video.Record{}, video.RiskError(sourceHTML, page, string(resp.Body), err)
			}
			return rec, nil
		},
	}
}

// probeSource HEAD-checks fixed play URL patterns. The record carries only
// the id and the media URL.
func (c *client) probeSource(enabled bool) source.Config {
	return source.Config{
		Name:      sourceProbe,
		Priority:  8,
		RateLimit: 5,
		Timeout:   15 * time.Second,
		NeedsID:   true,
		Disabled:  !enabled,
		Fetch: func(ctx context.Context, id, _ string) (video.Record, error) {
			if c.fetcher == nil {
				return video.Record{}, video.Error{Kind: video.ErrorKindNetwork, Source: sourceProbe, Msg: "no fetcher configured"}
			}
			var lastErr error
			for _, u := range PlayProbeURLs(id) {
				resp, err := c.fetcher.Do(ctx, fetcher.Request{
					Method:  http.MethodHead,
					URL:     u,
					Headers: c.headers.For(PresetBase, u, nil),
					NoCache: true,
					Source:  sourceProbe,
				})
				if err != nil {
					if ctx.Err() != nil {
						return video.Record{}, err
					}
					lastErr = err
					continue
				}
				if resp.IsSuccess() && strings.Contains(resp.Header.Get("Content-Type"), "video") {
					return video.Record{ContentID: id, MediaURL: u, Tags: []string{}}, nil
				}
				lastErr = video.NewHTTPStatusError(sourceProbe, u, resp.StatusCode, "")
			}
			if lastErr == nil {
				lastErr = video.Error{Kind: video.ErrorKindEmptyResult, Source: sourceProbe, Msg: "no playable probe url"}
			}
			return video.Record{}, lastErr
		},
	}
}
