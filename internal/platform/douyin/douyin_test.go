package douyin

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"

	"media-resolver-go/internal/config"
	"media-resolver-go/internal/fetcher"
	"media-resolver-go/internal/normalize"
	"media-resolver-go/internal/platform"
	"media-resolver-go/internal/source"
	"media-resolver-go/internal/video"
)

const testID = "7471165520058862848"

type fakeDoer struct {
	mu       sync.Mutex
	requests []fetcher.Request
	handle   func(req fetcher.Request) *fetcher.Response
}

func (f *fakeDoer) Do(ctx context.Context, req fetcher.Request) (*fetcher.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.handle(req), nil
}

func jsonResp(code int, body string) *fetcher.Response {
	return &fetcher.Response{StatusCode: code, Body: []byte(body), Header: http.Header{}}
}

func sourceByName(t *testing.T, p platform.Platform, name string) source.Config {
	t.Helper()
	for _, s := range p.Sources {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("source %s not found", name)
	return source.Config{}
}

func TestNewPlatformSources(t *testing.T) {
	cfg := config.Default()
	cfg.DisabledSources = []string{"web"}
	p := New(platform.Deps{Config: cfg})

	var names []string
	disabled := map[string]bool{}
	for _, s := range p.Sources {
		names = append(names, s.Name)
		disabled[s.Name] = s.Disabled
	}
	want := "official_v2,mobile,web,backup,new_web,third_party,html_scrape,playwm_probe"
	if got := strings.Join(names, ","); got != want {
		t.Fatalf("sources=%s want %s", got, want)
	}
	for name, want := range map[string]bool{
		"official_v2": false, "web": true, "third_party": true, "html_scrape": false, "playwm_probe": true,
	} {
		if disabled[name] != want {
			t.Fatalf("%s disabled=%v want %v", name, disabled[name], want)
		}
	}
	if sourceByName(t, p, "html_scrape").NeedsID {
		t.Fatalf("html_scrape should not need an id")
	}
	if p.ExpandHeaders["User-Agent"] == "" {
		t.Fatalf("expand headers missing user agent")
	}
}

func TestAPISourceParsesItemList(t *testing.T) {
	doer := &fakeDoer{handle: func(req fetcher.Request) *fetcher.Response {
		return jsonResp(200, `{"item_list":[{"aweme_id":"`+testID+`","desc":"hi","statistics":{"digg_count":42}}]}`)
	}}
	cfg := config.Default()
	cfg.Cookies = "sessionid=abc"
	p := New(platform.Deps{Config: cfg, Fetcher: doer})

	rec, err := sourceByName(t, p, "official_v2").Fetch(context.Background(), testID, "")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if rec.ContentID != testID || rec.Statistics.LikeCount != 42 {
		t.Fatalf("rec=%+v", rec)
	}
	req := doer.requests[0]
	if !strings.HasPrefix(req.URL, "https://www.iesdouyin.com/web/api/v2/aweme/iteminfo/?") || !strings.Contains(req.URL, "item_ids="+testID) {
		t.Fatalf("url=%s", req.URL)
	}
	if req.Headers["Referer"] != "https://www.iesdouyin.com/" || req.Headers["Cookie"] != "sessionid=abc" {
		t.Fatalf("headers=%v", req.Headers)
	}
	if req.Source != "official_v2" {
		t.Fatalf("source=%s", req.Source)
	}
}

func TestAPISourceWebParams(t *testing.T) {
	doer := &fakeDoer{handle: func(req fetcher.Request) *fetcher.Response {
		return jsonResp(200, `{"aweme_detail":{"aweme_id":"`+testID+`"}}`)
	}}
	p := New(platform.Deps{Config: config.Default(), Fetcher: doer})
	if _, err := sourceByName(t, p, "new_web").Fetch(context.Background(), testID, ""); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	u := doer.requests[0].URL
	for _, part := range []string{"aweme_id=" + testID, "aid=1128", "channel=channel_pc_web", "pc_client_type=1"} {
		if !strings.Contains(u, part) {
			t.Fatalf("url %s missing %s", u, part)
		}
	}
}

func TestAPISourceErrors(t *testing.T) {
	cases := []struct {
		name string
		resp *fetcher.Response
		kind video.ErrorKind
	}{
		{"server error", jsonResp(500, "oops"), video.ErrorKindHTTP},
		{"rate limited", jsonResp(429, ""), video.ErrorKindRateLimited},
		{"captcha page", jsonResp(200, "<html>请完成安全验证</html>"), video.ErrorKindForbidden},
		{"empty list", jsonResp(200, `{"item_list":[]}`), video.ErrorKindEmptyResult},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			doer := &fakeDoer{handle: func(fetcher.Request) *fetcher.Response { return c.resp }}
			p := New(platform.Deps{Config: config.Default(), Fetcher: doer})
			_, err := sourceByName(t, p, "backup").Fetch(context.Background(), testID, "")
			if got := video.KindOf(err); got != c.kind {
				t.Fatalf("kind=%q want %q (err=%v)", got, c.kind, err)
			}
		})
	}
}

func TestHTMLSourceWithoutID(t *testing.T) {
	page := `<html><head><title>clip - 抖音</title></head><body><script>{"aweme_id":"` + testID + `","digg_count":7}</script></body></html>`
	doer := &fakeDoer{handle: func(req fetcher.Request) *fetcher.Response { return jsonResp(200, page) }}
	p := New(platform.Deps{Config: config.Default(), Fetcher: doer})

	rec, err := sourceByName(t, p, "html_scrape").Fetch(context.Background(), "", "https://www.douyin.com/discover")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if rec.ContentID != testID || rec.Title != "clip" || rec.Statistics.LikeCount != 7 {
		t.Fatalf("rec=%+v", rec)
	}
	if doer.requests[0].URL != "https://www.douyin.com/discover" {
		t.Fatalf("url=%s", doer.requests[0].URL)
	}
}

func TestProbeSource(t *testing.T) {
	urls := PlayProbeURLs(testID)
	doer := &fakeDoer{handle: func(req fetcher.Request) *fetcher.Response {
		if req.Method != http.MethodHead || !req.NoCache {
			t.Errorf("probe should send uncached HEAD, got %s nocache=%v", req.Method, req.NoCache)
		}
		if req.URL == urls[1] {
			r := jsonResp(200, "")
			r.Header.Set("Content-Type", "video/mp4")
			return r
		}
		return jsonResp(404, "")
	}}
	cfg := config.Default()
	cfg.ProbeSourceEnabled = true
	p := New(platform.Deps{Config: cfg, Fetcher: doer})
	probe := sourceByName(t, p, "playwm_probe")
	if probe.Disabled {
		t.Fatalf("probe should be enabled by config")
	}
	rec, err := probe.Fetch(context.Background(), testID, "")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if rec.MediaURL != urls[1] || rec.ContentID != testID {
		t.Fatalf("rec=%+v", rec)
	}
}

func TestThirdPartySource(t *testing.T) {
	doer := &fakeDoer{handle: func(req fetcher.Request) *fetcher.Response {
		return jsonResp(200, `{"aweme_detail":{"aweme_id":"`+testID+`"}}`)
	}}
	cfg := config.Default()
	cfg.ThirdPartyAPIURL = "https://parser.example/api?ref=a%2Fb&id=%s"
	p := New(platform.Deps{Config: cfg, Fetcher: doer})
	tp := sourceByName(t, p, "third_party")
	if tp.Disabled {
		t.Fatalf("configured third_party should be enabled")
	}
	if _, err := tp.Fetch(context.Background(), testID, ""); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if doer.requests[0].URL != "https://parser.example/api?ref=a%2Fb&id="+testID {
		t.Fatalf("url=%s", doer.requests[0].URL)
	}
}

func TestHeadersFor(t *testing.T) {
	h := &Headers{Cookies: "a=b"}
	mobile := h.For(PresetMobile, "", map[string]string{"Referer": "https://x/"})
	if mobile["Accept-Language"] == "" || mobile["Sec-Fetch-Mode"] != "cors" {
		t.Fatalf("mobile should merge over base: %v", mobile)
	}
	if mobile["Referer"] != "https://x/" || mobile["Cookie"] != "a=b" {
		t.Fatalf("extra and cookie not applied: %v", mobile)
	}
	page := "https://www.douyin.com/video/" + testID
	first := h.For(PresetStealth, page, nil)["User-Agent"]
	if first == "" || first != h.For(PresetStealth, page, nil)["User-Agent"] {
		t.Fatalf("stealth user agent should be stable for one url")
	}
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		seen[h.For(PresetStealth, fmt.Sprintf("https://www.douyin.com/video/%d", 7000000000000000000+i), nil)["User-Agent"]] = true
	}
	if len(seen) < 2 {
		t.Fatalf("stealth user agent should vary across urls, got %d", len(seen))
	}
	if _, ok := (&Headers{}).For(PresetBase, "", nil)["Cookie"]; ok {
		t.Fatalf("cookie header set without cookies")
	}
}

func TestLinkRulesNormalize(t *testing.T) {
	n := normalize.New(LinkRules(), nil, nil)
	cases := []struct {
		in   string
		want string
	}{
		{"7.43 复制打开抖音，看看 https://v.douyin.com/iRNBho6u/ 02/28", "https://v.douyin.com/iRNBho6u/"},
		{"@https://v.douyin.com/abc123", "https://v.douyin.com/abc123/"},
		{"https://www.douyin.com/video/" + testID + "，好看", "https://www.douyin.com/video/" + testID},
		{"www.douyin.com/video/" + testID, "https://www.douyin.com/video/" + testID},
	}
	for _, c := range cases {
		got, err := n.Normalize(context.Background(), c.in)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", c.in, err)
		}
		if got.NormalizedURL != c.want {
			t.Fatalf("Normalize(%q)=%q want %q", c.in, got.NormalizedURL, c.want)
		}
	}
}
