package normalize

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"media-resolver-go/internal/fetcher"
	"media-resolver-go/internal/video"
)

func testRules() Rules {
	return Rules{
		LinkPatterns: []*regexp.Regexp{
			regexp.MustCompile(`https?://v\.douyin\.com/[A-Za-z0-9_-]+/?`),
			regexp.MustCompile(`https?://(?:www\.)?(?:douyin\.com|iesdouyin\.com)/[^\s]+`),
			regexp.MustCompile(`(?:^|[^A-Za-z0-9./])((?:v\.douyin\.com|(?:www\.)?douyin\.com)/[^\s]+)`),
		},
		ShortHosts:   []string{"v.douyin.com", "iesdouyin.com", "dy.tt"},
		AllowedHosts: []string{"douyin.com", "iesdouyin.com", "dy.tt"},
	}
}

type countingExpander struct {
	calls int
	final string
	err   error
}

func (c *countingExpander) Expand(ctx context.Context, u string) (string, error) {
	c.calls++
	return c.final, c.err
}

func TestNormalizeEmptyInput(t *testing.T) {
	exp := &countingExpander{}
	n := New(testRules(), exp, nil)
	for _, in := range []string{"", "   \n\t"} {
		_, err := n.Normalize(context.Background(), in)
		if video.KindOf(err) != video.ErrorKindInvalidInput {
			t.Fatalf("Normalize(%q) err=%v", in, err)
		}
	}
	if exp.calls != 0 {
		t.Fatalf("expander must not be called for empty input")
	}
}

func TestNormalizeNoLink(t *testing.T) {
	n := New(testRules(), nil, nil)
	_, err := n.Normalize(context.Background(), "hello world, nothing to see")
	if video.KindOf(err) != video.ErrorKindNoLinkFound {
		t.Fatalf("err=%v", err)
	}
}

func TestNormalizeShareTextExpands(t *testing.T) {
	exp := &countingExpander{final: "https://www.iesdouyin.com/share/video/7525082444551310602/?region=CN"}
	n := New(testRules(), exp, nil)

	in := "7.43 复制打开抖音，看看【作品】 https://v.douyin.com/iRNBho6u/ a@B.Gn 02/28"
	link, err := n.Normalize(context.Background(), in)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !link.IsShortLink || !link.Expanded {
		t.Fatalf("expected expanded short link, got %+v", link)
	}
	if link.NormalizedURL != exp.final {
		t.Fatalf("NormalizedURL=%q", link.NormalizedURL)
	}
	if link.RawInput != in {
		t.Fatalf("RawInput not preserved")
	}
}

func TestNormalizeExpansionFailureKeepsOriginal(t *testing.T) {
	exp := &countingExpander{err: errors.New("dial tcp: timeout")}
	n := New(testRules(), exp, nil)

	link, err := n.Normalize(context.Background(), "@https://v.douyin.com/abc123")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if link.NormalizedURL != "https://v.douyin.com/abc123/" {
		t.Fatalf("NormalizedURL=%q", link.NormalizedURL)
	}
	if !link.IsShortLink || link.Expanded {
		t.Fatalf("unexpected flags %+v", link)
	}
	if exp.calls != 1 {
		t.Fatalf("expander calls=%d", exp.calls)
	}
}

func TestNormalizeFullAndBareLinks(t *testing.T) {
	n := New(testRules(), nil, nil)
	cases := []struct {
		in   string
		want string
	}{
		{"https://www.douyin.com/video/7525082444551310602", "https://www.douyin.com/video/7525082444551310602"},
		{"看这个 https://www.douyin.com/video/7525082444551310602，太好笑了", "https://www.douyin.com/video/7525082444551310602"},
		{"www.douyin.com/video/7525082444551310602", "https://www.douyin.com/video/7525082444551310602"},
		{"v.douyin.com/abc123", "https://v.douyin.com/abc123/"},
		{"https://www.douyin.com/jingxuan?modal_id=7525082444551310602", "https://www.douyin.com/jingxuan?modal_id=7525082444551310602"},
	}
	for _, c := range cases {
		link, err := n.Normalize(context.Background(), c.in)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", c.in, err)
		}
		if link.NormalizedURL != c.want {
			t.Fatalf("Normalize(%q)=%q want %q", c.in, link.NormalizedURL, c.want)
		}
	}
}

func TestNormalizeUnsupportedAfterExpansion(t *testing.T) {
	exp := &countingExpander{final: "https://evil.example.com/landing"}
	n := New(testRules(), exp, nil)
	_, err := n.Normalize(context.Background(), "https://v.douyin.com/abc123/")
	if video.KindOf(err) != video.ErrorKindUnsupportedDomain {
		t.Fatalf("err=%v", err)
	}
}

func TestHostIn(t *testing.T) {
	domains := []string{"douyin.com"}
	if !hostIn("www.douyin.com", domains) || !hostIn("DOUYIN.COM", domains) {
		t.Fatalf("expected match")
	}
	if hostIn("notdouyin.com", domains) || hostIn("douyin.com.evil.io", domains) {
		t.Fatalf("unexpected match")
	}
}

type recordingDoer struct {
	reqs []fetcher.Request
	resp *fetcher.Response
}

func (d *recordingDoer) Do(_ context.Context, req fetcher.Request) (*fetcher.Response, error) {
	d.reqs = append(d.reqs, req)
	return d.resp, nil
}

func TestFetchExpander(t *testing.T) {
	doer := &recordingDoer{resp: &fetcher.Response{StatusCode: 200, FinalURL: "https://www.douyin.com/video/7471165520058862848"}}
	e := FetchExpander{Fetcher: doer, Headers: map[string]string{"User-Agent": "ua"}, Timeout: 3 * time.Second}

	got, err := e.Expand(context.Background(), "https://v.douyin.com/abc123/")
	if err != nil || got != doer.resp.FinalURL {
		t.Fatalf("Expand = %q, %v", got, err)
	}
	req := doer.reqs[0]
	if req.Timeout != 3*time.Second || req.Headers["User-Agent"] != "ua" || req.Source != "short_link" {
		t.Fatalf("request = %+v", req)
	}

	doer.resp = &fetcher.Response{StatusCode: 404}
	if _, err := e.Expand(context.Background(), "https://v.douyin.com/gone/"); err == nil {
		t.Fatalf("expected error for 404 expansion")
	}
}
