package extract

import (
	"regexp"
	"testing"
)

func TestExtract(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://www.douyin.com/video/7525082444551310602", "7525082444551310602"},
		{"https://www.iesdouyin.com/share/video/7525082444551310602/?region=CN&mid=7", "7525082444551310602"},
		{"https://www.douyin.com/user/MS4wLjABAAAA?modal_id=7471165520058862848", "7471165520058862848"},
		{"https://www.douyin.com/aweme/v1/web/aweme/detail/?aweme_id=7471165520058862848", "7471165520058862848"},
		{"https://www.iesdouyin.com/web/api/v2/aweme/iteminfo/?item_ids=7471165520058862848", "7471165520058862848"},
		{"https://www.douyin.com/note/7471165520058862848", "7471165520058862848"},
		{"https://www.douyin.com/discover/7471165520058862848?from=share", "7471165520058862848"},
		{"https://www.douyin.com/x/123456789012345", "123456789012345"},
		{"https://www.douyin.com/x/1234567890", "1234567890"},
		{"https://v.douyin.com/iRNBho6u/", ""},
		{"https://www.douyin.com/video/123", ""},
		{"", ""},
	}
	e := New()
	for _, c := range cases {
		got, ok := e.Extract(c.in)
		if got != c.want || ok != (c.want != "") {
			t.Fatalf("Extract(%q)=%q,%v want %q", c.in, got, ok, c.want)
		}
	}
}

func TestExtractSkipsInvalidCandidates(t *testing.T) {
	// The /video/ form matches but is too short; a later pattern wins.
	e := New()
	got, ok := e.Extract("https://www.douyin.com/video/12?modal_id=7471165520058862848")
	if !ok || got != "7471165520058862848" {
		t.Fatalf("Extract=%q,%v", got, ok)
	}
}

func TestExtractCustomPatterns(t *testing.T) {
	e := New(regexp.MustCompile(`vid=(\d+)`))
	if got, ok := e.Extract("https://example.com/?vid=12345678901"); !ok || got != "12345678901" {
		t.Fatalf("Extract=%q,%v", got, ok)
	}
	if _, ok := e.Extract("https://www.douyin.com/video/7525082444551310602"); ok {
		t.Fatalf("custom extractor should not use default patterns")
	}
}
