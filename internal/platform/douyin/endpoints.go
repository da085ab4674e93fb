package douyin

import (
	"fmt"
	"net/url"
	"time"
)

type payloadShape int

const (
	shapeItemList payloadShape = iota
	shapeAwemeDetail
	shapeAny
)

// endpoint is one JSON API that returns an aweme by id.
type endpoint struct {
	name      string
	priority  int
	rateLimit int
	timeout   time.Duration
	preset    Preset
	headers   map[string]string
	shape     payloadShape
	build     func(id string) string
}

var webParams = url.Values{
	"aid":             {"1128"},
	"version_name":    {"23.5.0"},
	"device_platform": {"webapp"},
	"os_version":      {"10"},
}

var newWebParams = url.Values{
	"aid":                 {"1128"},
	"version_name":        {"23.5.0"},
	"device_platform":     {"webapp"},
	"os_version":          {"10"},
	"channel":             {"channel_pc_web"},
	"update_version_code": {"170400"},
	"pc_client_type":      {"1"},
}

func withID(base, key, id string, extra url.Values) string {
	q := url.Values{key: {id}}
	for k, v := range extra {
		q[k] = v
	}
	return base + "?" + q.Encode()
}

func endpoints() []endpoint {
	return []endpoint{
		{
			name:      "official_v2",
			priority:  1,
			rateLimit: 10,
			timeout:   15 * time.Second,
			preset:    PresetMobile,
			headers: map[string]string{
				"Referer": "https://www.iesdouyin.com/",
				"Origin":  "https://www.iesdouyin.com",
			},
			shape: shapeItemList,
			build: func(id string) string {
				return withID("https://www.iesdouyin.com/web/api/v2/aweme/iteminfo/", "item_ids", id, nil)
			},
		},
		{
			name:      "mobile",
			priority:  2,
			rateLimit: 15,
			timeout:   12 * time.Second,
			preset:    PresetMobile,
			headers:   map[string]string{"X-Requested-With": "XMLHttpRequest"},
			shape:     shapeAwemeDetail,
			build: func(id string) string {
				return withID("https://www.douyin.com/aweme/v1/web/aweme/detail/", "aweme_id", id, nil)
			},
		},
		{
			name:      "web",
			priority:  3,
			rateLimit: 20,
			timeout:   10 * time.Second,
			preset:    PresetDesktop,
			shape:     shapeAwemeDetail,
			build: func(id string) string {
				return withID("https://www.douyin.com/aweme/v1/web/aweme/detail/", "aweme_id", id, webParams)
			},
		},
		{
			name:      "backup",
			priority:  4,
			rateLimit: 5,
			timeout:   20 * time.Second,
			preset:    PresetStealth,
			headers: map[string]string{
				"Accept":  "application/json, text/plain, */*",
				"Referer": "https://www.douyin.com/",
				"Origin":  "https://www.douyin.com",
			},
			shape: shapeItemList,
			build: func(id string) string {
				return withID("https://www.douyin.com/web/api/v2/aweme/iteminfo/", "item_ids", id, nil)
			},
		},
		{
			name:      "new_web",
			priority:  5,
			rateLimit: 10,
			timeout:   15 * time.Second,
			preset:    PresetDesktop,
			shape:     shapeAwemeDetail,
			build: func(id string) string {
				return withID("https://www.douyin.com/aweme/v1/web/aweme/detail/", "aweme_id", id, newWebParams)
			},
		},
	}
}

// PlayProbeURLs are candidate watermark-free addresses built from an id.
func PlayProbeURLs(id string) []string {
	bases := []string{
		"https://aweme.snssdk.com/aweme/v1/playwm/",
		"https://www.iesdouyin.com/aweme/v1/playwm/",
		"https://api.douyin.com/aweme/v1/playwm/",
	}
	out := make([]string, len(bases))
	for i, b := range bases {
		out[i] = fmt.Sprintf("%s?video_id=%s&line=0", b, url.QueryEscape(id))
	}
	return out
}
