package douyin

import "github.com/cespare/xxhash/v2"

type Preset string

const (
	PresetBase    Preset = "base"
	PresetMobile  Preset = "mobile"
	PresetDesktop Preset = "desktop"
	PresetStealth Preset = "stealth"
)

const (
	mobileUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 15_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.0 Mobile/15E148 Safari/604.1"
	desktopUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// stealthUserAgents rotate across target URLs. A given URL always gets the
// same agent so repeated requests share one cache key.
var stealthUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
}

var presets = map[Preset]map[string]string{
	PresetBase: {
		"User-Agent":      mobileUA,
		"Accept":          "application/json, text/plain, */*",
		"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
		"Cache-Control":   "no-cache",
		"Pragma":          "no-cache",
	},
	PresetMobile: {
		"User-Agent":     mobileUA,
		"Referer":        "https://www.douyin.com/",
		"Origin":         "https://www.douyin.com",
		"Sec-Fetch-Dest": "empty",
		"Sec-Fetch-Mode": "cors",
		"Sec-Fetch-Site": "same-site",
	},
	PresetDesktop: {
		"User-Agent":         desktopUA,
		"Referer":            "https://www.douyin.com/",
		"Origin":             "https://www.douyin.com",
		"Sec-Ch-Ua":          `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`,
		"Sec-Ch-Ua-Mobile":   "?0",
		"Sec-Ch-Ua-Platform": `"macOS"`,
	},
	PresetStealth: {
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"Accept-Language":           "zh-CN,zh;q=0.9,en;q=0.8",
		"DNT":                       "1",
		"Upgrade-Insecure-Requests": "1",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "none",
		"Sec-Fetch-User":            "?1",
		"Cache-Control":             "max-age=0",
	},
}

// Headers builds request headers for a client identity.
type Headers struct {
	Cookies string
}

// For returns preset merged over the base set, then extra, then the cookie
// header. Stealth requests pick their user agent from target.
func (h *Headers) For(p Preset, target string, extra map[string]string) map[string]string {
	out := make(map[string]string, 16)
	for k, v := range presets[PresetBase] {
		out[k] = v
	}
	for k, v := range presets[p] {
		out[k] = v
	}
	if p == PresetStealth {
		out["User-Agent"] = stealthUA(target)
	}
	for k, v := range extra {
		out[k] = v
	}
	if h != nil && h.Cookies != "" {
		out["Cookie"] = h.Cookies
	}
	return out
}

func stealthUA(target string) string {
	return stealthUserAgents[xxhash.Sum64String(target)%uint64(len(stealthUserAgents))]
}
