package parser

import (
	"net/url"
	"strings"
)

// DefaultPlayURLTemplate turns a play_addr uri into a watermark-free play URL.
const DefaultPlayURLTemplate = "https://aweme.snssdk.com/aweme/v1/play/?video_id=%s&ratio=720p&line=0"

func (p *Parser) playURL(videoID string) string {
	tpl := p.PlayURLTemplate
	if tpl == "" || !strings.Contains(tpl, "%s") {
		tpl = DefaultPlayURLTemplate
	}
	return strings.Replace(tpl, "%s", url.QueryEscape(videoID), 1)
}

// mediaURL picks the best playable address from an aweme "video" object.
func (p *Parser) mediaURL(v map[string]any) string {
	if v == nil {
		return ""
	}
	if uri := getString(getMap(v, "play_addr"), "uri"); uri != "" {
		return p.playURL(uri)
	}
	for _, cand := range addrCandidates(v) {
		urls := urlList(cand)
		if len(urls) == 0 {
			continue
		}
		chosen := urls[0]
		for _, u := range urls {
			if !strings.Contains(strings.ToLower(u), ".m3u8") {
				chosen = u
				break
			}
		}
		if id := videoIDParam(chosen); id != "" {
			return p.playURL(id)
		}
		return chosen
	}
	return ""
}

func addrCandidates(v map[string]any) []map[string]any {
	out := []map[string]any{
		getMap(v, "play_addr"),
		getMap(v, "download_addr"),
	}
	rates := getSlice(v, "bit_rate")
	if len(rates) > 0 {
		if first, ok := rates[0].(map[string]any); ok {
			out = append(out, getMap(first, "play_addr"))
		}
	}
	for _, r := range rates {
		rm, ok := r.(map[string]any)
		if !ok {
			continue
		}
		if isNormalQuality(rm) {
			out = append(out, getMap(rm, "play_addr"))
			break
		}
	}
	for _, key := range []string{"play_addr_h264", "play_addr_265", "play_addr_lowbr", "play_addr_highbr"} {
		out = append(out, getMap(v, key))
	}
	return out
}

func isNormalQuality(rate map[string]any) bool {
	if strings.EqualFold(getString(rate, "quality_type"), "normal") {
		return true
	}
	return strings.HasPrefix(strings.ToLower(getString(rate, "gear_name")), "normal")
}

func urlList(addr map[string]any) []string {
	var out []string
	for _, u := range getSlice(addr, "url_list") {
		if s := toString(u); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func videoIDParam(raw string) string {
	if !strings.Contains(raw, "video_id=") {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Query().Get("video_id")
}
