package douyin

import (
	"regexp"

	"media-resolver-go/internal/normalize"
)

// LinkRules accept share text containing v.douyin.com short links or full
// douyin.com / iesdouyin.com links, with or without a scheme.
func LinkRules() normalize.Rules {
	return normalize.Rules{
		LinkPatterns: []*regexp.Regexp{
			regexp.MustCompile(`https?://v\.douyin\.com/[A-Za-z0-9_-]+/?`),
			regexp.MustCompile(`https?://(?:[a-z0-9-]+\.)*(?:douyin\.com|iesdouyin\.com)/[^\s]+`),
			regexp.MustCompile(`@(https?://[^\s]+)`),
			regexp.MustCompile(`(?:^|[^A-Za-z0-9./])((?:v\.douyin\.com|(?:www\.)?douyin\.com|(?:www\.)?iesdouyin\.com)/[^\s]+)`),
		},
		ShortHosts:   []string{"v.douyin.com", "iesdouyin.com", "dy.tt"},
		AllowedHosts: []string{"douyin.com", "iesdouyin.com", "dy.tt"},
	}
}
