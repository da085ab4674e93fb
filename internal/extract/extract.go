// Package extract pulls the numeric content id out of a normalized link.
package extract

import (
	"regexp"

	"media-resolver-go/internal/video"
)

// DefaultPatterns are tried in order. Path and query forms come first, then
// bare numeric path segments from the longest plausible length down.
var DefaultPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/video/(\d+)`),
	regexp.MustCompile(`/share/video/(\d+)`),
	regexp.MustCompile(`[?&]aweme_id=(\d+)`),
	regexp.MustCompile(`[?&]modal_id=(\d+)`),
	regexp.MustCompile(`[?&]item_ids=(\d+)`),
	regexp.MustCompile(`/note/(\d+)`),
	regexp.MustCompile(`/(\d{19})(?:[/?#]|$)`),
	regexp.MustCompile(`/(\d{18})(?:[/?#]|$)`),
	regexp.MustCompile(`/(\d{17})(?:[/?#]|$)`),
	regexp.MustCompile(`/(\d{16})(?:[/?#]|$)`),
	regexp.MustCompile(`/(\d{15})(?:[/?#]|$)`),
	regexp.MustCompile(`/(\d{10,25})(?:[/?#]|$)`),
}

type Extractor struct {
	patterns []*regexp.Regexp
}

// New returns an Extractor over patterns, or DefaultPatterns when none are
// given. Each pattern's first capture group is the candidate id.
func New(patterns ...*regexp.Regexp) *Extractor {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	return &Extractor{patterns: patterns}
}

// Extract returns the first candidate that is a valid content id.
func (e *Extractor) Extract(link string) (string, bool) {
	for _, re := range e.patterns {
		for _, m := range re.FindAllStringSubmatch(link, -1) {
			if len(m) < 2 {
				continue
			}
			if video.ValidContentID(m[1]) {
				return m[1], true
			}
		}
	}
	return "", false
}
