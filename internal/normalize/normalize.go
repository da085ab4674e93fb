// Package normalize turns free-form user input into a canonical link on a
// supported host, expanding short links on the way.
package normalize

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"media-resolver-go/internal/debugger"
	"media-resolver-go/internal/video"
)

// Rules describe which links a platform accepts.
type Rules struct {
	// LinkPatterns are tried in order; the first capture group is used when
	// present, the whole match otherwise.
	LinkPatterns []*regexp.Regexp
	// ShortHosts are expanded by following redirects.
	ShortHosts []string
	// AllowedHosts, and their subdomains, are accepted after expansion.
	AllowedHosts []string
}

// Expander follows a short link to its final destination.
type Expander interface {
	Expand(ctx context.Context, shortURL string) (string, error)
}

type ExpanderFunc func(ctx context.Context, shortURL string) (string, error)

func (f ExpanderFunc) Expand(ctx context.Context, shortURL string) (string, error) {
	return f(ctx, shortURL)
}

type Normalizer struct {
	rules    Rules
	expander Expander
	dbg      *debugger.Debugger
}

// New returns a Normalizer. A nil expander leaves short links unexpanded.
func New(rules Rules, expander Expander, dbg *debugger.Debugger) *Normalizer {
	return &Normalizer{rules: rules, expander: expander, dbg: dbg}
}

func (n *Normalizer) Rules() Rules {
	return n.rules
}

func (n *Normalizer) Normalize(ctx context.Context, raw string) (video.ResolvedLink, error) {
	out := video.ResolvedLink{RawInput: raw}
	text := strings.TrimSpace(raw)
	if text == "" {
		return out, video.Error{Kind: video.ErrorKindInvalidInput, Msg: "input is empty"}
	}

	link, ok := n.ExtractLink(text)
	if !ok {
		return out, video.Error{Kind: video.ErrorKindNoLinkFound, Msg: "no supported link found in input"}
	}
	link = n.clean(link)
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return out, video.Error{Kind: video.ErrorKindNoLinkFound, Msg: "link is not a valid url", Err: err}
	}
	out.NormalizedURL = link

	if hostIn(u.Hostname(), n.rules.ShortHosts) {
		out.IsShortLink = true
		if n.expander != nil {
			final, err := n.expander.Expand(ctx, link)
			switch {
			case err != nil:
				n.dbg.Log(ctx, slog.LevelWarn, "short link expansion failed, keeping original", map[string]any{
					"url": link,
					"err": err.Error(),
				})
			case strings.TrimSpace(final) != "":
				out.NormalizedURL = final
				out.Expanded = final != link
			}
		}
	}

	fu, err := url.Parse(out.NormalizedURL)
	if err != nil || !hostIn(fu.Hostname(), n.rules.AllowedHosts) {
		host := ""
		if fu != nil {
			host = fu.Hostname()
		}
		return out, video.Error{Kind: video.ErrorKindUnsupportedDomain, URL: out.NormalizedURL, Msg: "unsupported domain: " + host}
	}
	return out, nil
}

// ExtractLink returns the first link-shaped substring of text.
func (n *Normalizer) ExtractLink(text string) (string, bool) {
	for _, re := range n.rules.LinkPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		link := m[0]
		if len(m) > 1 && m[1] != "" {
			link = m[1]
		}
		link = trimLinkTail(link)
		if link != "" {
			return link, true
		}
	}
	return "", false
}

func (n *Normalizer) clean(link string) string {
	link = strings.TrimLeft(strings.TrimSpace(link), "@")
	if !strings.HasPrefix(link, "http://") && !strings.HasPrefix(link, "https://") {
		link = "https://" + link
	}
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	if hostIn(u.Hostname(), n.rules.ShortHosts) && !strings.HasSuffix(link, "/") && !strings.Contains(link, "?") {
		link += "/"
	}
	return link
}

// trimLinkTail cuts a greedy match at the first character that cannot be
// part of a shared link, such as CJK text or closing punctuation.
func trimLinkTail(s string) string {
	for i, r := range s {
		if r > unicode.MaxASCII || unicode.IsSpace(r) || strings.ContainsRune("\"'<>()[]{},，。", r) {
			s = s[:i]
			break
		}
	}
	return strings.TrimRight(s, ".;:!")
}

func hostIn(host string, domains []string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" {
		return false
	}
	for _, d := range domains {
		d = strings.ToLower(d)
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
