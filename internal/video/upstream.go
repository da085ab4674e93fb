package video

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Classification of upstream answers: status codes, anti-bot pages and the
// retry decisions built on them.

const statusBodySnippet = 256

// NewHTTPStatusError describes a non-2xx upstream answer. The first bytes of
// body are kept in the message to make blocked or malformed pages visible in
// logs.
func NewHTTPStatusError(source, url string, statusCode int, body string) error {
	msg := fmt.Sprintf("http status=%d", statusCode)
	if snippet := strings.TrimSpace(body); snippet != "" {
		if len(snippet) > statusBodySnippet {
			snippet = snippet[:statusBodySnippet]
		}
		msg += " body=" + snippet
	}
	return Error{Kind: statusKind(statusCode), Source: source, URL: url, Msg: msg, Status: statusCode}
}

func statusKind(code int) ErrorKind {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrorKindForbidden
	case http.StatusTooManyRequests:
		return ErrorKindRateLimited
	default:
		return ErrorKindHTTP
	}
}

// StatusOf returns the upstream status code recorded on err, or 0.
func StatusOf(err error) int {
	var ve Error
	if errors.As(err, &ve) {
		return ve.Status
	}
	return 0
}

// ShouldRetryStatus is the per-request retry rule: throttling and server
// errors.
func ShouldRetryStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code <= 599)
}

// ShouldInvalidateProxyStatus reports answers that point at the outbound
// address being blocked rather than at the request.
func ShouldInvalidateProxyStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusForbidden
}

// ShouldRetryResolve reports whether a whole pipeline pass may be repeated
// after err. Only exhaustion of every source qualifies.
func ShouldRetryResolve(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return KindOf(err) == ErrorKindAllSourcesExhausted
}

var riskMarkers = []struct {
	hint    string
	needles []string
}{
	{"captcha", []string{"captcha", "验证码", "人机验证", "安全验证", "请通过验证", "访问验证"}},
	{"forbidden", []string{"forbidden", "access denied"}},
}

// DetectRiskHint recognizes anti-bot pages served in place of data. It
// returns "captcha", "forbidden" or "".
func DetectRiskHint(body string) string {
	lower := strings.ToLower(body)
	for _, m := range riskMarkers {
		for _, n := range m.needles {
			if strings.Contains(lower, n) {
				return m.hint
			}
		}
	}
	return ""
}

// RiskError wraps a parse failure as forbidden when body looks like an
// anti-bot page. Other errors are returned unchanged.
func RiskError(source, url, body string, err error) error {
	hint := DetectRiskHint(body)
	if hint == "" {
		return err
	}
	return Error{Kind: ErrorKindForbidden, Source: source, URL: url, Msg: "blocked: " + hint, Err: err}
}

// Sleep waits for d or until ctx ends, reporting whether the full delay
// elapsed.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
