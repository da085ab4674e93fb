package fetcher

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// CacheKey identifies a request for caching and coalescing:
// METHOD:URL, plus a digest of the custom headers when any are set.
func CacheKey(method, url string, headers map[string]string) string {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}
	key := method + ":" + url
	if len(headers) == 0 {
		return key
	}
	names := make([]string, 0, len(headers))
	for k := range headers {
		names = append(names, k)
	}
	sort.Strings(names)
	d := xxhash.New()
	for _, k := range names {
		_, _ = d.WriteString(strings.ToLower(k))
		_, _ = d.WriteString("=")
		_, _ = d.WriteString(headers[k])
		_, _ = d.WriteString("\n")
	}
	return key + ":" + strconv.FormatUint(d.Sum64(), 36)
}
