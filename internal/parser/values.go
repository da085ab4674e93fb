package parser

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

func getMap(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	v, _ := m[key].(map[string]any)
	return v
}

func getSlice(m map[string]any, key string) []any {
	if m == nil {
		return nil
	}
	v, _ := m[key].([]any)
	return v
}

func getString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	return toString(m[key])
}

// getCount reads a count or dimension; negative values (hidden stats) are 0.
func getCount(m map[string]any, key string) int64 {
	if m == nil {
		return 0
	}
	return toCount(m[key])
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e18 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return ""
	}
}

// toInt64 accepts numbers, numeric strings and json.Number. Anything else is 0.
func toInt64(v any) int64 {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		if f, err := x.Float64(); err == nil {
			return int64(f)
		}
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return int64(f)
		}
	case int64:
		return x
	case int:
		return int64(x)
	case float64:
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			return int64(x)
		}
	}
	return 0
}

func toCount(v any) int64 {
	return max(toInt64(v), 0)
}

func firstURL(m map[string]any) string {
	for _, u := range getSlice(m, "url_list") {
		if s := toString(u); s != "" {
			return s
		}
	}
	return ""
}
