package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
)

const jsEvalTimeout = 2 * time.Second

var errBlobNotFound = errors.New("blob marker not found")

// blobCandidate is one way a share page may embed its state. Each is tried
// independently; a failure moves on to the next.
type blobCandidate struct {
	name    string
	extract func(doc *goquery.Document, html string) (string, error)
}

var blobCandidates = []blobCandidate{
	{name: "router_data", extract: afterMarker("window._ROUTER_DATA")},
	{name: "ssr_hydrated_data", extract: afterMarker("window._SSR_HYDRATED_DATA")},
	{name: "initial_state", extract: afterMarker("window.__INITIAL_STATE__")},
	{name: "render_data", extract: renderData},
}

func afterMarker(marker string) func(*goquery.Document, string) (string, error) {
	return func(_ *goquery.Document, html string) (string, error) {
		return extractBalancedObjectAfter(html, marker)
	}
}

func renderData(doc *goquery.Document, _ string) (string, error) {
	if doc == nil {
		return "", errBlobNotFound
	}
	raw := strings.TrimSpace(doc.Find("script#RENDER_DATA").First().Text())
	if raw == "" {
		return "", errBlobNotFound
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("unescape RENDER_DATA: %w", err)
	}
	return decoded, nil
}

// extractBalancedObjectAfter returns the first {...} object following marker,
// honoring both quote styles inside the literal.
func extractBalancedObjectAfter(text, marker string) (string, error) {
	idx := strings.Index(text, marker)
	if idx == -1 {
		return "", errBlobNotFound
	}
	s := text[idx+len(marker):]
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return "", fmt.Errorf("object start not found after %s", marker)
	}
	s = s[start:]

	depth := 0
	var quote byte
	escape := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if quote != 0 {
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '"', '\'':
			quote = ch
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unterminated object after %s", marker)
}

// decodeBlob parses strict JSON first and falls back to evaluating the text
// as a JavaScript object literal.
func decodeBlob(raw string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var out any
	jsonErr := dec.Decode(&out)
	if jsonErr == nil {
		return out, nil
	}
	out, err := evalObjectLiteral(raw)
	if err != nil {
		return nil, fmt.Errorf("json: %v; js: %w", jsonErr, err)
	}
	return out, nil
}

func evalObjectLiteral(raw string) (v any, err error) {
	rt := goja.New()
	timer := time.AfterFunc(jsEvalTimeout, func() { rt.Interrupt("evaluation timed out") })
	defer timer.Stop()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evaluate object literal: %v", r)
		}
	}()
	val, err := rt.RunString("(" + raw + ")")
	if err != nil {
		return nil, err
	}
	if goja.IsUndefined(val) || goja.IsNull(val) {
		return nil, errors.New("object literal evaluated to nothing")
	}
	return val.Export(), nil
}

// findAweme walks a decoded blob for the first object that looks like an
// aweme. When id is set the object's aweme_id must match it.
func findAweme(v any, id string, depth int) map[string]any {
	if depth > 16 {
		return nil
	}
	switch x := v.(type) {
	case map[string]any:
		if awemeID := getString(x, "aweme_id"); awemeID != "" && (id == "" || awemeID == id) {
			if _, ok := x["video"]; ok {
				return x
			}
			if _, ok := x["desc"]; ok {
				return x
			}
		}
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if found := findAweme(x[k], id, depth+1); found != nil {
				return found
			}
		}
	case []any:
		for _, child := range x {
			if found := findAweme(child, id, depth+1); found != nil {
				return found
			}
		}
	}
	return nil
}
