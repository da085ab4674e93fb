package debugger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"media-resolver-go/internal/logger"
)

// Export renders the most recent limit log events as "json" or "text".
func Export(format string, limit int) ([]byte, string, error) {
	evts := logger.Recent(limit)
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		b, err := json.MarshalIndent(evts, "", "  ")
		if err != nil {
			return nil, "", err
		}
		return b, "application/json; charset=utf-8", nil
	case "text", "txt":
		var buf bytes.Buffer
		for _, e := range evts {
			fmt.Fprintf(&buf, "[%s] %s %s", e.Time, e.Level, e.Msg)
			keys := make([]string, 0, len(e.Attrs))
			for k := range e.Attrs {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(&buf, " %s=%v", k, e.Attrs[k])
			}
			buf.WriteByte('\n')
		}
		return buf.Bytes(), "text/plain; charset=utf-8", nil
	default:
		return nil, "", fmt.Errorf("unsupported export format: %s", format)
	}
}
