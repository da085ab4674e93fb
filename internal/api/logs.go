package api

import (
	"net/http"
	"strconv"

	"media-resolver-go/internal/debugger"
	"media-resolver-go/internal/logger"
)

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100, 0, 2000)
	writeJSON(w, http.StatusOK, map[string]any{
		"logs":   logger.Recent(limit),
		"levels": logger.LevelCounts(),
	})
}

func (s *Server) handleLogsExport(w http.ResponseWriter, r *http.Request) {
	b, contentType, err := debugger.Export(r.URL.Query().Get("format"), queryInt(r, "limit", 1000, 0, 2000))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.Header().Set("content-type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func queryInt(r *http.Request, key string, def, min, max int) int {
	n := def
	if v := r.URL.Query().Get(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			n = parsed
		}
	}
	if n < min {
		n = min
	}
	if n > max {
		n = max
	}
	return n
}
