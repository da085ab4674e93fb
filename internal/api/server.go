package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-resolver-go/internal/debugger"
	"media-resolver-go/internal/fetcher"
	"media-resolver-go/internal/parser"
	"media-resolver-go/internal/resolver"
	"media-resolver-go/internal/source"
	"media-resolver-go/internal/store"
	"media-resolver-go/internal/video"
)

const (
	maxBodyBytes   = 1 << 20
	maxBatchInputs = 100
)

type Server struct {
	mux      *http.ServeMux
	platform string
	resolver *resolver.Resolver
	registry *source.Registry
	fetcher  *fetcher.Fetcher
	parser   *parser.Parser
	store    store.Store
	dbg      *debugger.Debugger
}

func NewServer(c *resolver.Components) *Server {
	s := &Server{
		mux:      http.NewServeMux(),
		platform: c.Platform,
		resolver: c.Resolver,
		registry: c.Registry,
		fetcher:  c.Fetcher,
		parser:   c.Parser,
		store:    c.Store,
		dbg:      c.Debugger,
	}
	if s.parser == nil {
		s.parser = parser.New("", c.Debugger)
	}
	if s.registry == nil && s.resolver != nil {
		s.registry = s.resolver.Registry()
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /api/health", s.handleAPIHealth)
	s.mux.HandleFunc("POST /api/parse", s.handleParse)
	s.mux.HandleFunc("GET /api/parse", s.handleParse)
	s.mux.HandleFunc("POST /api/parse/batch", s.handleParseBatch)
	s.mux.HandleFunc("GET /api/expand-url", s.handleExpandURL)
	s.mux.HandleFunc("GET /api/sources", s.handleSources)
	s.mux.HandleFunc("POST /api/sources", s.handleAddSource)
	s.mux.HandleFunc("POST /api/sources/reset", s.handleResetSources)
	s.mux.HandleFunc("POST /api/sources/{name}/toggle", s.handleToggleSource)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)
	s.mux.HandleFunc("POST /api/stats/reset", s.handleResetStats)
	s.mux.HandleFunc("POST /api/cache/clear", s.handleClearCache)
	s.mux.HandleFunc("GET /api/history", s.handleHistory)
	s.mux.HandleFunc("GET /api/videos/{id}", s.handleVideo)
	s.mux.HandleFunc("GET /api/logs", s.handleLogs)
	s.mux.HandleFunc("GET /api/logs/export", s.handleLogsExport)
	s.mux.HandleFunc("GET /ws/logs", s.handleWSLogs)
	s.mux.Handle("GET /metrics", promhttp.Handler())
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleAPIHealth(w http.ResponseWriter, r *http.Request) {
	if s.fetcher == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "healthy": true})
		return
	}
	h := s.fetcher.HealthCheck(r.Context())
	status, code := "ok", http.StatusOK
	if !h.Healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":  status,
		"healthy": h.Healthy,
		"issues":  h.Issues,
		"stats":   h.Stats,
	})
}

type parseRequest struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if r.Method == http.MethodPost && !decodeBody(w, r, &req) {
		return
	}
	input := firstNonEmpty(req.URL, req.Text, r.URL.Query().Get("url"), r.URL.Query().Get("text"))
	res := s.resolver.Resolve(r.Context(), input)
	writeJSON(w, statusForResult(res), res)
}

type batchRequest struct {
	URLs        []string `json:"urls"`
	Concurrency int      `json:"concurrency"`
}

func (s *Server) handleParseBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.URLs) == 0 {
		writeError(w, http.StatusBadRequest, "urls is empty")
		return
	}
	if len(req.URLs) > maxBatchInputs {
		writeError(w, http.StatusBadRequest, "too many urls")
		return
	}
	writeJSON(w, http.StatusOK, s.resolver.ResolveBatch(r.Context(), req.URLs, req.Concurrency))
}

func (s *Server) handleExpandURL(w http.ResponseWriter, r *http.Request) {
	input := r.URL.Query().Get("url")
	link, id, err := s.resolver.Expand(r.Context(), input)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success":   false,
			"error":     err.Error(),
			"errorKind": video.KindOf(err),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"originalUrl": link.RawInput,
		"expandedUrl": link.NormalizedURL,
		"isShortLink": link.IsShortLink,
		"expanded":    link.Expanded,
		"videoId":     id,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"platform": s.platform,
		"sources":  s.registry.Status(),
		"debugger": s.dbg.Stats(),
	}
	if s.fetcher != nil {
		out["fetcher"] = s.fetcher.Stats(r.Context())
		if ps, ok := s.fetcher.ProxyStatus(); ok {
			out["proxy"] = ps
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleResetStats(w http.ResponseWriter, r *http.Request) {
	if s.fetcher != nil {
		s.fetcher.ResetStats()
	}
	s.dbg.ResetSpans()
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if s.fetcher != nil {
		if err := s.fetcher.ClearCache(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// statusForResult maps pre-flight failures to 400 and exhausted sources to
// 502; other failures are reported with 422.
func statusForResult(res video.Result) int {
	if res.Success {
		return http.StatusOK
	}
	switch res.ErrorKind {
	case video.ErrorKindInvalidInput, video.ErrorKindNoLinkFound, video.ErrorKindUnsupportedDomain:
		return http.StatusBadRequest
	case video.ErrorKindAllSourcesExhausted:
		return http.StatusBadGateway
	case video.ErrorKindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusUnprocessableEntity
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
