package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"media-resolver-go/internal/fetcher"
	"media-resolver-go/internal/parser"
	"media-resolver-go/internal/source"
	"media-resolver-go/internal/video"
)

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sources": s.registry.Status()})
}

type toggleRequest struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) handleToggleSource(w http.ResponseWriter, r *http.Request) {
	name := strings.ToLower(strings.TrimSpace(r.PathValue("name")))
	var req toggleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	current, ok := s.sourceStatus(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown source: %s", name))
		return
	}
	enabled := !current.Enabled
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	if err := s.registry.Toggle(name, enabled); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "name": name, "enabled": enabled})
}

func (s *Server) handleResetSources(w http.ResponseWriter, r *http.Request) {
	s.registry.ResetStats()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "sources": s.registry.Status()})
}

// addSourceRequest describes a JSON endpoint. URLTemplate holds one %s for
// the content id; the response may be any shape the parser understands.
type addSourceRequest struct {
	Name        string            `json:"name"`
	URLTemplate string            `json:"urlTemplate"`
	Headers     map[string]string `json:"headers"`
	Priority    int               `json:"priority"`
	RateLimit   int               `json:"rateLimit"`
	TimeoutMs   int               `json:"timeoutMs"`
}

func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	var req addSourceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if s.fetcher == nil {
		writeError(w, http.StatusServiceUnavailable, "no fetcher configured")
		return
	}
	cfg, err := templateSource(req, s.fetcher, s.parser)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.registry.Add(cfg); err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, source.ErrDuplicateSource) {
			code = http.StatusConflict
		}
		writeError(w, code, err.Error())
		return
	}
	st, _ := s.sourceStatus(cfg.Name)
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "source": st})
}

func templateSource(req addSourceRequest, doer fetcher.Doer, p *parser.Parser) (source.Config, error) {
	name := strings.ToLower(strings.TrimSpace(req.Name))
	if name == "" {
		return source.Config{}, errors.New("name is required")
	}
	tpl := strings.TrimSpace(req.URLTemplate)
	if strings.Count(tpl, "%s") != 1 || !(strings.HasPrefix(tpl, "http://") || strings.HasPrefix(tpl, "https://")) {
		return source.Config{}, errors.New("urlTemplate must be an http(s) url with exactly one %s")
	}
	return source.Config{
		Name:      name,
		Priority:  req.Priority,
		RateLimit: req.RateLimit,
		Timeout:   time.Duration(req.TimeoutMs) * time.Millisecond,
		NeedsID:   true,
		Fetch: func(ctx context.Context, id, fullURL string) (video.Record, error) {
			u := strings.Replace(tpl, "%s", url.QueryEscape(id), 1)
			resp, err := doer.Do(ctx, fetcher.Request{URL: u, Headers: req.Headers, Source: name})
			if err != nil {
				return video.Record{}, err
			}
			if !resp.IsSuccess() {
				return video.Record{}, video.NewHTTPStatusError(name, u, resp.StatusCode, string(resp.Body))
			}
			rec, err := p.ParseAny(resp.Body)
			if err != nil {
				return video.Record{}, video.RiskError(name, u, string(resp.Body), err)
			}
			return rec, nil
		},
	}, nil
}

func (s *Server) sourceStatus(name string) (source.Status, bool) {
	for _, st := range s.registry.Status() {
		if st.Name == name {
			return st, true
		}
	}
	return source.Status{}, false
}
