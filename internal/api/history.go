package api

import (
	"net/http"
	"strings"

	"media-resolver-go/internal/video"
)

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "history store disabled (STORE_BACKEND=none)")
		return
	}
	entries, err := s.store.Recent(r.Context(), queryInt(r, "limit", 50, 1, 1000))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "history store disabled (STORE_BACKEND=none)")
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if !video.ValidContentID(id) {
		writeError(w, http.StatusBadRequest, "invalid video id")
		return
	}
	rec, ok, err := s.store.Video(r.Context(), s.platform, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "video not found")
		return
	}
	writeJSON(w, http.StatusOK, video.Result{Record: &rec, Success: true, VideoID: rec.ContentID})
}
