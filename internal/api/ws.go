package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"golang.org/x/net/websocket"

	"media-resolver-go/internal/logger"
)

// handleWSLogs streams log events as JSON text frames. ?level= drops events
// below that level; ?replay=N first sends the N newest retained events.
func (s *Server) handleWSLogs(w http.ResponseWriter, r *http.Request) {
	floor := slog.LevelDebug
	if v := r.URL.Query().Get("level"); v != "" {
		floor = logger.ParseLevel(v)
	}
	replay := queryInt(r, "replay", 0, 0, 1000)

	websocket.Server{
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler: func(conn *websocket.Conn) {
			// Subscribe before replaying so nothing logged in between is lost;
			// Seq drops the overlap.
			ch, cancel := logger.SubscribeLevel(256, floor)
			defer cancel()

			var last uint64
			send := func(evt logger.Event) bool {
				if evt.Seq <= last {
					return true
				}
				last = evt.Seq
				b, err := json.Marshal(evt)
				if err != nil {
					return true
				}
				return websocket.Message.Send(conn, string(b)) == nil
			}
			if replay > 0 {
				for _, evt := range logger.Recent(replay) {
					if logger.ParseLevel(evt.Level) >= floor && !send(evt) {
						return
					}
				}
			}
			for evt := range ch {
				if !send(evt) {
					return
				}
			}
		},
	}.ServeHTTP(w, r)
}
