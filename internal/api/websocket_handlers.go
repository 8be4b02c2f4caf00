package api

import (
	"net/http"

	ws "filehost-backend/internal/websocket"
)

// ServeWsHandler upgrades to a websocket event stream. Browsers cannot set
// an Authorization header on the upgrade request, so the token travels as a
// query parameter.
func (s *Server) ServeWsHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		return
	}

	user, err := s.authenticateToken(r.Context(), token)
	if err != nil {
		http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
		return
	}

	conn, err := ws.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "err", err)
		return
	}

	client := ws.NewClient(s.hub, conn, user.UID())
	s.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
