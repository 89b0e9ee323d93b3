package handler

import (
	"log/slog"
	"net/http"

	"course-portal/internal/middleware"
	"course-portal/internal/websocket"
)

type WSHandler struct {
	hub *websocket.Hub
}

func NewWSHandler(hub *websocket.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

// Serve streams the caller's own security events.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	client := middleware.ClientFromContext(r.Context())
	if err := h.hub.ServeWS(w, r, client.SessionID); err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
	}
}
