package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/followread/backend/internal/auth"
	"github.com/followread/backend/internal/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades HTTP requests to websocket subscriptions on the hub
type Handler struct {
	hub         *Hub
	authService *auth.Service
	log         *logger.Logger
}

// NewHandler creates a new websocket handler
func NewHandler(hub *Hub, authService *auth.Service) *Handler {
	return &Handler{
		hub:         hub,
		authService: authService,
		log:         logger.Default().WithComponent("websocket"),
	}
}

// ServeWS handles websocket subscription requests. Authentication uses a
// query parameter because the browser WebSocket API cannot set headers.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, `{"code":"UNAUTHORIZED","message":"missing token parameter"}`, http.StatusUnauthorized)
		return
	}

	if _, err := h.authService.ValidateAccessToken(token); err != nil {
		if err == auth.ErrTokenExpired {
			http.Error(w, `{"code":"TOKEN_EXPIRED","message":"access token has expired"}`, http.StatusUnauthorized)
			return
		}
		http.Error(w, `{"code":"UNAUTHORIZED","message":"invalid access token"}`, http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	client := NewClient(h.hub, conn)
	h.hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}

// GetHub returns the hub instance
func (h *Handler) GetHub() *Hub {
	return h.hub
}
