package ws

import (
	"net/http"

	"commhub_backend/internal/logger"
	"commhub_backend/internal/middleware"
	"commhub_backend/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is delegated to the reverse proxy in deployment.
		return true
	},
}

type Handler struct {
	manager *Manager
}

func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

// ServeWS upgrades an authenticated request to a websocket connection and
// starts the read/write pumps. Auth middleware must run before this handler.
func (h *Handler) ServeWS(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := &Client{
		ID:       uuid.NewString(),
		UserID:   userID,
		Conn:     conn,
		Send:     make(chan OutgoingMessage, 256),
		manager:  h.manager,
		convSubs: make(map[string]*realtime.Handle),
	}

	h.manager.register <- client

	go client.readPump()
	go client.writePump()
}
