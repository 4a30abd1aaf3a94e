package routes

import (
	"commhub_backend/internal/handlers"
	"commhub_backend/internal/middleware"
	"commhub_backend/ws"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Auth         *handlers.AuthHandler
	Chat         *handlers.ChatHandler
	Notification *handlers.NotificationHandler
	WS           *ws.Handler
}

// RegisterRoutes wires the HTTP surface. Everything except register/login
// runs behind the auth middleware.
func RegisterRoutes(router *gin.Engine, h *Handlers, jwtSecret string) {
	api := router.Group("/api/v1")

	api.POST("/auth/register", h.Auth.Register)
	api.POST("/auth/login", h.Auth.Login)

	authed := api.Group("")
	authed.Use(middleware.AuthMiddleware(jwtSecret))

	authed.GET("/auth/me", h.Auth.Me)

	// Conversations
	authed.POST("/channels", h.Chat.GetOrCreateChannel)
	authed.POST("/direct-messages", h.Chat.StartDirectMessage)
	authed.GET("/conversations", h.Chat.GetUserConversations)
	authed.GET("/conversations/:conversationID", h.Chat.GetConversation)
	authed.POST("/conversations/:conversationID/join", h.Chat.JoinConversation)
	authed.POST("/conversations/:conversationID/mute", h.Chat.MuteConversation)
	authed.POST("/conversations/:conversationID/archive", h.Chat.ArchiveConversation)

	// Messages
	authed.POST("/messages", h.Chat.SendMessage)
	authed.GET("/conversations/:conversationID/messages", h.Chat.GetMessages)
	authed.PUT("/messages/:messageID", h.Chat.EditMessage)
	authed.DELETE("/messages/:messageID", h.Chat.DeleteMessage)

	// Read state
	authed.POST("/conversations/:conversationID/read", h.Chat.MarkAsRead)
	authed.GET("/unread-counts", h.Chat.GetUnreadCounts)

	// Notifications
	authed.GET("/notifications", h.Notification.GetUserNotifications)
	authed.POST("/notifications/:notificationID/read", h.Notification.MarkAsRead)
	authed.POST("/notifications/read-all", h.Notification.MarkAllAsRead)
	authed.GET("/notifications/unread-count", h.Notification.GetUnreadCount)

	// Realtime
	authed.GET("/ws", h.WS.ServeWS)
}
