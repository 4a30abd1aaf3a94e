package handlers

import (
	"net/http"

	"commhub_backend/internal/middleware"
	"commhub_backend/internal/services"
	"commhub_backend/internal/services/dto"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	*BaseHandler
	notificationService services.NotificationService
}

func NewNotificationHandler(base *BaseHandler, notificationService services.NotificationService) *NotificationHandler {
	return &NotificationHandler{BaseHandler: base, notificationService: notificationService}
}

func (h *NotificationHandler) GetUserNotifications(c *gin.Context) {
	var criteria dto.NotificationCriteria
	if err := c.ShouldBindQuery(&criteria); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
		return
	}

	resp, err := h.notificationService.GetUserNotifications(middleware.UserID(c), criteria)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	err := h.notificationService.MarkAsRead(middleware.UserID(c), c.Param("notificationID"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	if err := h.notificationService.MarkAllAsRead(middleware.UserID(c)); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *NotificationHandler) GetUnreadCount(c *gin.Context) {
	count, err := h.notificationService.GetUnreadCount(middleware.UserID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}
