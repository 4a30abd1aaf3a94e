package handlers

import (
	"net/http"

	"commhub_backend/internal/middleware"
	"commhub_backend/internal/services"
	"commhub_backend/internal/services/dto"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	*BaseHandler
	membershipService services.MembershipService
	messageService    services.MessageService
}

func NewChatHandler(
	base *BaseHandler,
	membershipService services.MembershipService,
	messageService services.MessageService,
) *ChatHandler {
	return &ChatHandler{
		BaseHandler:       base,
		membershipService: membershipService,
		messageService:    messageService,
	}
}

// Conversation handlers

func (h *ChatHandler) GetOrCreateChannel(c *gin.Context) {
	var req dto.CreateChannelRequest
	if !h.BindAndValidate(c, &req) {
		return
	}

	resp, err := h.membershipService.GetOrCreateChannel(middleware.OrgID(c), req.Name, middleware.UserID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) StartDirectMessage(c *gin.Context) {
	var req dto.StartDirectMessageRequest
	if !h.BindAndValidate(c, &req) {
		return
	}

	resp, err := h.membershipService.StartDirectMessage(middleware.UserID(c), req.UserID, middleware.OrgID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) JoinConversation(c *gin.Context) {
	err := h.membershipService.JoinConversation(c.Param("conversationID"), middleware.UserID(c), middleware.OrgID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ChatHandler) GetConversation(c *gin.Context) {
	resp, err := h.membershipService.GetConversation(c.Param("conversationID"), middleware.UserID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) GetUserConversations(c *gin.Context) {
	resp, err := h.membershipService.GetUserConversations(middleware.UserID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) MuteConversation(c *gin.Context) {
	var req dto.MuteRequest
	if !h.BindAndValidate(c, &req) {
		return
	}

	err := h.membershipService.MuteConversation(c.Param("conversationID"), middleware.UserID(c), req.Muted)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ChatHandler) ArchiveConversation(c *gin.Context) {
	err := h.membershipService.ArchiveConversation(c.Param("conversationID"), middleware.UserID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Message handlers

func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req dto.SendMessageRequest
	if !h.BindAndValidate(c, &req) {
		return
	}

	resp, err := h.messageService.SendMessage(middleware.UserID(c), &req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	var criteria dto.MessageCriteria
	if err := c.ShouldBindQuery(&criteria); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
		return
	}

	resp, err := h.messageService.GetConversationMessages(c.Param("conversationID"), middleware.UserID(c), criteria)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) EditMessage(c *gin.Context) {
	var req dto.EditMessageRequest
	if !h.BindAndValidate(c, &req) {
		return
	}

	resp, err := h.messageService.EditMessage(c.Param("messageID"), middleware.UserID(c), req.Content)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	err := h.messageService.DeleteMessage(c.Param("messageID"), middleware.UserID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Read state handlers

func (h *ChatHandler) MarkAsRead(c *gin.Context) {
	err := h.messageService.MarkAsRead(c.Param("conversationID"), middleware.UserID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ChatHandler) GetUnreadCounts(c *gin.Context) {
	resp, err := h.messageService.GetUnreadCounts(middleware.UserID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
