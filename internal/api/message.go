package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"helpdesk-collab/backend/internal/models"
	"helpdesk-collab/backend/internal/service"
	"helpdesk-collab/backend/pkg/logger"
)

// MessageHandler exposes ticket chat history and HTTP-originated sends. HTTP
// sends run the same pipeline as socket sends, so clients without a live
// connection still reach the room.
type MessageHandler struct {
	messages *service.MessageService
	logger   *logger.Logger
}

func NewMessageHandler(messages *service.MessageService, logger *logger.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, logger: logger}
}

type sendMessageRequest struct {
	Content     string `json:"content" binding:"required"`
	MessageType string `json:"message_type"`
	IsAI        bool   `json:"is_ai"`
}

type feedbackRequest struct {
	Feedback string `json:"feedback" binding:"required"`
}

// Send handles POST /tickets/:id/messages.
func (h *MessageHandler) Send(c *gin.Context) {
	ticketID, ok := pathID(c)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	message, err := h.messages.SendChatMessage(c.Request.Context(), actorFrom(c), service.SendMessageInput{
		TicketID: ticketID,
		Content:  req.Content,
		Type:     models.MessageType(req.MessageType),
		IsAI:     req.IsAI,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, message)
}

// List handles GET /tickets/:id/messages.
func (h *MessageHandler) List(c *gin.Context) {
	ticketID, ok := pathID(c)
	if !ok {
		return
	}

	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 50)
	messages, total, err := h.messages.ListMessages(c.Request.Context(), actorFrom(c), ticketID, page, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
		"total":    total,
		"page":     page,
		"limit":    limit,
	})
}

// SetFeedback handles PUT /messages/:id/feedback.
func (h *MessageHandler) SetFeedback(c *gin.Context) {
	messageID, ok := pathID(c)
	if !ok {
		return
	}

	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	if err := h.messages.SetFeedback(c.Request.Context(), actorFrom(c), messageID, models.Feedback(req.Feedback)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
