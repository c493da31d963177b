package handler

import (
	"context"
	"net/http"

	"skillfund/internal/model"
	"skillfund/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type MessageService interface {
	Contacts(ctx context.Context, actor service.Actor, limit int) ([]*model.Contact, error)
	Conversation(ctx context.Context, actor service.Actor, contactID uuid.UUID) ([]*model.Message, error)
	Send(ctx context.Context, actor service.Actor, recipientID uuid.UUID, content string) (*model.Message, error)
}

type MessageHandler struct {
	messages MessageService
	logger   *zap.Logger
}

func NewMessageHandler(messages MessageService, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, logger: logger}
}

// Contacts handles GET /api/messages/contacts?limit=
func (h *MessageHandler) Contacts(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	contacts, err := h.messages.Contacts(c.Request.Context(), actor, intQuery(c, "limit"))
	if err != nil {
		respondError(c, h.logger, err, "failed to fetch contacts")
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": contacts})
}

// Conversation handles GET /api/messages/:contactId
func (h *MessageHandler) Conversation(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	contactID, ok := uuidParam(c, "contactId")
	if !ok {
		return
	}
	msgs, err := h.messages.Conversation(c.Request.Context(), actor, contactID)
	if err != nil {
		respondError(c, h.logger, err, "failed to fetch messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// Send handles POST /api/messages/:contactId
func (h *MessageHandler) Send(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	contactID, ok := uuidParam(c, "contactId")
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if !bindJSON(c, &req) {
		return
	}

	m, err := h.messages.Send(c.Request.Context(), actor, contactID, req.Content)
	if err != nil {
		respondError(c, h.logger, err, "failed to send message")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": m})
}
