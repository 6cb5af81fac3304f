package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"presence-chat/internal/models"
	"presence-chat/internal/repositories"
	"presence-chat/internal/telemetry"
	"presence-chat/internal/ws"
)

// MessageHandler manages direct-message endpoints. Every mutation is
// committed to the store first and only then handed to the delivery
// gateway for fanout.
type MessageHandler struct {
	userRepo    repositories.UserRepository
	messageRepo repositories.MessageRepository
	gateway     *ws.Gateway
	audit       *telemetry.AuditEmitter
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(userRepo repositories.UserRepository, messageRepo repositories.MessageRepository, gateway *ws.Gateway, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{
		userRepo:    userRepo,
		messageRepo: messageRepo,
		gateway:     gateway,
		audit:       audit,
	}
}

// ListUsers returns every user except the caller, for the sidebar.
func (h *MessageHandler) ListUsers(c *gin.Context) {
	userID := c.GetInt("userID")

	users, err := h.userRepo.ListOthers(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// GetDirectMessages returns the thread between the caller and :id.
func (h *MessageHandler) GetDirectMessages(c *gin.Context) {
	peerID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	userID := c.GetInt("userID")
	msgs, err := h.messageRepo.ListDirectMessages(c.Request.Context(), userID, peerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// SearchMessages finds the caller's messages matching the query.
func (h *MessageHandler) SearchMessages(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query"})
		return
	}

	userID := c.GetInt("userID")
	msgs, err := h.messageRepo.SearchMessages(c.Request.Context(), userID, query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// SendMessage stores a direct message and fans it out to the receiver.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	receiverID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	userID := c.GetInt("userID")
	if userID == receiverID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot message yourself"})
		return
	}

	var req struct {
		Text  string `json:"text"`
		Image string `json:"image"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Text == "" && req.Image == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is empty"})
		return
	}

	if _, err := h.userRepo.GetUser(c.Request.Context(), receiverID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrUserNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "receiver not found"})
		return
	}

	msg, err := h.messageRepo.CreateDirectMessage(c.Request.Context(), userID, receiverID, req.Text, req.Image)
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	h.gateway.MessageCreated(c.Request.Context(), msg)
	c.JSON(http.StatusCreated, msg)
}

// AddReaction records the caller's reaction and fans the updated message
// out to both parties.
func (h *MessageHandler) AddReaction(c *gin.Context) {
	msg, ok := h.loadDirectMessage(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	if msg.SenderID != userID && *msg.ReceiverID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
		return
	}

	var req struct {
		Emoji string `json:"emoji" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.messageRepo.SetReaction(c.Request.Context(), msg.ID, userID, req.Emoji); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store reaction"})
		return
	}

	updated, err := h.messageRepo.GetMessage(c.Request.Context(), msg.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load message"})
		return
	}

	h.gateway.MessageReacted(c.Request.Context(), updated)
	c.JSON(http.StatusOK, updated)
}

// EditMessage replaces the text of the caller's own message and fans the
// edit out to the counterpart.
func (h *MessageHandler) EditMessage(c *gin.Context) {
	msg, ok := h.loadDirectMessage(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	if msg.SenderID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only sender can edit"})
		return
	}

	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.messageRepo.EditMessage(c.Request.Context(), msg.ID, req.Text)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "could not edit message"})
		return
	}

	h.gateway.MessageEdited(c.Request.Context(), updated)
	c.JSON(http.StatusOK, updated)
}

// DeleteMessage removes the caller's own message and notifies the
// counterpart.
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	msg, ok := h.loadDirectMessage(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	if msg.SenderID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only sender can delete"})
		return
	}

	if err := h.messageRepo.DeleteMessage(c.Request.Context(), msg.ID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "could not delete message"})
		return
	}

	h.gateway.MessageDeleted(c.Request.Context(), msg)
	c.Status(http.StatusNoContent)
}

// loadDirectMessage resolves :messageId into a one-to-one message.
// Mutations are only defined for direct threads; group messages are
// rejected.
func (h *MessageHandler) loadDirectMessage(c *gin.Context) (models.Message, bool) {
	messageID, err := strconv.Atoi(c.Param("messageId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return models.Message{}, false
	}

	msg, err := h.messageRepo.GetMessage(c.Request.Context(), messageID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "message not found"})
		return models.Message{}, false
	}
	if !msg.IsDirect() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not a direct message"})
		return models.Message{}, false
	}
	return msg, true
}

func (h *MessageHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
