package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chat-app/internal/middleware"
	"chat-app/internal/repositories"
	"chat-app/internal/telemetry"
	"chat-app/internal/uploads"
	"chat-app/internal/ws"
)

// MessageHandler manages the sidebar, conversation and send endpoints.
type MessageHandler struct {
	users      repositories.UserRepository
	messages   repositories.MessageRepository
	uploader   uploads.Uploader
	dispatcher ws.Dispatcher
	audit      *telemetry.AuditEmitter
	logger     *zap.SugaredLogger
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(users repositories.UserRepository, messages repositories.MessageRepository, uploader uploads.Uploader, dispatcher ws.Dispatcher, audit *telemetry.AuditEmitter, logger *zap.SugaredLogger) *MessageHandler {
	return &MessageHandler{
		users:      users,
		messages:   messages,
		uploader:   uploader,
		dispatcher: dispatcher,
		audit:      audit,
		logger:     logger,
	}
}

// ListUsers returns every other user plus per-sender unseen message counts.
func (h *MessageHandler) ListUsers(c *gin.Context) {
	viewerID := c.GetInt(middleware.UserIDKey)

	users, err := h.users.ListOthers(c.Request.Context(), viewerID)
	if err != nil {
		h.logger.Errorw("user list failed", "viewerId", viewerID, "error", err)
		fail(c, http.StatusInternalServerError, "failed to load users")
		return
	}

	unseen, err := h.messages.UnseenCounts(c.Request.Context(), viewerID)
	if err != nil {
		h.logger.Errorw("unseen counts failed", "viewerId", viewerID, "error", err)
		fail(c, http.StatusInternalServerError, "failed to load unseen counts")
		return
	}

	// Keys become strings in JSON either way; stringify explicitly so the
	// client sees {"2": 3} rather than relying on map marshalling rules.
	unseenByID := make(map[string]int, len(unseen))
	for senderID, count := range unseen {
		unseenByID[strconv.Itoa(senderID)] = count
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"filteredUsers":  users,
		"unseenMessages": unseenByID,
	})
}

// GetConversation returns the full dialog with one counterpart and, as a side
// effect, marks every counterpart-to-viewer message as seen.
func (h *MessageHandler) GetConversation(c *gin.Context) {
	counterpartID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid user id")
		return
	}
	viewerID := c.GetInt(middleware.UserIDKey)

	msgs, err := h.messages.Conversation(c.Request.Context(), viewerID, counterpartID)
	if err != nil {
		h.logger.Errorw("conversation load failed", "viewerId", viewerID, "counterpartId", counterpartID, "error", err)
		fail(c, http.StatusInternalServerError, "failed to load messages")
		return
	}

	if err := h.messages.MarkConversationSeen(c.Request.Context(), viewerID, counterpartID); err != nil {
		// The fetch already succeeded; stale unseen counts heal on the next
		// fetch, so log and keep going.
		h.logger.Warnw("mark conversation seen failed", "viewerId", viewerID, "counterpartId", counterpartID, "error", err)
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "messages": msgs})
}

// MarkSeen flips the seen flag on a single message by id.
func (h *MessageHandler) MarkSeen(c *gin.Context) {
	messageID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid message id")
		return
	}

	if err := h.messages.MarkSeen(c.Request.Context(), messageID); err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			fail(c, http.StatusNotFound, "message not found")
			return
		}
		h.logger.Errorw("mark seen failed", "messageId", messageID, "error", err)
		fail(c, http.StatusInternalServerError, "could not mark message")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Send persists a message to the recipient and pushes it to their live
// connection when one exists. Persistence success decides the response; live
// delivery is best effort.
func (h *MessageHandler) Send(c *gin.Context) {
	recipientID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid user id")
		return
	}
	senderID := c.GetInt(middleware.UserIDKey)

	var req struct {
		Text  string `json:"text"`
		Image string `json:"image"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" && req.Image == "" {
		fail(c, http.StatusBadRequest, "message needs text or an image")
		return
	}

	if _, err := h.users.GetByID(c.Request.Context(), recipientID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			fail(c, http.StatusNotFound, "recipient not found")
			return
		}
		h.logger.Errorw("recipient lookup failed", "recipientId", recipientID, "error", err)
		fail(c, http.StatusInternalServerError, "server error")
		return
	}

	imageURL := ""
	if req.Image != "" {
		url, err := h.uploader.Upload(c.Request.Context(), req.Image)
		if err != nil {
			h.logger.Warnw("image upload failed", "senderId", senderID, "error", err)
			fail(c, http.StatusBadGateway, "could not upload image")
			return
		}
		imageURL = url
	}

	msg, err := h.messages.Create(c.Request.Context(), senderID, recipientID, req.Text, imageURL)
	if err != nil {
		h.logger.Errorw("message store failed", "senderId", senderID, "recipientId", recipientID, "error", err)
		fail(c, http.StatusInternalServerError, "failed to store message")
		return
	}

	h.dispatcher.Dispatch(msg)
	h.audit.Emit(c.Request.Context(), "INFO", "message sent", requestIDFromContext(c), &senderID)

	c.JSON(http.StatusCreated, gin.H{"success": true, "newMessage": msg})
}
