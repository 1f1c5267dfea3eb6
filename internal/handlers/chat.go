package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"groupchat-service/internal/identity"
	"groupchat-service/internal/middleware"
	"groupchat-service/internal/models"
	"groupchat-service/internal/observability"
	"groupchat-service/internal/repositories"
	"groupchat-service/internal/telemetry"
)

// ChatHandler manages the chat log endpoints.
type ChatHandler struct {
	chatRepo     repositories.ChatRepository
	reactionRepo repositories.ReactionRepository
	users        identity.Resolver
	audit        *telemetry.AuditEmitter
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(chatRepo repositories.ChatRepository, reactionRepo repositories.ReactionRepository, users identity.Resolver, audit *telemetry.AuditEmitter) *ChatHandler {
	return &ChatHandler{
		chatRepo:     chatRepo,
		reactionRepo: reactionRepo,
		users:        users,
		audit:        audit,
	}
}

// PostMessage handles POST /chat/:chat_id/messages. Only participants may
// append; every other participant's unread counter is incremented.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}
	principal, _ := middleware.Principal(c)

	chat, err := h.chatRepo.ResolveChat(c.Request.Context(), chatID)
	if err != nil {
		respondError(c, err, "failed to load chat")
		return
	}

	member, err := h.chatRepo.IsParticipant(c.Request.Context(), chat.ID, principal.ID)
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		respondError(c, err, "membership check failed")
		return
	}
	if !member {
		h.emitAudit(c, "ERROR", "not allowed")
		forbidden(c, "not a chat participant")
		return
	}

	var req struct {
		Content     string              `json:"content"`
		ContentType string              `json:"content_type"`
		Attachments []models.Attachment `json:"attachments"`
		ReplyTo     *int                `json:"reply_to"`
		Quiz        json.RawMessage     `json:"quiz"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		badRequest(c, err.Error())
		return
	}
	if req.ContentType == "" {
		req.ContentType = models.ContentText
	}
	if msg, ok := validateDraft(req.ContentType, req.Content, req.Attachments, req.Quiz); !ok {
		badRequest(c, msg)
		return
	}

	view, err := h.chatRepo.CreateMessage(c.Request.Context(), chat.ID, repositories.MessageDraft{
		SenderID:    principal.ID,
		ContentType: req.ContentType,
		Content:     req.Content,
		ReplyTo:     req.ReplyTo,
		Quiz:        req.Quiz,
		Attachments: req.Attachments,
	})
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		respondError(c, err, "failed to store message")
		return
	}
	view.SenderName = principal.Username
	view.SenderAvatar = principal.Avatar

	observability.IncMessageSent(req.ContentType)
	h.emitAudit(c, "INFO", "Message sent")
	c.JSON(http.StatusCreated, gin.H{"message": view})
}

// GetMessages handles GET /chat/:chat_id/messages. Reading a page merges
// the reader's receipts idempotently and resets their unread counter, so
// repeated overlapping polls from the same client are harmless.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}
	principal, _ := middleware.Principal(c)

	chat, err := h.chatRepo.ResolveChat(c.Request.Context(), chatID)
	if err != nil {
		respondError(c, err, "failed to load chat")
		return
	}

	limit := repositories.DefaultPageSize
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			badRequest(c, "invalid limit")
			return
		}
		limit = parsed
	}

	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(c, "invalid before timestamp")
			return
		}
		before = &parsed
	}

	page, err := h.chatRepo.ListMessages(c.Request.Context(), chat.ID, principal.ID, limit, before)
	if err != nil {
		respondError(c, err, "failed to load messages")
		return
	}
	if page.UnreadReset {
		observability.IncUnreadReset()
	}

	messages := h.resolveSenders(c, page.Messages)
	c.JSON(http.StatusOK, gin.H{"messages": messages, "has_more": page.HasMore})
}

// AddReaction handles POST /chat/:chat_id/messages/:message_id/reactions.
// A second reaction by the same user replaces the first.
func (h *ChatHandler) AddReaction(c *gin.Context) {
	chatID, messageID, ok := parseChatAndMessageIDs(c)
	if !ok {
		return
	}
	principal, _ := middleware.Principal(c)

	chat, err := h.chatRepo.ResolveChat(c.Request.Context(), chatID)
	if err != nil {
		respondError(c, err, "failed to load chat")
		return
	}

	var req struct {
		Reaction string `json:"reaction" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	reactions, err := h.reactionRepo.UpsertReaction(c.Request.Context(), chat.ID, messageID, principal.ID, req.Reaction)
	if err != nil {
		respondError(c, err, "failed to store reaction")
		return
	}

	observability.IncReaction()
	h.emitAudit(c, "INFO", "Reaction added")
	c.JSON(http.StatusOK, gin.H{"reactions": reactions})
}

// DeleteMessage handles DELETE /chat/:chat_id/messages/:message_id. The
// message is hidden from listings but preserved; only the sender may delete.
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	chatID, messageID, ok := parseChatAndMessageIDs(c)
	if !ok {
		return
	}
	principal, _ := middleware.Principal(c)

	chat, err := h.chatRepo.ResolveChat(c.Request.Context(), chatID)
	if err != nil {
		respondError(c, err, "failed to load chat")
		return
	}

	msg, err := h.chatRepo.GetMessage(c.Request.Context(), chat.ID, messageID)
	if err != nil {
		respondError(c, err, "failed to load message")
		return
	}
	if msg.SenderID != principal.ID {
		h.emitAudit(c, "ERROR", "not allowed to delete")
		forbidden(c, "only the sender may delete")
		return
	}

	if err := h.chatRepo.SoftDeleteMessage(c.Request.Context(), chat.ID, messageID, principal.ID); err != nil {
		respondError(c, err, "could not delete message")
		return
	}

	h.emitAudit(c, "INFO", "Message deleted")
	c.Status(http.StatusNoContent)
}

func (h *ChatHandler) resolveSenders(c *gin.Context, messages []models.MessageView) []models.MessageView {
	if h.users == nil || len(messages) == 0 {
		return messages
	}

	senderIDs := make([]int, 0, len(messages))
	seen := map[int]struct{}{}
	for _, m := range messages {
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			senderIDs = append(senderIDs, m.SenderID)
		}
	}

	profiles, err := h.users.BulkUsers(c.Request.Context(), senderIDs)
	if err != nil {
		// Display names are decoration; the page is still valid without them.
		return messages
	}
	byID := map[int]models.UserProfile{}
	for _, p := range profiles {
		byID[p.ID] = p
	}

	for i := range messages {
		if profile, ok := byID[messages[i].SenderID]; ok {
			messages[i].SenderName = profile.Username
			messages[i].SenderAvatar = profile.Avatar
		}
	}
	return messages
}

func (h *ChatHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), ipFromContext(c), userIDFromContext(c))
}

func validateDraft(contentType, content string, attachments []models.Attachment, quiz json.RawMessage) (string, bool) {
	switch contentType {
	case models.ContentText:
		if content == "" {
			return "content is required for text messages", false
		}
	case models.ContentImage, models.ContentFile:
		if len(attachments) == 0 {
			return "attachments are required for image and file messages", false
		}
	case models.ContentQuiz:
		if len(quiz) == 0 {
			return "quiz payload is required for quiz messages", false
		}
	case models.ContentPoll:
		return "polls are created through the poll endpoint", false
	default:
		return "unknown content type", false
	}
	return "", true
}

func parseChatID(c *gin.Context) (int, bool) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		badRequest(c, "invalid chat id")
		return 0, false
	}
	return chatID, true
}

func parseChatAndMessageIDs(c *gin.Context) (int, int, bool) {
	chatID, ok := parseChatID(c)
	if !ok {
		return 0, 0, false
	}
	messageID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil {
		badRequest(c, "invalid message id")
		return 0, 0, false
	}
	return chatID, messageID, true
}
