package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"groupchat-service/internal/middleware"
	"groupchat-service/internal/models"
	"groupchat-service/internal/observability"
	"groupchat-service/internal/repositories"
	"groupchat-service/internal/telemetry"
)

// PollHandler manages poll creation and voting.
type PollHandler struct {
	chatRepo  repositories.ChatRepository
	groupRepo repositories.GroupRepository
	pollRepo  repositories.PollRepository
	audit     *telemetry.AuditEmitter
}

// NewPollHandler constructs a PollHandler.
func NewPollHandler(chatRepo repositories.ChatRepository, groupRepo repositories.GroupRepository, pollRepo repositories.PollRepository, audit *telemetry.AuditEmitter) *PollHandler {
	return &PollHandler{
		chatRepo:  chatRepo,
		groupRepo: groupRepo,
		pollRepo:  pollRepo,
		audit:     audit,
	}
}

// CreatePoll handles POST /chat/:chat_id/polls. When the owning group does
// not allow member polls, only admins may create. The poll message goes
// through the same append path as any other message, so read receipts and
// unread fan-out behave identically.
func (h *PollHandler) CreatePoll(c *gin.Context) {
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
		respondError(c, err, "membership check failed")
		return
	}
	if !member {
		forbidden(c, "not a chat participant")
		return
	}

	if chat.GroupID != nil {
		group, err := h.groupRepo.GetGroup(c.Request.Context(), *chat.GroupID)
		if err != nil {
			respondError(c, err, "failed to load group")
			return
		}
		if !group.AllowMemberPolls {
			role, _, err := h.groupRepo.MemberRole(c.Request.Context(), group.ID, principal.ID)
			if err != nil {
				respondError(c, err, "membership check failed")
				return
			}
			if role != models.RoleAdmin {
				h.emitAudit(c, "ERROR", "not allowed to create polls")
				forbidden(c, "only admins may create polls in this group")
				return
			}
		}
	}

	var req struct {
		Question        string   `json:"question" binding:"required"`
		Options         []string `json:"options" binding:"required"`
		DurationMinutes int      `json:"duration_minutes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		badRequest(c, "question is required")
		return
	}
	if len(req.Options) < 2 {
		badRequest(c, "a poll needs at least two options")
		return
	}
	if req.DurationMinutes < 0 {
		badRequest(c, "duration must not be negative")
		return
	}

	view, err := h.chatRepo.CreateMessage(c.Request.Context(), chat.ID, repositories.MessageDraft{
		SenderID:    principal.ID,
		ContentType: models.ContentPoll,
		Poll: &repositories.PollDraft{
			Question: req.Question,
			Options:  req.Options,
			EndsAt:   time.Now().Add(time.Duration(req.DurationMinutes) * time.Minute),
		},
	})
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		respondError(c, err, "failed to create poll")
		return
	}
	view.SenderName = principal.Username
	view.SenderAvatar = principal.Avatar

	observability.IncMessageSent(models.ContentPoll)
	h.emitAudit(c, "INFO", "Poll created")
	c.JSON(http.StatusCreated, gin.H{"message": view})
}

// Vote handles POST /chat/:chat_id/messages/:message_id/vote. A re-vote
// moves the voter to the new option; voting after the deadline or on an
// out-of-range option is rejected.
func (h *PollHandler) Vote(c *gin.Context) {
	chatID, messageID, ok := parseChatAndMessageIDs(c)
	if !ok {
		return
	}
	principal, _ := middleware.Principal(c)

	var req struct {
		OptionIndex *int `json:"option_index" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "option_index is required")
		return
	}

	chat, err := h.chatRepo.ResolveChat(c.Request.Context(), chatID)
	if err != nil {
		respondError(c, err, "failed to load chat")
		return
	}

	poll, err := h.pollRepo.CastVote(c.Request.Context(), chat.ID, messageID, principal.ID, *req.OptionIndex)
	if err != nil {
		respondError(c, err, "failed to record vote")
		return
	}

	observability.IncVoteCast()
	h.emitAudit(c, "INFO", "Vote cast")
	c.JSON(http.StatusOK, gin.H{"poll": poll})
}

// RetractVote handles DELETE /chat/:chat_id/messages/:message_id/vote.
// Retracting when no vote exists succeeds and returns the current poll.
func (h *PollHandler) RetractVote(c *gin.Context) {
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

	poll, err := h.pollRepo.RetractVote(c.Request.Context(), chat.ID, messageID, principal.ID)
	if err != nil {
		respondError(c, err, "failed to retract vote")
		return
	}

	h.emitAudit(c, "INFO", "Vote retracted")
	c.JSON(http.StatusOK, gin.H{"poll": poll})
}

func (h *PollHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), ipFromContext(c), userIDFromContext(c))
}
