package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"groupchat-service/internal/middleware"
	"groupchat-service/internal/models"
	"groupchat-service/internal/observability"
	"groupchat-service/internal/quizgen"
	"groupchat-service/internal/repositories"
	"groupchat-service/internal/telemetry"
)

// QuizHandler generates quizzes through the quiz service and shares them
// into a chat as quiz messages.
type QuizHandler struct {
	chatRepo  repositories.ChatRepository
	generator quizgen.Generator
	audit     *telemetry.AuditEmitter
}

// NewQuizHandler constructs a QuizHandler.
func NewQuizHandler(chatRepo repositories.ChatRepository, generator quizgen.Generator, audit *telemetry.AuditEmitter) *QuizHandler {
	return &QuizHandler{chatRepo: chatRepo, generator: generator, audit: audit}
}

// ShareQuiz handles POST /chat/:chat_id/quiz. The generated payload is
// stored verbatim on the message; this service never interprets it.
func (h *QuizHandler) ShareQuiz(c *gin.Context) {
	chatID, ok := parseChatID(c)
	if !ok {
		return
	}
	principal, _ := middleware.Principal(c)

	var req struct {
		Category   string `json:"category" binding:"required"`
		Count      int    `json:"count"`
		Difficulty string `json:"difficulty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.Count <= 0 {
		req.Count = 5
	}

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

	payload, err := h.generator.Generate(c.Request.Context(), quizgen.Request{
		Category:   req.Category,
		Count:      req.Count,
		Difficulty: req.Difficulty,
	})
	if err != nil {
		if errors.Is(err, quizgen.ErrDisabled) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"code": codeInternal, "error": "quiz generation is not configured"})
			return
		}
		h.emitAudit(c, "ERROR", "quiz generation failed")
		respondError(c, err, "quiz generation failed")
		return
	}

	view, err := h.chatRepo.CreateMessage(c.Request.Context(), chat.ID, repositories.MessageDraft{
		SenderID:    principal.ID,
		ContentType: models.ContentQuiz,
		Quiz:        payload,
	})
	if err != nil {
		respondError(c, err, "failed to share quiz")
		return
	}
	view.SenderName = principal.Username
	view.SenderAvatar = principal.Avatar

	observability.IncMessageSent(models.ContentQuiz)
	h.emitAudit(c, "INFO", "Quiz shared")
	c.JSON(http.StatusCreated, gin.H{"message": view})
}

func (h *QuizHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), ipFromContext(c), userIDFromContext(c))
}
