package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"groupchat-service/internal/repositories"
)

// Stable error codes surfaced to callers.
const (
	codeValidation   = "validation_error"
	codeNotFound     = "not_found"
	codeConflict     = "conflict"
	codeForbidden    = "forbidden"
	codeInvalidState = "invalid_state"
	codeInternal     = "internal"
)

// respondError maps repository sentinel errors onto the failure taxonomy.
// Unknown errors are reported as a generic internal failure so persistence
// details never leak to clients.
func respondError(c *gin.Context, err error, internalMsg string) {
	switch {
	case errors.Is(err, repositories.ErrGroupNotFound),
		errors.Is(err, repositories.ErrChatNotFound),
		errors.Is(err, repositories.ErrMessageNotFound),
		errors.Is(err, repositories.ErrPollNotFound):
		c.JSON(http.StatusNotFound, gin.H{"code": codeNotFound, "error": err.Error()})
	case errors.Is(err, repositories.ErrAlreadyMember),
		errors.Is(err, repositories.ErrRequestPending):
		c.JSON(http.StatusConflict, gin.H{"code": codeConflict, "error": err.Error()})
	case errors.Is(err, repositories.ErrPollClosed):
		c.JSON(http.StatusConflict, gin.H{"code": codeInvalidState, "error": err.Error()})
	case errors.Is(err, repositories.ErrOptionOutOfRange):
		c.JSON(http.StatusBadRequest, gin.H{"code": codeValidation, "error": err.Error()})
	case errors.Is(err, repositories.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"code": codeForbidden, "error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"code": codeInternal, "error": internalMsg})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"code": codeValidation, "error": msg})
}

func forbidden(c *gin.Context, msg string) {
	c.JSON(http.StatusForbidden, gin.H{"code": codeForbidden, "error": msg})
}
