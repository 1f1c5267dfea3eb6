package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"

	"groupchat-service/internal/middleware"
	"groupchat-service/internal/models"
	"groupchat-service/internal/repositories"
	"groupchat-service/internal/telemetry"
)

// GroupHandler manages the group directory endpoints.
type GroupHandler struct {
	groupRepo repositories.GroupRepository
	audit     *telemetry.AuditEmitter
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(groupRepo repositories.GroupRepository, audit *telemetry.AuditEmitter) *GroupHandler {
	return &GroupHandler{groupRepo: groupRepo, audit: audit}
}

// CreateGroup handles POST /chat/groups. The group, its owner membership,
// and the paired chat are created as one unit of work.
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	principal, ok := middleware.Principal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "unauthorized", "error": "missing principal"})
		return
	}

	var req struct {
		Name        string               `json:"name" binding:"required"`
		Description string               `json:"description"`
		Category    string               `json:"category"`
		Tags        []string             `json:"tags"`
		Settings    models.GroupSettings `json:"settings"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		badRequest(c, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		badRequest(c, "group name is required")
		return
	}

	group, chat, err := h.groupRepo.CreateGroup(c.Request.Context(), models.Group{
		Name:             strings.TrimSpace(req.Name),
		Description:      req.Description,
		Category:         req.Category,
		Tags:             pq.StringArray(req.Tags),
		CreatedBy:        principal.ID,
		IsPrivate:        req.Settings.IsPrivate,
		AllowMemberPolls: req.Settings.AllowMemberPolls,
	})
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		respondError(c, err, "could not create group")
		return
	}

	h.emitAudit(c, "INFO", "Group created")
	c.JSON(http.StatusCreated, gin.H{"group": group, "chat": chat})
}

// ListGroups handles GET /chat/groups. Auth is optional; anonymous callers
// never see private groups and get no membership annotations.
func (h *GroupHandler) ListGroups(c *gin.Context) {
	var viewerID *int
	if principal, ok := middleware.Principal(c); ok {
		viewerID = &principal.ID
	}

	groups, err := h.groupRepo.ListGroups(c.Request.Context(), viewerID, c.Query("category"), c.Query("search"))
	if err != nil {
		respondError(c, err, "failed to load groups")
		return
	}
	if groups == nil {
		groups = []models.GroupSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// JoinGroup handles POST /chat/groups/:group_id/join.
func (h *GroupHandler) JoinGroup(c *gin.Context) {
	groupID, ok := parseGroupID(c)
	if !ok {
		return
	}
	userID := c.GetInt(middleware.UserIDKey)

	result, err := h.groupRepo.JoinGroup(c.Request.Context(), groupID, userID)
	if err != nil {
		respondError(c, err, "could not join group")
		return
	}

	if result.Pending {
		h.emitAudit(c, "INFO", "Join request queued")
		c.JSON(http.StatusOK, gin.H{"pending": true, "message": "join request sent"})
		return
	}

	h.emitAudit(c, "INFO", "Joined group")
	c.JSON(http.StatusOK, gin.H{"group": result.Group})
}

// LeaveGroup handles POST /chat/groups/:group_id/leave. Leaving a group the
// caller is not in succeeds silently.
func (h *GroupHandler) LeaveGroup(c *gin.Context) {
	groupID, ok := parseGroupID(c)
	if !ok {
		return
	}
	userID := c.GetInt(middleware.UserIDKey)

	if err := h.groupRepo.LeaveGroup(c.Request.Context(), groupID, userID); err != nil {
		respondError(c, err, "could not leave group")
		return
	}

	h.emitAudit(c, "INFO", "Left group")
	c.JSON(http.StatusOK, gin.H{"message": "left group"})
}

func (h *GroupHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), ipFromContext(c), userIDFromContext(c))
}

func parseGroupID(c *gin.Context) (int, bool) {
	groupID, err := strconv.Atoi(c.Param("group_id"))
	if err != nil {
		badRequest(c, "invalid group id")
		return 0, false
	}
	return groupID, true
}
