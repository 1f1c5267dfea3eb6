package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"groupchat-service/internal/middleware"
	"groupchat-service/internal/mocks"
	"groupchat-service/internal/models"
	"groupchat-service/internal/repositories"
)

func setupGroupRouter(handler *GroupHandler, principal *models.Principal) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if principal != nil {
			c.Set(middleware.PrincipalKey, *principal)
			c.Set(middleware.UserIDKey, principal.ID)
		}
		c.Next()
	})
	r.POST("/chat/groups", handler.CreateGroup)
	r.GET("/chat/groups", handler.ListGroups)
	r.POST("/chat/groups/:group_id/join", handler.JoinGroup)
	r.POST("/chat/groups/:group_id/leave", handler.LeaveGroup)
	return r
}

func TestCreateGroupSuccess(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, nil)
	router := setupGroupRouter(handler, &models.Principal{ID: 1, Username: "alice"})

	chatID := 10
	groupRepo.On("CreateGroup", mock.Anything, mock.MatchedBy(func(g models.Group) bool {
		return g.Name == "book club" && g.CreatedBy == 1 && g.IsPrivate
	})).Return(models.Group{ID: 5, Name: "book club", CreatedBy: 1, IsPrivate: true}, models.Chat{ID: chatID, GroupID: intPtr(5)}, nil).Once()

	body := bytes.NewBufferString(`{"name":"book club","settings":{"is_private":true}}`)
	req := httptest.NewRequest(http.MethodPost, "/chat/groups", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Group models.Group `json:"group"`
		Chat  models.Chat  `json:"chat"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 5, resp.Group.ID)
	assert.Equal(t, chatID, resp.Chat.ID)
	groupRepo.AssertExpectations(t)
}

func TestCreateGroupMissingName(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, nil)
	router := setupGroupRouter(handler, &models.Principal{ID: 1})

	body := bytes.NewBufferString(`{"description":"no name"}`)
	req := httptest.NewRequest(http.MethodPost, "/chat/groups", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "validation_error", resp["code"])
	groupRepo.AssertNotCalled(t, "CreateGroup")
}

func TestListGroupsAnonymous(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, nil)
	router := setupGroupRouter(handler, nil)

	groupRepo.On("ListGroups", mock.Anything, (*int)(nil), "", "").
		Return([]models.GroupSummary{{Group: models.Group{ID: 2, Name: "public"}, MemberCount: 4}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chat/groups", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	groupRepo.AssertExpectations(t)
}

func TestListGroupsWithFilters(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, nil)
	router := setupGroupRouter(handler, &models.Principal{ID: 7})

	groupRepo.On("ListGroups", mock.Anything, intPtr(7), "books", "mystery").
		Return([]models.GroupSummary(nil), nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chat/groups?category=books&search=mystery", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Groups []models.GroupSummary `json:"groups"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotNil(t, resp.Groups)
	groupRepo.AssertExpectations(t)
}

func TestJoinPublicGroup(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, nil)
	router := setupGroupRouter(handler, &models.Principal{ID: 3})

	groupRepo.On("JoinGroup", mock.Anything, 5, 3).
		Return(repositories.JoinResult{Group: models.Group{ID: 5, Name: "open"}}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chat/groups/5/join", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Contains(t, resp, "group")
	assert.NotContains(t, resp, "pending")
	groupRepo.AssertExpectations(t)
}

func TestJoinPrivateGroupPending(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, nil)
	router := setupGroupRouter(handler, &models.Principal{ID: 3})

	groupRepo.On("JoinGroup", mock.Anything, 5, 3).
		Return(repositories.JoinResult{Pending: true}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chat/groups/5/join", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, true, resp["pending"])
	groupRepo.AssertExpectations(t)
}

func TestJoinGroupAlreadyMember(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, nil)
	router := setupGroupRouter(handler, &models.Principal{ID: 3})

	groupRepo.On("JoinGroup", mock.Anything, 5, 3).
		Return(repositories.JoinResult{}, repositories.ErrAlreadyMember).Once()

	req := httptest.NewRequest(http.MethodPost, "/chat/groups/5/join", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "conflict", resp["code"])
	groupRepo.AssertExpectations(t)
}

func TestJoinGroupRequestAlreadyPending(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, nil)
	router := setupGroupRouter(handler, &models.Principal{ID: 3})

	groupRepo.On("JoinGroup", mock.Anything, 5, 3).
		Return(repositories.JoinResult{}, repositories.ErrRequestPending).Once()

	req := httptest.NewRequest(http.MethodPost, "/chat/groups/5/join", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	groupRepo.AssertExpectations(t)
}

func TestJoinGroupNotFound(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, nil)
	router := setupGroupRouter(handler, &models.Principal{ID: 3})

	groupRepo.On("JoinGroup", mock.Anything, 99, 3).
		Return(repositories.JoinResult{}, repositories.ErrGroupNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/chat/groups/99/join", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	groupRepo.AssertExpectations(t)
}

func TestLeaveGroupIdempotent(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, nil)
	router := setupGroupRouter(handler, &models.Principal{ID: 3})

	groupRepo.On("LeaveGroup", mock.Anything, 5, 3).Return(nil).Twice()

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/chat/groups/5/leave", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	groupRepo.AssertExpectations(t)
}

func TestLeaveGroupRepoError(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, nil)
	router := setupGroupRouter(handler, &models.Principal{ID: 3})

	groupRepo.On("LeaveGroup", mock.Anything, 5, 3).Return(assert.AnError).Once()

	req := httptest.NewRequest(http.MethodPost, "/chat/groups/5/leave", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	groupRepo.AssertExpectations(t)
}

func intPtr(v int) *int { return &v }
