package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"groupchat-service/internal/middleware"
	"groupchat-service/internal/mocks"
	"groupchat-service/internal/models"
	"groupchat-service/internal/repositories"
)

func setupPollRouter(handler *PollHandler, principal models.Principal) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.PrincipalKey, principal)
		c.Set(middleware.UserIDKey, principal.ID)
		c.Next()
	})
	r.POST("/chat/:chat_id/polls", handler.CreatePoll)
	r.POST("/chat/:chat_id/messages/:message_id/vote", handler.Vote)
	r.DELETE("/chat/:chat_id/messages/:message_id/vote", handler.RetractVote)
	return r
}

func groupChat(chatID, groupID int) models.Chat {
	return models.Chat{ID: chatID, GroupID: &groupID}
}

func TestCreatePollAsMember(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewPollHandler(chatRepo, groupRepo, new(mocks.PollRepositoryMock), nil)
	router := setupPollRouter(handler, models.Principal{ID: 1, Username: "alice"})

	chatRepo.On("ResolveChat", mock.Anything, 10).Return(groupChat(10, 5), nil).Once()
	chatRepo.On("IsParticipant", mock.Anything, 10, 1).Return(true, nil).Once()
	groupRepo.On("GetGroup", mock.Anything, 5).Return(models.Group{ID: 5, AllowMemberPolls: true}, nil).Once()
	chatRepo.On("CreateMessage", mock.Anything, 10, mock.MatchedBy(func(d repositories.MessageDraft) bool {
		return d.ContentType == models.ContentPoll && d.Poll != nil &&
			d.Poll.Question == "lunch?" && len(d.Poll.Options) == 2
	})).Return(models.MessageView{
		Message: models.Message{ID: 42, ContentType: models.ContentPoll},
		Poll:    &models.Poll{MessageID: 42, Question: "lunch?"},
	}, nil).Once()

	body := bytes.NewBufferString(`{"question":"lunch?","options":["pizza","sushi"],"duration_minutes":60}`)
	req := httptest.NewRequest(http.MethodPost, "/chat/10/polls", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	chatRepo.AssertExpectations(t)
	groupRepo.AssertNotCalled(t, "MemberRole")
}

func TestCreatePollMemberPollsDisabledNonAdmin(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewPollHandler(chatRepo, groupRepo, new(mocks.PollRepositoryMock), nil)
	router := setupPollRouter(handler, models.Principal{ID: 2})

	chatRepo.On("ResolveChat", mock.Anything, 10).Return(groupChat(10, 5), nil).Once()
	chatRepo.On("IsParticipant", mock.Anything, 10, 2).Return(true, nil).Once()
	groupRepo.On("GetGroup", mock.Anything, 5).Return(models.Group{ID: 5, AllowMemberPolls: false}, nil).Once()
	groupRepo.On("MemberRole", mock.Anything, 5, 2).Return(models.RoleMember, true, nil).Once()

	body := bytes.NewBufferString(`{"question":"q","options":["a","b"]}`)
	req := httptest.NewRequest(http.MethodPost, "/chat/10/polls", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	chatRepo.AssertNotCalled(t, "CreateMessage")
}

func TestCreatePollMemberPollsDisabledAdmin(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewPollHandler(chatRepo, groupRepo, new(mocks.PollRepositoryMock), nil)
	router := setupPollRouter(handler, models.Principal{ID: 2})

	chatRepo.On("ResolveChat", mock.Anything, 10).Return(groupChat(10, 5), nil).Once()
	chatRepo.On("IsParticipant", mock.Anything, 10, 2).Return(true, nil).Once()
	groupRepo.On("GetGroup", mock.Anything, 5).Return(models.Group{ID: 5, AllowMemberPolls: false}, nil).Once()
	groupRepo.On("MemberRole", mock.Anything, 5, 2).Return(models.RoleAdmin, true, nil).Once()
	chatRepo.On("CreateMessage", mock.Anything, 10, mock.Anything).
		Return(models.MessageView{Message: models.Message{ID: 43, ContentType: models.ContentPoll}}, nil).Once()

	body := bytes.NewBufferString(`{"question":"q","options":["a","b"]}`)
	req := httptest.NewRequest(http.MethodPost, "/chat/10/polls", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	chatRepo.AssertExpectations(t)
}

func TestCreatePollTooFewOptions(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	handler := NewPollHandler(chatRepo, new(mocks.GroupRepositoryMock), new(mocks.PollRepositoryMock), nil)
	router := setupPollRouter(handler, models.Principal{ID: 1})

	chatRepo.On("ResolveChat", mock.Anything, 10).Return(models.Chat{ID: 10}, nil).Once()
	chatRepo.On("IsParticipant", mock.Anything, 10, 1).Return(true, nil).Once()

	body := bytes.NewBufferString(`{"question":"q","options":["only one"]}`)
	req := httptest.NewRequest(http.MethodPost, "/chat/10/polls", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	chatRepo.AssertNotCalled(t, "CreateMessage")
}

func TestCreatePollNonParticipant(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	handler := NewPollHandler(chatRepo, new(mocks.GroupRepositoryMock), new(mocks.PollRepositoryMock), nil)
	router := setupPollRouter(handler, models.Principal{ID: 1})

	chatRepo.On("ResolveChat", mock.Anything, 10).Return(models.Chat{ID: 10}, nil).Once()
	chatRepo.On("IsParticipant", mock.Anything, 10, 1).Return(false, nil).Once()

	body := bytes.NewBufferString(`{"question":"q","options":["a","b"]}`)
	req := httptest.NewRequest(http.MethodPost, "/chat/10/polls", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestVoteSuccess(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	pollRepo := new(mocks.PollRepositoryMock)
	handler := NewPollHandler(chatRepo, new(mocks.GroupRepositoryMock), pollRepo, nil)
	router := setupPollRouter(handler, models.Principal{ID: 3})

	chatRepo.On("ResolveChat", mock.Anything, 10).Return(models.Chat{ID: 10}, nil).Once()
	pollRepo.On("CastVote", mock.Anything, 10, 42, 3, 0).Return(models.Poll{
		MessageID: 42,
		Question:  "lunch?",
		EndsAt:    time.Now().Add(time.Hour),
		Options:   []models.PollOption{{Text: "pizza", Votes: []int{3}}, {Text: "sushi", Votes: []int{}}},
	}, nil).Once()

	body := bytes.NewBufferString(`{"option_index":0}`)
	req := httptest.NewRequest(http.MethodPost, "/chat/10/messages/42/vote", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Poll models.Poll `json:"poll"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, []int{3}, resp.Poll.Options[0].Votes)
	pollRepo.AssertExpectations(t)
}

func TestVoteMissingOptionIndex(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	pollRepo := new(mocks.PollRepositoryMock)
	handler := NewPollHandler(chatRepo, new(mocks.GroupRepositoryMock), pollRepo, nil)
	router := setupPollRouter(handler, models.Principal{ID: 3})

	body := bytes.NewBufferString(`{}`)
	req := httptest.NewRequest(http.MethodPost, "/chat/10/messages/42/vote", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	pollRepo.AssertNotCalled(t, "CastVote")
}

func TestVoteOptionOutOfRange(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	pollRepo := new(mocks.PollRepositoryMock)
	handler := NewPollHandler(chatRepo, new(mocks.GroupRepositoryMock), pollRepo, nil)
	router := setupPollRouter(handler, models.Principal{ID: 3})

	chatRepo.On("ResolveChat", mock.Anything, 10).Return(models.Chat{ID: 10}, nil).Once()
	pollRepo.On("CastVote", mock.Anything, 10, 42, 3, 9).
		Return(models.Poll{}, repositories.ErrOptionOutOfRange).Once()

	body := bytes.NewBufferString(`{"option_index":9}`)
	req := httptest.NewRequest(http.MethodPost, "/chat/10/messages/42/vote", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "validation_error", resp["code"])
	pollRepo.AssertExpectations(t)
}

func TestVotePollClosed(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	pollRepo := new(mocks.PollRepositoryMock)
	handler := NewPollHandler(chatRepo, new(mocks.GroupRepositoryMock), pollRepo, nil)
	router := setupPollRouter(handler, models.Principal{ID: 3})

	chatRepo.On("ResolveChat", mock.Anything, 10).Return(models.Chat{ID: 10}, nil).Once()
	pollRepo.On("CastVote", mock.Anything, 10, 42, 3, 1).
		Return(models.Poll{}, repositories.ErrPollClosed).Once()

	body := bytes.NewBufferString(`{"option_index":1}`)
	req := httptest.NewRequest(http.MethodPost, "/chat/10/messages/42/vote", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "invalid_state", resp["code"])
	pollRepo.AssertExpectations(t)
}

func TestVoteNotAPoll(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	pollRepo := new(mocks.PollRepositoryMock)
	handler := NewPollHandler(chatRepo, new(mocks.GroupRepositoryMock), pollRepo, nil)
	router := setupPollRouter(handler, models.Principal{ID: 3})

	chatRepo.On("ResolveChat", mock.Anything, 10).Return(models.Chat{ID: 10}, nil).Once()
	pollRepo.On("CastVote", mock.Anything, 10, 42, 3, 0).
		Return(models.Poll{}, repositories.ErrPollNotFound).Once()

	body := bytes.NewBufferString(`{"option_index":0}`)
	req := httptest.NewRequest(http.MethodPost, "/chat/10/messages/42/vote", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	pollRepo.AssertExpectations(t)
}

func TestRetractVote(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	pollRepo := new(mocks.PollRepositoryMock)
	handler := NewPollHandler(chatRepo, new(mocks.GroupRepositoryMock), pollRepo, nil)
	router := setupPollRouter(handler, models.Principal{ID: 3})

	chatRepo.On("ResolveChat", mock.Anything, 10).Return(models.Chat{ID: 10}, nil).Once()
	pollRepo.On("RetractVote", mock.Anything, 10, 42, 3).Return(models.Poll{
		MessageID: 42,
		Options:   []models.PollOption{{Text: "pizza", Votes: []int{}}},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/chat/10/messages/42/vote", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Poll models.Poll `json:"poll"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Empty(t, resp.Poll.Options[0].Votes)
	pollRepo.AssertExpectations(t)
}

func TestRetractVoteClosedPoll(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	pollRepo := new(mocks.PollRepositoryMock)
	handler := NewPollHandler(chatRepo, new(mocks.GroupRepositoryMock), pollRepo, nil)
	router := setupPollRouter(handler, models.Principal{ID: 3})

	chatRepo.On("ResolveChat", mock.Anything, 10).Return(models.Chat{ID: 10}, nil).Once()
	pollRepo.On("RetractVote", mock.Anything, 10, 42, 3).
		Return(models.Poll{}, repositories.ErrPollClosed).Once()

	req := httptest.NewRequest(http.MethodDelete, "/chat/10/messages/42/vote", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	pollRepo.AssertExpectations(t)
}
