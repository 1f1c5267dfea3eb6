package mocks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stretchr/testify/mock"

	"groupchat-service/internal/identity"
	"groupchat-service/internal/models"
	"groupchat-service/internal/quizgen"
	"groupchat-service/internal/repositories"
)

type GroupRepositoryMock struct {
	mock.Mock
}

func (m *GroupRepositoryMock) CreateGroup(ctx context.Context, group models.Group) (models.Group, models.Chat, error) {
	args := m.Called(ctx, group)
	var g models.Group
	if val := args.Get(0); val != nil {
		g = val.(models.Group)
	}
	var c models.Chat
	if val := args.Get(1); val != nil {
		c = val.(models.Chat)
	}
	return g, c, args.Error(2)
}

func (m *GroupRepositoryMock) GetGroup(ctx context.Context, groupID int) (models.Group, error) {
	args := m.Called(ctx, groupID)
	var g models.Group
	if val := args.Get(0); val != nil {
		g = val.(models.Group)
	}
	return g, args.Error(1)
}

func (m *GroupRepositoryMock) ListGroups(ctx context.Context, viewerID *int, category, search string) ([]models.GroupSummary, error) {
	args := m.Called(ctx, viewerID, category, search)
	var list []models.GroupSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.GroupSummary)
	}
	return list, args.Error(1)
}

func (m *GroupRepositoryMock) MemberRole(ctx context.Context, groupID int, userID int) (string, bool, error) {
	args := m.Called(ctx, groupID, userID)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *GroupRepositoryMock) JoinGroup(ctx context.Context, groupID int, userID int) (repositories.JoinResult, error) {
	args := m.Called(ctx, groupID, userID)
	var res repositories.JoinResult
	if val := args.Get(0); val != nil {
		res = val.(repositories.JoinResult)
	}
	return res, args.Error(1)
}

func (m *GroupRepositoryMock) LeaveGroup(ctx context.Context, groupID int, userID int) error {
	args := m.Called(ctx, groupID, userID)
	return args.Error(0)
}

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) ResolveChat(ctx context.Context, id int) (models.Chat, error) {
	args := m.Called(ctx, id)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) IsParticipant(ctx context.Context, chatID int, userID int) (bool, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ChatRepositoryMock) CreateMessage(ctx context.Context, chatID int, draft repositories.MessageDraft) (models.MessageView, error) {
	args := m.Called(ctx, chatID, draft)
	var view models.MessageView
	if val := args.Get(0); val != nil {
		view = val.(models.MessageView)
	}
	return view, args.Error(1)
}

func (m *ChatRepositoryMock) ListMessages(ctx context.Context, chatID int, readerID int, limit int, before *time.Time) (repositories.MessagePage, error) {
	args := m.Called(ctx, chatID, readerID, limit, before)
	var page repositories.MessagePage
	if val := args.Get(0); val != nil {
		page = val.(repositories.MessagePage)
	}
	return page, args.Error(1)
}

func (m *ChatRepositoryMock) GetMessage(ctx context.Context, chatID int, messageID int) (models.Message, error) {
	args := m.Called(ctx, chatID, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *ChatRepositoryMock) SoftDeleteMessage(ctx context.Context, chatID int, messageID int, senderID int) error {
	args := m.Called(ctx, chatID, messageID, senderID)
	return args.Error(0)
}

type PollRepositoryMock struct {
	mock.Mock
}

func (m *PollRepositoryMock) GetPoll(ctx context.Context, chatID int, messageID int) (models.Poll, error) {
	args := m.Called(ctx, chatID, messageID)
	var poll models.Poll
	if val := args.Get(0); val != nil {
		poll = val.(models.Poll)
	}
	return poll, args.Error(1)
}

func (m *PollRepositoryMock) CastVote(ctx context.Context, chatID int, messageID int, userID int, optionIdx int) (models.Poll, error) {
	args := m.Called(ctx, chatID, messageID, userID, optionIdx)
	var poll models.Poll
	if val := args.Get(0); val != nil {
		poll = val.(models.Poll)
	}
	return poll, args.Error(1)
}

func (m *PollRepositoryMock) RetractVote(ctx context.Context, chatID int, messageID int, userID int) (models.Poll, error) {
	args := m.Called(ctx, chatID, messageID, userID)
	var poll models.Poll
	if val := args.Get(0); val != nil {
		poll = val.(models.Poll)
	}
	return poll, args.Error(1)
}

type ReactionRepositoryMock struct {
	mock.Mock
}

func (m *ReactionRepositoryMock) UpsertReaction(ctx context.Context, chatID int, messageID int, userID int, reaction string) ([]models.Reaction, error) {
	args := m.Called(ctx, chatID, messageID, userID, reaction)
	var list []models.Reaction
	if val := args.Get(0); val != nil {
		list = val.([]models.Reaction)
	}
	return list, args.Error(1)
}

type ResolverMock struct {
	mock.Mock
}

func (m *ResolverMock) BulkUsers(ctx context.Context, ids []int) ([]models.UserProfile, error) {
	args := m.Called(ctx, ids)
	var users []models.UserProfile
	if val := args.Get(0); val != nil {
		users = val.([]models.UserProfile)
	}
	return users, args.Error(1)
}

type GeneratorMock struct {
	mock.Mock
}

func (m *GeneratorMock) Generate(ctx context.Context, req quizgen.Request) (json.RawMessage, error) {
	args := m.Called(ctx, req)
	var payload json.RawMessage
	if val := args.Get(0); val != nil {
		payload = val.(json.RawMessage)
	}
	return payload, args.Error(1)
}

var (
	_ repositories.GroupRepository    = (*GroupRepositoryMock)(nil)
	_ repositories.ChatRepository     = (*ChatRepositoryMock)(nil)
	_ repositories.PollRepository     = (*PollRepositoryMock)(nil)
	_ repositories.ReactionRepository = (*ReactionRepositoryMock)(nil)
	_ identity.Resolver               = (*ResolverMock)(nil)
	_ quizgen.Generator               = (*GeneratorMock)(nil)
)
