package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"social-chat/internal/models"
	"social-chat/internal/repositories"
)

type ChatServiceMock struct {
	mock.Mock
}

func (m *ChatServiceMock) CreateDirectChat(ctx context.Context, userA, userB string) (models.Chat, error) {
	args := m.Called(ctx, userA, userB)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatServiceMock) CreateGroupChat(ctx context.Context, createdBy string, info models.GroupInfo, participants []models.NewParticipant) (models.Chat, error) {
	args := m.Called(ctx, createdBy, info, participants)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatServiceMock) GetChat(ctx context.Context, chatID string) (models.Chat, error) {
	args := m.Called(ctx, chatID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatServiceMock) ListChats(ctx context.Context, userID string) ([]models.ChatSummary, error) {
	args := m.Called(ctx, userID)
	var list []models.ChatSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ChatSummary)
	}
	return list, args.Error(1)
}

func (m *ChatServiceMock) IsParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ChatServiceMock) AppendMessage(ctx context.Context, chatID string, msg models.NewMessage) (models.Message, error) {
	args := m.Called(ctx, chatID, msg)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *ChatServiceMock) EditMessage(ctx context.Context, chatID, messageID, editorID, content string) (models.Message, error) {
	args := m.Called(ctx, chatID, messageID, editorID, content)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *ChatServiceMock) DeleteMessage(ctx context.Context, chatID, messageID, requesterID string) (models.Message, error) {
	args := m.Called(ctx, chatID, messageID, requesterID)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *ChatServiceMock) AddParticipant(ctx context.Context, actorID, chatID, userID string, role models.Role) (models.Participant, error) {
	args := m.Called(ctx, actorID, chatID, userID, role)
	var p models.Participant
	if val := args.Get(0); val != nil {
		p = val.(models.Participant)
	}
	return p, args.Error(1)
}

func (m *ChatServiceMock) RemoveParticipant(ctx context.Context, actorID, chatID, userID string) (bool, error) {
	args := m.Called(ctx, actorID, chatID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ChatServiceMock) SetMuted(ctx context.Context, chatID, userID string, muted bool) error {
	args := m.Called(ctx, chatID, userID, muted)
	return args.Error(0)
}

func (m *ChatServiceMock) MarkRead(ctx context.Context, chatID, userID string, messageIDs []string) (int, error) {
	args := m.Called(ctx, chatID, userID, messageIDs)
	return args.Int(0), args.Error(1)
}

func (m *ChatServiceMock) GetUnreadCount(ctx context.Context, chatID, userID string) (int, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Int(0), args.Error(1)
}

type DirectMessageServiceMock struct {
	mock.Mock
}

func (m *DirectMessageServiceMock) Send(ctx context.Context, fromUserID, toUserID, text string) (models.DirectMessage, error) {
	args := m.Called(ctx, fromUserID, toUserID, text)
	var msg models.DirectMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.DirectMessage)
	}
	return msg, args.Error(1)
}

func (m *DirectMessageServiceMock) GetConversation(ctx context.Context, userA, userB string) ([]models.DirectMessage, error) {
	args := m.Called(ctx, userA, userB)
	var msgs []models.DirectMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.DirectMessage)
	}
	return msgs, args.Error(1)
}

func (m *DirectMessageServiceMock) MarkAsRead(ctx context.Context, userID, senderID string) (int64, error) {
	args := m.Called(ctx, userID, senderID)
	var n int64
	if val := args.Get(0); val != nil {
		n = val.(int64)
	}
	return n, args.Error(1)
}

func (m *DirectMessageServiceMock) GetUnreadCount(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *DirectMessageServiceMock) SoftDelete(ctx context.Context, messageID, requesterID string) (models.DirectMessage, error) {
	args := m.Called(ctx, messageID, requesterID)
	var msg models.DirectMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.DirectMessage)
	}
	return msg, args.Error(1)
}

func (m *DirectMessageServiceMock) RecentConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	args := m.Called(ctx, userID)
	var list []models.ConversationSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ConversationSummary)
	}
	return list, args.Error(1)
}

type UserDirectoryMock struct {
	mock.Mock
}

func (m *UserDirectoryMock) Exists(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

var _ repositories.UserDirectory = (*UserDirectoryMock)(nil)
