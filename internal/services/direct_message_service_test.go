package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"social-chat/internal/apperrors"
	"social-chat/internal/mocks"
	"social-chat/internal/repositories"
)

func setupDirectMessageService(t *testing.T, window int) *DirectMessageService {
	t.Helper()
	users := repositories.NewMemoryUserDirectory("alice", "bob", "carol", "dave")
	return NewDirectMessageService(repositories.NewMemoryDirectMessageRepo(nil), users, nil, window)
}

func TestSendThenMarkAsRead(t *testing.T) {
	svc := setupDirectMessageService(t, 0)
	ctx := context.Background()

	_, err := svc.Send(ctx, "alice", "bob", "hello")
	require.NoError(t, err)

	modified, err := svc.MarkAsRead(ctx, "bob", "alice")
	require.NoError(t, err)
	require.Equal(t, int64(1), modified)

	count, err := svc.GetUnreadCount(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, 0, count)

	modified, err = svc.MarkAsRead(ctx, "bob", "alice")
	require.NoError(t, err)
	require.Equal(t, int64(0), modified)
}

func TestSendValidation(t *testing.T) {
	svc := setupDirectMessageService(t, 0)
	ctx := context.Background()

	_, err := svc.Send(ctx, "alice", "ghost", "hello")
	require.True(t, apperrors.Is(err, apperrors.KindNotFound))

	_, err = svc.Send(ctx, "alice", "bob", "  \n ")
	require.True(t, apperrors.Is(err, apperrors.KindValidation))

	_, err = svc.Send(ctx, "alice", "alice", "note to self")
	require.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestGetConversationBothDirectionsOldestFirst(t *testing.T) {
	svc := setupDirectMessageService(t, 0)
	ctx := context.Background()

	first, err := svc.Send(ctx, "alice", "bob", "one")
	require.NoError(t, err)
	second, err := svc.Send(ctx, "bob", "alice", "two")
	require.NoError(t, err)
	_, err = svc.Send(ctx, "alice", "carol", "elsewhere")
	require.NoError(t, err)
	third, err := svc.Send(ctx, "alice", "bob", "three")
	require.NoError(t, err)

	_, err = svc.SoftDelete(ctx, third.ID, "alice")
	require.NoError(t, err)

	conv, err := svc.GetConversation(ctx, "bob", "alice")
	require.NoError(t, err)
	require.Len(t, conv, 2)
	require.Equal(t, first.ID, conv[0].ID)
	require.Equal(t, second.ID, conv[1].ID)
}

func TestSoftDeleteRules(t *testing.T) {
	svc := setupDirectMessageService(t, 0)
	ctx := context.Background()
	msg, err := svc.Send(ctx, "alice", "bob", "oops")
	require.NoError(t, err)

	_, err = svc.SoftDelete(ctx, "missing", "alice")
	require.True(t, apperrors.Is(err, apperrors.KindNotFound))

	_, err = svc.SoftDelete(ctx, msg.ID, "bob")
	require.True(t, apperrors.Is(err, apperrors.KindUnauthorized))

	deleted, err := svc.SoftDelete(ctx, msg.ID, "alice")
	require.NoError(t, err)
	require.True(t, deleted.IsDeleted)
	require.NotNil(t, deleted.DeletedAt)

	count, err := svc.GetUnreadCount(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestRecentConversations(t *testing.T) {
	svc := setupDirectMessageService(t, 0)
	ctx := context.Background()

	_, err := svc.Send(ctx, "bob", "alice", "b1")
	require.NoError(t, err)
	_, err = svc.Send(ctx, "carol", "alice", "c1")
	require.NoError(t, err)
	_, err = svc.Send(ctx, "bob", "alice", "b2")
	require.NoError(t, err)
	lastCarol, err := svc.Send(ctx, "alice", "carol", "c2")
	require.NoError(t, err)

	summaries, err := svc.RecentConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	require.Equal(t, "carol", summaries[0].CounterpartID)
	require.Equal(t, lastCarol.ID, summaries[0].LastMessage.ID)
	require.Equal(t, 1, summaries[0].UnreadCount)

	require.Equal(t, "bob", summaries[1].CounterpartID)
	require.Equal(t, "b2", summaries[1].LastMessage.Text)
	require.Equal(t, 2, summaries[1].UnreadCount)
}

func TestRecentConversationsRespectsWindow(t *testing.T) {
	svc := setupDirectMessageService(t, 2)
	ctx := context.Background()

	for _, from := range []string{"bob", "carol", "dave"} {
		_, err := svc.Send(ctx, from, "alice", "hi from "+from)
		require.NoError(t, err)
	}

	summaries, err := svc.RecentConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	require.Equal(t, "dave", summaries[0].CounterpartID)
	require.Equal(t, "carol", summaries[1].CounterpartID)
}

func TestSendUserLookupFailureIsTransient(t *testing.T) {
	users := new(mocks.UserDirectoryMock)
	repo := repositories.NewMemoryDirectMessageRepo(nil)
	svc := NewDirectMessageService(repo, users, nil, 0)

	users.On("Exists", mock.Anything, "bob").Return(false, assert.AnError).Once()

	_, err := svc.Send(context.Background(), "alice", "bob", "hello")
	require.True(t, apperrors.Is(err, apperrors.KindTransient))
	users.AssertExpectations(t)

	conv, err := repo.Conversation(context.Background(), "alice", "bob")
	require.NoError(t, err)
	require.Empty(t, conv)
}
