package repositories

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"social-chat/internal/apperrors"
	"social-chat/internal/models"
)

var (
	chatRowColumns = []string{"id", "type", "direct_key", "group_name", "group_description", "group_avatar", "related_activity_id",
		"last_message_id", "last_message_at", "message_seq", "version", "created_by", "is_active", "created_at", "updated_at"}
	messageRowColumns = []string{"id", "chat_id", "seq", "sender_id", "content", "kind", "file_url", "client_message_id",
		"edited", "edited_at", "deleted", "deleted_at", "created_at"}

	fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

func newMockChatRepo(t *testing.T) (*ChatRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewChatRepo(sqlx.NewDb(db, "postgres")), mock
}

func q(sql string) string {
	return regexp.QuoteMeta(sql)
}

func directChatRow(chatID string, seq int64, active bool) *sqlmock.Rows {
	return sqlmock.NewRows(chatRowColumns).AddRow(chatID, "direct", nil, nil, nil, nil, nil,
		nil, nil, seq, int64(1), "alice", active, fixedNow, fixedNow)
}

func expectLock(mock sqlmock.Sqlmock, chatID string, seq int64, active bool) {
	mock.ExpectBegin()
	mock.ExpectQuery(q(`FROM chats WHERE id=$1 FOR UPDATE`)).
		WithArgs(chatID).
		WillReturnRows(directChatRow(chatID, seq, active))
}

func expectParticipant(mock sqlmock.Sqlmock, chatID, userID string, ok bool) {
	mock.ExpectQuery(q(`SELECT EXISTS(SELECT 1 FROM chat_participants WHERE chat_id=$1 AND user_id=$2)`)).
		WithArgs(chatID, userID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(ok))
}

// expectGetChat covers the read-only snapshot GetChat takes of a direct chat.
func expectGetChat(mock sqlmock.Sqlmock, chatID string, members ...string) {
	mock.ExpectBegin()
	mock.ExpectQuery(q(`FROM chats WHERE id=$1`)).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(directChatRow(chatID, 0, true))

	participants := sqlmock.NewRows([]string{"user_id", "role", "joined_at", "last_read_at", "muted"})
	for _, m := range members {
		participants.AddRow(m, "member", fixedNow, fixedNow, false)
	}
	mock.ExpectQuery(q(`FROM chat_participants WHERE chat_id=$1 ORDER BY position ASC`)).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(participants)
	mock.ExpectQuery(q(`FROM chat_messages WHERE chat_id=$1 ORDER BY seq ASC`)).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(messageRowColumns))
	mock.ExpectQuery(q(`FROM message_reads r INNER JOIN chat_messages m`)).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"message_id", "user_id", "read_at"}))
	mock.ExpectRollback()
}

func TestChatRepoCreateDirectChatInsertsRoster(t *testing.T) {
	repo, mock := newMockChatRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(q(`INSERT INTO chats (id, type, direct_key, created_by)`)).
		WithArgs(sqlmock.AnyArg(), models.DirectKey("alice", "bob"), "alice").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q(`INSERT INTO chat_participants (chat_id, user_id, role)`)).
		WithArgs(sqlmock.AnyArg(), "alice", "member").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q(`INSERT INTO chat_participants (chat_id, user_id, role)`)).
		WithArgs(sqlmock.AnyArg(), "bob", "member").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	expectGetChat(mock, "chat-new", "alice", "bob")

	chat, created, err := repo.CreateDirectChat(context.Background(), "alice", "bob")
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "chat-new", chat.ID)
	require.True(t, chat.IsDirectPair("bob", "alice"))
}

func TestChatRepoCreateDirectChatReturnsExistingOnConflict(t *testing.T) {
	repo, mock := newMockChatRepo(t)
	key := models.DirectKey("alice", "bob")

	mock.ExpectBegin()
	mock.ExpectExec(q(`ON CONFLICT (direct_key) WHERE is_active DO NOTHING`)).
		WithArgs(sqlmock.AnyArg(), key, "bob").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()
	mock.ExpectQuery(q(`SELECT id FROM chats WHERE direct_key=$1 AND is_active`)).
		WithArgs(key).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("chat-1"))
	expectGetChat(mock, "chat-1", "alice", "bob")

	chat, created, err := repo.CreateDirectChat(context.Background(), "bob", "alice")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, "chat-1", chat.ID)
}

func TestChatRepoCreateDirectChatRejectsForeignRoster(t *testing.T) {
	repo, mock := newMockChatRepo(t)
	key := models.DirectKey("a", "b:c")

	mock.ExpectBegin()
	mock.ExpectExec(q(`INSERT INTO chats (id, type, direct_key, created_by)`)).
		WithArgs(sqlmock.AnyArg(), key, "a").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()
	mock.ExpectQuery(q(`SELECT id FROM chats WHERE direct_key=$1 AND is_active`)).
		WithArgs(key).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("chat-1"))
	expectGetChat(mock, "chat-1", "a:b", "c")

	_, _, err := repo.CreateDirectChat(context.Background(), "a", "b:c")
	require.True(t, apperrors.Is(err, apperrors.KindTransient))
}

func TestChatRepoAppendMessage(t *testing.T) {
	repo, mock := newMockChatRepo(t)

	expectLock(mock, "chat-1", 4, true)
	expectParticipant(mock, "chat-1", "alice", true)
	mock.ExpectQuery(q(`INSERT INTO chat_messages`)).
		WithArgs(sqlmock.AnyArg(), "chat-1", int64(5), "alice", "hi", "text", "", "").
		WillReturnRows(sqlmock.NewRows(messageRowColumns).
			AddRow("m5", "chat-1", int64(5), "alice", "hi", "text", "", "", false, nil, false, nil, fixedNow))
	mock.ExpectExec(q(`INSERT INTO message_reads (message_id, user_id, read_at) VALUES ($1, $2, $3)`)).
		WithArgs("m5", "alice", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q(`UPDATE chats SET last_message_id=$2, last_message_at=$3, message_seq=$4`)).
		WithArgs("chat-1", "m5", fixedNow, int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	msg, created, err := repo.AppendMessage(context.Background(), "chat-1", models.NewMessage{
		SenderID: "alice",
		Content:  "hi",
		Kind:     models.KindText,
	})
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, int64(5), msg.Seq)
	require.Equal(t, []models.ReadReceipt{{UserID: "alice", ReadAt: fixedNow}}, msg.ReadBy)
}

func TestChatRepoAppendMessageReplaysClientMessageID(t *testing.T) {
	repo, mock := newMockChatRepo(t)

	expectLock(mock, "chat-1", 4, true)
	expectParticipant(mock, "chat-1", "alice", true)
	mock.ExpectQuery(q(`WHERE chat_id=$1 AND client_message_id=$2`)).
		WithArgs("chat-1", "client-7").
		WillReturnRows(sqlmock.NewRows(messageRowColumns).
			AddRow("m3", "chat-1", int64(3), "alice", "hi", "text", "", "client-7", false, nil, false, nil, fixedNow))
	mock.ExpectQuery(q(`SELECT user_id, read_at FROM message_reads WHERE message_id=$1`)).
		WithArgs("m3").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "read_at"}).AddRow("alice", fixedNow))
	mock.ExpectCommit()

	msg, created, err := repo.AppendMessage(context.Background(), "chat-1", models.NewMessage{
		SenderID:        "alice",
		Content:         "hi",
		Kind:            models.KindText,
		ClientMessageID: "client-7",
	})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, "m3", msg.ID)
	require.Len(t, msg.ReadBy, 1)
}

func TestChatRepoAppendMessageRollsBack(t *testing.T) {
	t.Run("not a participant", func(t *testing.T) {
		repo, mock := newMockChatRepo(t)
		expectLock(mock, "chat-1", 0, true)
		expectParticipant(mock, "chat-1", "mallory", false)
		mock.ExpectRollback()

		_, _, err := repo.AppendMessage(context.Background(), "chat-1", models.NewMessage{SenderID: "mallory", Content: "hi", Kind: models.KindText})
		require.True(t, apperrors.Is(err, apperrors.KindNotParticipant))
	})

	t.Run("inactive chat", func(t *testing.T) {
		repo, mock := newMockChatRepo(t)
		expectLock(mock, "chat-1", 0, false)
		mock.ExpectRollback()

		_, _, err := repo.AppendMessage(context.Background(), "chat-1", models.NewMessage{SenderID: "alice", Content: "hi", Kind: models.KindText})
		require.True(t, apperrors.Is(err, apperrors.KindValidation))
	})

	t.Run("lock failure", func(t *testing.T) {
		repo, mock := newMockChatRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(q(`FOR UPDATE`)).WithArgs("chat-1").WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		_, _, err := repo.AppendMessage(context.Background(), "chat-1", models.NewMessage{SenderID: "alice", Content: "hi", Kind: models.KindText})
		require.True(t, apperrors.Is(err, apperrors.KindTransient))
	})
}

func TestChatRepoMarkRead(t *testing.T) {
	repo, mock := newMockChatRepo(t)

	expectLock(mock, "chat-1", 2, true)
	expectParticipant(mock, "chat-1", "bob", true)
	mock.ExpectQuery(q(`ORDER BY m.seq ON CONFLICT (message_id, user_id) DO NOTHING RETURNING message_id`)).
		WithArgs("chat-1", "bob").
		WillReturnRows(sqlmock.NewRows([]string{"message_id"}).AddRow("m1").AddRow("m2"))
	mock.ExpectExec(q(`UPDATE chat_participants SET last_read_at=clock_timestamp()`)).
		WithArgs("chat-1", "bob").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q(`UPDATE chats SET version = version + 1`)).
		WithArgs("chat-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	marked, err := repo.MarkRead(context.Background(), "chat-1", "bob", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"m1", "m2"}, marked)
}

func TestChatRepoMarkReadSelectedAlreadyRead(t *testing.T) {
	repo, mock := newMockChatRepo(t)

	expectLock(mock, "chat-1", 2, true)
	expectParticipant(mock, "chat-1", "bob", true)
	mock.ExpectQuery(q(`AND m.id = ANY($3) ORDER BY m.seq ON CONFLICT (message_id, user_id) DO NOTHING`)).
		WithArgs("chat-1", "bob", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"message_id"}))
	mock.ExpectExec(q(`UPDATE chat_participants SET last_read_at=clock_timestamp()`)).
		WithArgs("chat-1", "bob").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q(`UPDATE chats SET version = version + 1`)).
		WithArgs("chat-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	marked, err := repo.MarkRead(context.Background(), "chat-1", "bob", []string{"m1"})
	require.NoError(t, err)
	require.Empty(t, marked)
}

func TestChatRepoMarkReadRequiresParticipant(t *testing.T) {
	repo, mock := newMockChatRepo(t)

	expectLock(mock, "chat-1", 2, true)
	expectParticipant(mock, "chat-1", "mallory", false)
	mock.ExpectRollback()

	_, err := repo.MarkRead(context.Background(), "chat-1", "mallory", nil)
	require.True(t, apperrors.Is(err, apperrors.KindNotParticipant))
}
