package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"social-chat/internal/apperrors"
	"social-chat/internal/models"
)

// DirectMessageRepository defines interactions for flat 1:1 messages.
type DirectMessageRepository interface {
	Create(ctx context.Context, fromUserID, toUserID, text string) (models.DirectMessage, error)
	Get(ctx context.Context, messageID string) (models.DirectMessage, error)
	Conversation(ctx context.Context, userA, userB string) ([]models.DirectMessage, error)
	MarkAsRead(ctx context.Context, userID, senderID string) (int64, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	UnreadCountFrom(ctx context.Context, userID, senderID string) (int, error)
	SoftDelete(ctx context.Context, messageID, requesterID string) (models.DirectMessage, error)
	RecentForUser(ctx context.Context, userID string, limit int) ([]models.DirectMessage, error)
}

// DirectMessageRepo is a sqlx-backed repository.
type DirectMessageRepo struct {
	db *sqlx.DB
}

// NewDirectMessageRepo constructs DirectMessageRepo.
func NewDirectMessageRepo(db *sqlx.DB) *DirectMessageRepo {
	return &DirectMessageRepo{db: db}
}

const directMessageColumns = `id, from_user_id, to_user_id, text, is_read, read_at, is_deleted, deleted_at, created_at`

// Create stores an unread direct message.
func (r *DirectMessageRepo) Create(ctx context.Context, fromUserID, toUserID, text string) (models.DirectMessage, error) {
	var msg models.DirectMessage
	err := r.db.GetContext(ctx, &msg, `INSERT INTO direct_messages (id, from_user_id, to_user_id, text, created_at)
        VALUES ($1, $2, $3, $4, clock_timestamp()) RETURNING `+directMessageColumns,
		uuid.NewString(), fromUserID, toUserID, text)
	if err != nil {
		return models.DirectMessage{}, apperrors.Transient("insert direct message", err)
	}
	return msg, nil
}

// Get retrieves a single message, deleted or not.
func (r *DirectMessageRepo) Get(ctx context.Context, messageID string) (models.DirectMessage, error) {
	var msg models.DirectMessage
	err := r.db.GetContext(ctx, &msg, `SELECT `+directMessageColumns+` FROM direct_messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DirectMessage{}, apperrors.NotFound("message")
	}
	if err != nil {
		return models.DirectMessage{}, apperrors.Transient("load direct message", err)
	}
	return msg, nil
}

// Conversation returns non-deleted messages between the pair, oldest first.
func (r *DirectMessageRepo) Conversation(ctx context.Context, userA, userB string) ([]models.DirectMessage, error) {
	msgs := []models.DirectMessage{}
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+directMessageColumns+` FROM direct_messages
        WHERE is_deleted = FALSE
        AND ((from_user_id=$1 AND to_user_id=$2) OR (from_user_id=$2 AND to_user_id=$1))
        ORDER BY created_at ASC`, userA, userB)
	if err != nil {
		return nil, apperrors.Transient("load conversation", err)
	}
	return msgs, nil
}

// MarkAsRead marks everything senderID sent to userID as read and returns
// the number of records changed.
func (r *DirectMessageRepo) MarkAsRead(ctx context.Context, userID, senderID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE direct_messages SET is_read = TRUE, read_at = clock_timestamp()
        WHERE to_user_id=$1 AND from_user_id=$2 AND is_read = FALSE`, userID, senderID)
	if err != nil {
		return 0, apperrors.Transient("mark direct messages read", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.Transient("mark direct messages read", err)
	}
	return count, nil
}

// UnreadCount counts unread, non-deleted messages addressed to userID.
func (r *DirectMessageRepo) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM direct_messages
        WHERE to_user_id=$1 AND is_read = FALSE AND is_deleted = FALSE`, userID)
	if err != nil {
		return 0, apperrors.Transient("count unread direct messages", err)
	}
	return count, nil
}

// UnreadCountFrom is UnreadCount restricted to one sender.
func (r *DirectMessageRepo) UnreadCountFrom(ctx context.Context, userID, senderID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM direct_messages
        WHERE to_user_id=$1 AND from_user_id=$2 AND is_read = FALSE AND is_deleted = FALSE`, userID, senderID)
	if err != nil {
		return 0, apperrors.Transient("count unread direct messages", err)
	}
	return count, nil
}

// SoftDelete flags a message deleted. Only the sender may delete it.
func (r *DirectMessageRepo) SoftDelete(ctx context.Context, messageID, requesterID string) (models.DirectMessage, error) {
	var msg models.DirectMessage
	err := r.db.GetContext(ctx, &msg, `UPDATE direct_messages
        SET is_deleted = TRUE, deleted_at = COALESCE(deleted_at, clock_timestamp())
        WHERE id=$1 AND from_user_id=$2 RETURNING `+directMessageColumns, messageID, requesterID)
	if err == nil {
		return msg, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.DirectMessage{}, apperrors.Transient("delete direct message", err)
	}

	// distinguish a missing record from someone else's record
	if _, err := r.Get(ctx, messageID); err != nil {
		return models.DirectMessage{}, err
	}
	return models.DirectMessage{}, apperrors.Unauthorized("only the sender can delete a message")
}

// RecentForUser returns the newest non-deleted messages the user sent or received.
func (r *DirectMessageRepo) RecentForUser(ctx context.Context, userID string, limit int) ([]models.DirectMessage, error) {
	msgs := []models.DirectMessage{}
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+directMessageColumns+` FROM direct_messages
        WHERE is_deleted = FALSE AND (from_user_id=$1 OR to_user_id=$1)
        ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, apperrors.Transient("load recent direct messages", err)
	}
	return msgs, nil
}

var _ DirectMessageRepository = (*DirectMessageRepo)(nil)
