package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"social-chat/internal/apperrors"
	"social-chat/internal/models"
)

// ChatRepository persists chat aggregates. Every mutation is serialized per
// chat; different chats never share a lock.
type ChatRepository interface {
	FindDirectChat(ctx context.Context, userA, userB string) (models.Chat, error)
	CreateDirectChat(ctx context.Context, userA, userB string) (models.Chat, bool, error)
	CreateGroupChat(ctx context.Context, createdBy string, info models.GroupInfo, participants []models.NewParticipant) (models.Chat, error)
	GetChat(ctx context.Context, chatID string) (models.Chat, error)
	ListChatsForUser(ctx context.Context, userID string) ([]models.ChatSummary, error)
	IsParticipant(ctx context.Context, chatID string, userID string) (bool, error)
	AppendMessage(ctx context.Context, chatID string, msg models.NewMessage) (models.Message, bool, error)
	EditMessage(ctx context.Context, chatID, messageID, editorID, content string) (models.Message, error)
	DeleteMessage(ctx context.Context, chatID, messageID, requesterID string) (models.Message, bool, error)
	AddParticipant(ctx context.Context, chatID, userID string, role models.Role) (models.Participant, error)
	RemoveParticipant(ctx context.Context, chatID, userID string) (bool, error)
	SetMuted(ctx context.Context, chatID, userID string, muted bool) error
	MarkRead(ctx context.Context, chatID, userID string, messageIDs []string) ([]string, error)
	UnreadCount(ctx context.Context, chatID, userID string) (int, error)
}

// errDirectKeyConflict means the direct index points at a chat whose roster
// is not the requested pair. The caller may retry.
var errDirectKeyConflict = apperrors.Transient("direct chat index conflict", nil)

// ChatRepo is a sqlx implementation of ChatRepository. Mutations lock the
// chat row with SELECT ... FOR UPDATE and only issue targeted writes.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

const chatColumns = `id, type, direct_key, group_name, group_description, group_avatar, related_activity_id,
        last_message_id, last_message_at, message_seq, version, created_by, is_active, created_at, updated_at`

const messageColumns = `id, chat_id, seq, sender_id, content, kind, file_url, COALESCE(client_message_id, '') AS client_message_id,
        edited, edited_at, deleted, deleted_at, created_at`

type chatRow struct {
	ID                string          `db:"id"`
	Type              models.ChatType `db:"type"`
	DirectKey         sql.NullString  `db:"direct_key"`
	GroupName         sql.NullString  `db:"group_name"`
	GroupDescription  sql.NullString  `db:"group_description"`
	GroupAvatar       sql.NullString  `db:"group_avatar"`
	RelatedActivityID sql.NullString  `db:"related_activity_id"`
	LastMessageID     sql.NullString  `db:"last_message_id"`
	LastMessageAt     sql.NullTime    `db:"last_message_at"`
	MessageSeq        int64           `db:"message_seq"`
	Version           int64           `db:"version"`
	CreatedBy         string          `db:"created_by"`
	IsActive          bool            `db:"is_active"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

func (row chatRow) toModel() models.Chat {
	chat := models.Chat{
		ID:            row.ID,
		Type:          row.Type,
		LastMessageID: row.LastMessageID.String,
		MessageSeq:    row.MessageSeq,
		Version:       row.Version,
		CreatedBy:     row.CreatedBy,
		IsActive:      row.IsActive,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
	if row.LastMessageAt.Valid {
		at := row.LastMessageAt.Time
		chat.LastMessageAt = &at
	}
	if row.Type == models.ChatTypeGroup {
		chat.GroupInfo = &models.GroupInfo{
			Name:              row.GroupName.String,
			Description:       row.GroupDescription.String,
			Avatar:            row.GroupAvatar.String,
			RelatedActivityID: row.RelatedActivityID.String,
		}
	}
	return chat
}

type readRow struct {
	MessageID string    `db:"message_id"`
	UserID    string    `db:"user_id"`
	ReadAt    time.Time `db:"read_at"`
}

// FindDirectChat returns the active direct chat for the unordered pair.
func (r *ChatRepo) FindDirectChat(ctx context.Context, userA, userB string) (models.Chat, error) {
	var chatID string
	err := r.db.GetContext(ctx, &chatID, `SELECT id FROM chats WHERE direct_key=$1 AND is_active`, models.DirectKey(userA, userB))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, apperrors.NotFound("direct chat")
	}
	if err != nil {
		return models.Chat{}, apperrors.Transient("find direct chat", err)
	}
	chat, err := r.GetChat(ctx, chatID)
	if err != nil {
		return models.Chat{}, err
	}
	if !chat.IsDirectPair(userA, userB) {
		return models.Chat{}, apperrors.NotFound("direct chat")
	}
	return chat, nil
}

// CreateDirectChat inserts a direct chat unless an active one already exists
// for the pair. Concurrent callers converge on the row guarded by the unique
// partial index on direct_key.
func (r *ChatRepo) CreateDirectChat(ctx context.Context, userA, userB string) (models.Chat, bool, error) {
	key := models.DirectKey(userA, userB)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Chat{}, false, apperrors.Transient("begin tx", err)
	}
	defer tx.Rollback()

	chatID := uuid.NewString()
	res, err := tx.ExecContext(ctx, `INSERT INTO chats (id, type, direct_key, created_by)
        VALUES ($1, 'direct', $2, $3)
        ON CONFLICT (direct_key) WHERE is_active DO NOTHING`, chatID, key, userA)
	if err != nil {
		return models.Chat{}, false, apperrors.Transient("insert direct chat", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return models.Chat{}, false, apperrors.Transient("insert direct chat", err)
	}
	if inserted == 0 {
		_ = tx.Rollback()
		chat, err := r.FindDirectChat(ctx, userA, userB)
		if apperrors.Is(err, apperrors.KindNotFound) {
			// the conflicting row belongs to a different roster, or was
			// deactivated after the insert lost the race
			return models.Chat{}, false, errDirectKeyConflict
		}
		return chat, false, err
	}

	for _, userID := range []string{userA, userB} {
		if _, err := tx.ExecContext(ctx, `INSERT INTO chat_participants (chat_id, user_id, role) VALUES ($1, $2, $3)`,
			chatID, userID, models.RoleMember); err != nil {
			return models.Chat{}, false, apperrors.Transient("insert participant", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return models.Chat{}, false, apperrors.Transient("commit direct chat", err)
	}

	chat, err := r.GetChat(ctx, chatID)
	return chat, true, err
}

// CreateGroupChat creates a group and its roster atomically.
func (r *ChatRepo) CreateGroupChat(ctx context.Context, createdBy string, info models.GroupInfo, participants []models.NewParticipant) (models.Chat, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Chat{}, apperrors.Transient("begin tx", err)
	}
	defer tx.Rollback()

	chatID := uuid.NewString()
	if _, err := tx.ExecContext(ctx, `INSERT INTO chats (id, type, group_name, group_description, group_avatar, related_activity_id, created_by)
        VALUES ($1, 'group', $2, $3, $4, $5, $6)`,
		chatID, info.Name, info.Description, info.Avatar, info.RelatedActivityID, createdBy); err != nil {
		return models.Chat{}, apperrors.Transient("insert group chat", err)
	}

	for _, p := range participants {
		if _, err := tx.ExecContext(ctx, `INSERT INTO chat_participants (chat_id, user_id, role) VALUES ($1, $2, $3)`,
			chatID, p.UserID, p.Role); err != nil {
			return models.Chat{}, apperrors.Transient("insert participant", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return models.Chat{}, apperrors.Transient("commit group chat", err)
	}
	return r.GetChat(ctx, chatID)
}

// GetChat loads the full aggregate from one consistent snapshot.
func (r *ChatRepo) GetChat(ctx context.Context, chatID string) (models.Chat, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return models.Chat{}, apperrors.Transient("begin tx", err)
	}
	defer tx.Rollback()

	var row chatRow
	err = tx.GetContext(ctx, &row, `SELECT `+chatColumns+` FROM chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, apperrors.NotFound("chat")
	}
	if err != nil {
		return models.Chat{}, apperrors.Transient("load chat", err)
	}
	chat := row.toModel()

	if err := tx.SelectContext(ctx, &chat.Participants, `SELECT user_id, role, joined_at, last_read_at, muted
        FROM chat_participants WHERE chat_id=$1 ORDER BY position ASC`, chatID); err != nil {
		return models.Chat{}, apperrors.Transient("load participants", err)
	}
	if err := tx.SelectContext(ctx, &chat.Messages, `SELECT `+messageColumns+`
        FROM chat_messages WHERE chat_id=$1 ORDER BY seq ASC`, chatID); err != nil {
		return models.Chat{}, apperrors.Transient("load messages", err)
	}

	var reads []readRow
	if err := tx.SelectContext(ctx, &reads, `SELECT r.message_id, r.user_id, r.read_at
        FROM message_reads r INNER JOIN chat_messages m ON m.id = r.message_id
        WHERE m.chat_id=$1 ORDER BY r.read_at ASC`, chatID); err != nil {
		return models.Chat{}, apperrors.Transient("load read receipts", err)
	}
	byMessage := make(map[string][]models.ReadReceipt, len(chat.Messages))
	for _, rr := range reads {
		byMessage[rr.MessageID] = append(byMessage[rr.MessageID], models.ReadReceipt{UserID: rr.UserID, ReadAt: rr.ReadAt})
	}
	for i := range chat.Messages {
		chat.Messages[i].ReadBy = byMessage[chat.Messages[i].ID]
	}
	if chat.Participants == nil {
		chat.Participants = []models.Participant{}
	}
	if chat.Messages == nil {
		chat.Messages = []models.Message{}
	}
	return chat, nil
}

// ListChatsForUser returns active chats the user belongs to, most recent
// activity first, with per-user unread counts.
func (r *ChatRepo) ListChatsForUser(ctx context.Context, userID string) ([]models.ChatSummary, error) {
	type summaryRow struct {
		ChatID        string          `db:"id"`
		Type          models.ChatType `db:"type"`
		Name          string          `db:"name"`
		LastMessageID sql.NullString  `db:"last_message_id"`
		LastMessageAt sql.NullTime    `db:"last_message_at"`
		Muted         bool            `db:"muted"`
		UnreadCount   int             `db:"unread_count"`
	}
	query := `SELECT c.id, c.type, COALESCE(c.group_name, '') AS name, c.last_message_id, c.last_message_at, p.muted,
            (SELECT COUNT(*) FROM chat_messages m
                WHERE m.chat_id = c.id AND m.sender_id <> $1 AND m.deleted = FALSE AND m.created_at > p.last_read_at) AS unread_count
        FROM chats c
        INNER JOIN chat_participants p ON p.chat_id = c.id AND p.user_id = $1
        WHERE c.is_active
        ORDER BY COALESCE(c.last_message_at, c.created_at) DESC`
	var rows []summaryRow
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, apperrors.Transient("list chats", err)
	}
	if len(rows) == 0 {
		return []models.ChatSummary{}, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ChatID)
	}
	var members []struct {
		ChatID string `db:"chat_id"`
		UserID string `db:"user_id"`
	}
	if err := r.db.SelectContext(ctx, &members, `SELECT chat_id, user_id FROM chat_participants
        WHERE chat_id = ANY($1) ORDER BY position ASC`, pq.Array(ids)); err != nil {
		return nil, apperrors.Transient("list chat participants", err)
	}
	membersByChat := make(map[string][]string, len(rows))
	for _, m := range members {
		membersByChat[m.ChatID] = append(membersByChat[m.ChatID], m.UserID)
	}

	result := make([]models.ChatSummary, 0, len(rows))
	for _, row := range rows {
		summary := models.ChatSummary{
			ChatID:        row.ChatID,
			Type:          row.Type,
			Name:          row.Name,
			Participants:  membersByChat[row.ChatID],
			LastMessageID: row.LastMessageID.String,
			UnreadCount:   row.UnreadCount,
			Muted:         row.Muted,
		}
		if row.LastMessageAt.Valid {
			at := row.LastMessageAt.Time
			summary.LastMessageAt = &at
		}
		result = append(result, summary)
	}
	return result, nil
}

// IsParticipant checks whether a user belongs to the chat.
func (r *ChatRepo) IsParticipant(ctx context.Context, chatID string, userID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM chat_participants WHERE chat_id=$1 AND user_id=$2)`, chatID, userID)
	if err != nil {
		return false, apperrors.Transient("check participant", err)
	}
	return exists, nil
}

// AppendMessage appends to the log and updates the derived chat fields in
// one transaction under the chat row lock. A repeated client message id
// returns the stored message and false.
func (r *ChatRepo) AppendMessage(ctx context.Context, chatID string, msg models.NewMessage) (models.Message, bool, error) {
	var (
		stored  models.Message
		created bool
	)
	err := r.withChatLock(ctx, chatID, func(tx *sqlx.Tx, chat chatRow) error {
		if !chat.IsActive {
			return apperrors.Validation("chat is inactive")
		}
		if err := requireParticipant(ctx, tx, chatID, msg.SenderID); err != nil {
			return err
		}

		if msg.ClientMessageID != "" {
			err := tx.GetContext(ctx, &stored, `SELECT `+messageColumns+` FROM chat_messages
                WHERE chat_id=$1 AND client_message_id=$2`, chatID, msg.ClientMessageID)
			if err == nil {
				return loadReads(ctx, tx, &stored)
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return apperrors.Transient("lookup client message id", err)
			}
		}

		seq := chat.MessageSeq + 1
		err := tx.GetContext(ctx, &stored, `INSERT INTO chat_messages
            (id, chat_id, seq, sender_id, content, kind, file_url, client_message_id, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), clock_timestamp())
            RETURNING `+messageColumns,
			uuid.NewString(), chatID, seq, msg.SenderID, msg.Content, msg.Kind, msg.FileURL, msg.ClientMessageID)
		if err != nil {
			return apperrors.Transient("insert message", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO message_reads (message_id, user_id, read_at) VALUES ($1, $2, $3)`,
			stored.ID, msg.SenderID, stored.CreatedAt); err != nil {
			return apperrors.Transient("insert sender receipt", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE chats SET last_message_id=$2, last_message_at=$3, message_seq=$4,
            version = version + 1, updated_at=$3 WHERE id=$1`, chatID, stored.ID, stored.CreatedAt, seq); err != nil {
			return apperrors.Transient("update chat", err)
		}
		stored.ReadBy = []models.ReadReceipt{{UserID: msg.SenderID, ReadAt: stored.CreatedAt}}
		created = true
		return nil
	})
	return stored, created, err
}

// EditMessage replaces the content of a message; only its sender may edit.
func (r *ChatRepo) EditMessage(ctx context.Context, chatID, messageID, editorID, content string) (models.Message, error) {
	var msg models.Message
	err := r.withChatLock(ctx, chatID, func(tx *sqlx.Tx, _ chatRow) error {
		current, err := getMessage(ctx, tx, chatID, messageID)
		if err != nil {
			return err
		}
		if current.SenderID != editorID {
			return apperrors.Unauthorized("only the sender can edit a message")
		}
		if current.Deleted {
			return apperrors.Validation("message is deleted")
		}
		if err := tx.GetContext(ctx, &msg, `UPDATE chat_messages SET content=$3, edited=TRUE, edited_at=clock_timestamp()
            WHERE id=$1 AND chat_id=$2 RETURNING `+messageColumns, messageID, chatID, content); err != nil {
			return apperrors.Transient("edit message", err)
		}
		if err := bumpVersion(ctx, tx, chatID); err != nil {
			return err
		}
		return loadReads(ctx, tx, &msg)
	})
	return msg, err
}

// DeleteMessage soft-deletes a message; only its sender may delete. Deleting
// an already deleted message returns it unchanged and false.
func (r *ChatRepo) DeleteMessage(ctx context.Context, chatID, messageID, requesterID string) (models.Message, bool, error) {
	var (
		msg     models.Message
		deleted bool
	)
	err := r.withChatLock(ctx, chatID, func(tx *sqlx.Tx, _ chatRow) error {
		current, err := getMessage(ctx, tx, chatID, messageID)
		if err != nil {
			return err
		}
		if current.SenderID != requesterID {
			return apperrors.Unauthorized("only the sender can delete a message")
		}
		if current.Deleted {
			msg = current
			return loadReads(ctx, tx, &msg)
		}
		if err := tx.GetContext(ctx, &msg, `UPDATE chat_messages SET deleted=TRUE, deleted_at=clock_timestamp()
            WHERE id=$1 AND chat_id=$2 RETURNING `+messageColumns, messageID, chatID); err != nil {
			return apperrors.Transient("delete message", err)
		}
		deleted = true
		if err := bumpVersion(ctx, tx, chatID); err != nil {
			return err
		}
		return loadReads(ctx, tx, &msg)
	})
	return msg, deleted, err
}

// AddParticipant appends a roster entry with lastRead set to now.
func (r *ChatRepo) AddParticipant(ctx context.Context, chatID, userID string, role models.Role) (models.Participant, error) {
	var p models.Participant
	err := r.withChatLock(ctx, chatID, func(tx *sqlx.Tx, chat chatRow) error {
		if chat.Type == models.ChatTypeDirect {
			return apperrors.Validation("direct chats have a fixed roster")
		}
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM chat_participants WHERE chat_id=$1 AND user_id=$2)`, chatID, userID); err != nil {
			return apperrors.Transient("check participant", err)
		}
		if exists {
			return apperrors.AlreadyParticipant(chatID, userID)
		}
		if err := tx.GetContext(ctx, &p, `INSERT INTO chat_participants (chat_id, user_id, role, joined_at, last_read_at)
            VALUES ($1, $2, $3, clock_timestamp(), clock_timestamp())
            RETURNING user_id, role, joined_at, last_read_at, muted`, chatID, userID, role); err != nil {
			return apperrors.Transient("insert participant", err)
		}
		return bumpVersion(ctx, tx, chatID)
	})
	return p, err
}

// RemoveParticipant removes a roster entry and reports whether the chat is
// still active. Non-group chats are deactivated once they lose a member.
func (r *ChatRepo) RemoveParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	active := false
	err := r.withChatLock(ctx, chatID, func(tx *sqlx.Tx, chat chatRow) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM chat_participants WHERE chat_id=$1 AND user_id=$2`, chatID, userID)
		if err != nil {
			return apperrors.Transient("delete participant", err)
		}
		count, err := res.RowsAffected()
		if err != nil {
			return apperrors.Transient("delete participant", err)
		}
		if count == 0 {
			return apperrors.NotParticipant(chatID, userID)
		}

		active = chat.IsActive
		if chat.Type != models.ChatTypeGroup {
			active = false
		}
		if _, err := tx.ExecContext(ctx, `UPDATE chats SET is_active=$2, version = version + 1, updated_at=clock_timestamp() WHERE id=$1`,
			chatID, active); err != nil {
			return apperrors.Transient("update chat", err)
		}
		return nil
	})
	return active, err
}

// SetMuted toggles notifications for one participant.
func (r *ChatRepo) SetMuted(ctx context.Context, chatID, userID string, muted bool) error {
	return r.withChatLock(ctx, chatID, func(tx *sqlx.Tx, _ chatRow) error {
		res, err := tx.ExecContext(ctx, `UPDATE chat_participants SET muted=$3 WHERE chat_id=$1 AND user_id=$2`, chatID, userID, muted)
		if err != nil {
			return apperrors.Transient("update participant", err)
		}
		count, err := res.RowsAffected()
		if err != nil {
			return apperrors.Transient("update participant", err)
		}
		if count == 0 {
			return apperrors.NotParticipant(chatID, userID)
		}
		return nil
	})
}

// MarkRead adds read receipts (skipping existing ones) and moves the
// participant's watermark to now. It returns the newly marked message ids.
func (r *ChatRepo) MarkRead(ctx context.Context, chatID, userID string, messageIDs []string) ([]string, error) {
	var marked []string
	err := r.withChatLock(ctx, chatID, func(tx *sqlx.Tx, _ chatRow) error {
		if err := requireParticipant(ctx, tx, chatID, userID); err != nil {
			return err
		}

		query := `INSERT INTO message_reads (message_id, user_id, read_at)
            SELECT m.id, $2, clock_timestamp() FROM chat_messages m WHERE m.chat_id=$1`
		args := []interface{}{chatID, userID}
		if len(messageIDs) > 0 {
			query += ` AND m.id = ANY($3)`
			args = append(args, pq.Array(messageIDs))
		}
		query += ` ORDER BY m.seq ON CONFLICT (message_id, user_id) DO NOTHING RETURNING message_id`
		if err := tx.SelectContext(ctx, &marked, query, args...); err != nil {
			return apperrors.Transient("insert read receipts", err)
		}

		if _, err := tx.ExecContext(ctx, `UPDATE chat_participants SET last_read_at=clock_timestamp() WHERE chat_id=$1 AND user_id=$2`,
			chatID, userID); err != nil {
			return apperrors.Transient("update watermark", err)
		}
		return bumpVersion(ctx, tx, chatID)
	})
	return marked, err
}

// UnreadCount counts from the persisted message set; it never caches.
func (r *ChatRepo) UnreadCount(ctx context.Context, chatID, userID string) (int, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM chats WHERE id=$1)`, chatID); err != nil {
		return 0, apperrors.Transient("check chat", err)
	}
	if !exists {
		return 0, apperrors.NotFound("chat")
	}

	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM chat_messages m
        INNER JOIN chat_participants p ON p.chat_id = m.chat_id AND p.user_id = $2
        WHERE m.chat_id=$1 AND m.sender_id <> $2 AND m.deleted = FALSE AND m.created_at > p.last_read_at`, chatID, userID)
	if err != nil {
		return 0, apperrors.Transient("count unread", err)
	}
	return count, nil
}

func (r *ChatRepo) withChatLock(ctx context.Context, chatID string, fn func(tx *sqlx.Tx, chat chatRow) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperrors.Transient("begin tx", err)
	}
	defer tx.Rollback()

	var row chatRow
	err = tx.GetContext(ctx, &row, `SELECT `+chatColumns+` FROM chats WHERE id=$1 FOR UPDATE`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound("chat")
	}
	if err != nil {
		return apperrors.Transient("lock chat", err)
	}

	if err := fn(tx, row); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Transient("commit", err)
	}
	return nil
}

func requireParticipant(ctx context.Context, tx *sqlx.Tx, chatID, userID string) error {
	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM chat_participants WHERE chat_id=$1 AND user_id=$2)`, chatID, userID); err != nil {
		return apperrors.Transient("check participant", err)
	}
	if !exists {
		return apperrors.NotParticipant(chatID, userID)
	}
	return nil
}

func getMessage(ctx context.Context, tx *sqlx.Tx, chatID, messageID string) (models.Message, error) {
	var msg models.Message
	err := tx.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM chat_messages WHERE id=$1 AND chat_id=$2`, messageID, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, apperrors.NotFound("message")
	}
	if err != nil {
		return models.Message{}, apperrors.Transient("load message", err)
	}
	return msg, nil
}

func loadReads(ctx context.Context, tx *sqlx.Tx, msg *models.Message) error {
	var reads []models.ReadReceipt
	if err := tx.SelectContext(ctx, &reads, `SELECT user_id, read_at FROM message_reads WHERE message_id=$1 ORDER BY read_at ASC`, msg.ID); err != nil {
		return apperrors.Transient("load read receipts", err)
	}
	msg.ReadBy = reads
	return nil
}

func bumpVersion(ctx context.Context, tx *sqlx.Tx, chatID string) error {
	if _, err := tx.ExecContext(ctx, `UPDATE chats SET version = version + 1, updated_at=clock_timestamp() WHERE id=$1`, chatID); err != nil {
		return apperrors.Transient("update chat version", err)
	}
	return nil
}
