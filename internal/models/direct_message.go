package models

import "time"

// DirectMessage is a flat 1:1 message record, independent of any Chat.
type DirectMessage struct {
	ID         string     `db:"id" json:"id"`
	FromUserID string     `db:"from_user_id" json:"from_user_id"`
	ToUserID   string     `db:"to_user_id" json:"to_user_id"`
	Text       string     `db:"text" json:"text"`
	IsRead     bool       `db:"is_read" json:"is_read"`
	ReadAt     *time.Time `db:"read_at" json:"read_at,omitempty"`
	IsDeleted  bool       `db:"is_deleted" json:"is_deleted"`
	DeletedAt  *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// Counterpart returns the other party of the message as seen by userID.
func (m DirectMessage) Counterpart(userID string) string {
	if m.FromUserID == userID {
		return m.ToUserID
	}
	return m.FromUserID
}

// ConversationSummary is one row of a user's recent direct conversations.
type ConversationSummary struct {
	CounterpartID string        `json:"counterpart_id"`
	LastMessage   DirectMessage `json:"last_message"`
	UnreadCount   int           `json:"unread_count"`
}
