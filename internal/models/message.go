package models

import "time"

// MessageKind is the content type of a chat message.
type MessageKind string

const (
	KindText   MessageKind = "text"
	KindImage  MessageKind = "image"
	KindFile   MessageKind = "file"
	KindSystem MessageKind = "system"
)

func (k MessageKind) Valid() bool {
	switch k {
	case KindText, KindImage, KindFile, KindSystem:
		return true
	}
	return false
}

// ReadReceipt records that a user has read a message.
type ReadReceipt struct {
	UserID string    `db:"user_id" json:"user_id"`
	ReadAt time.Time `db:"read_at" json:"read_at"`
}

// Message is an entry of a chat's message log.
type Message struct {
	ID              string        `db:"id" json:"id"`
	ChatID          string        `db:"chat_id" json:"chat_id"`
	Seq             int64         `db:"seq" json:"seq"`
	SenderID        string        `db:"sender_id" json:"sender_id"`
	Content         string        `db:"content" json:"content"`
	Kind            MessageKind   `db:"kind" json:"kind"`
	FileURL         string        `db:"file_url" json:"file_url,omitempty"`
	ClientMessageID string        `db:"client_message_id" json:"client_message_id,omitempty"`
	ReadBy          []ReadReceipt `db:"-" json:"read_by"`
	Edited          bool          `db:"edited" json:"edited"`
	EditedAt        *time.Time    `db:"edited_at" json:"edited_at,omitempty"`
	Deleted         bool          `db:"deleted" json:"deleted"`
	DeletedAt       *time.Time    `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
}

func (m *Message) ReadByUser(userID string) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

func (m Message) Clone() Message {
	out := m
	out.ReadBy = append([]ReadReceipt(nil), m.ReadBy...)
	if m.EditedAt != nil {
		at := *m.EditedAt
		out.EditedAt = &at
	}
	if m.DeletedAt != nil {
		at := *m.DeletedAt
		out.DeletedAt = &at
	}
	return out
}

// NewMessage is the input to an append.
type NewMessage struct {
	SenderID        string
	Content         string
	Kind            MessageKind
	FileURL         string
	ClientMessageID string
}
