package models

import (
	"fmt"
	"time"
)

// ChatType discriminates direct (two-party) chats from group chats.
type ChatType string

const (
	ChatTypeDirect ChatType = "direct"
	ChatTypeGroup  ChatType = "group"
)

func (t ChatType) Valid() bool {
	return t == ChatTypeDirect || t == ChatTypeGroup
}

// Role is a participant's role within a chat.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// Participant is one roster entry of a chat.
type Participant struct {
	UserID   string    `db:"user_id" json:"user_id"`
	Role     Role      `db:"role" json:"role"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
	LastRead time.Time `db:"last_read_at" json:"last_read"`
	Muted    bool      `db:"muted" json:"muted"`
}

// Chat is the aggregate: roster, message log and read state share one
// consistency boundary.
type Chat struct {
	ID            string        `json:"id"`
	Type          ChatType      `json:"type"`
	Participants  []Participant `json:"participants"`
	Messages      []Message     `json:"messages"`
	GroupInfo     *GroupInfo    `json:"group_info,omitempty"`
	LastMessageID string        `json:"last_message_id,omitempty"`
	LastMessageAt *time.Time    `json:"last_message_at,omitempty"`
	MessageSeq    int64         `json:"message_seq"`
	Version       int64         `json:"version"`
	CreatedBy     string        `json:"created_by"`
	IsActive      bool          `json:"is_active"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Participant returns the roster entry for userID.
func (c *Chat) Participant(userID string) (Participant, bool) {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return p, true
		}
	}
	return Participant{}, false
}

func (c *Chat) IsParticipant(userID string) bool {
	_, ok := c.Participant(userID)
	return ok
}

// IsDirectPair reports whether c is a direct chat whose roster is exactly
// {userA, userB}.
func (c *Chat) IsDirectPair(userA, userB string) bool {
	if c.Type != ChatTypeDirect || userA == userB || len(c.Participants) != 2 {
		return false
	}
	return c.IsParticipant(userA) && c.IsParticipant(userB)
}

// Message returns a pointer into the message log, or nil.
func (c *Chat) Message(messageID string) *Message {
	for i := range c.Messages {
		if c.Messages[i].ID == messageID {
			return &c.Messages[i]
		}
	}
	return nil
}

// Clone returns a deep copy so callers never share slices with a store.
func (c Chat) Clone() Chat {
	out := c
	out.Participants = append([]Participant(nil), c.Participants...)
	out.Messages = make([]Message, len(c.Messages))
	for i, m := range c.Messages {
		out.Messages[i] = m.Clone()
	}
	if c.GroupInfo != nil {
		info := *c.GroupInfo
		out.GroupInfo = &info
	}
	if c.LastMessageAt != nil {
		at := *c.LastMessageAt
		out.LastMessageAt = &at
	}
	return out
}

// ChatSummary is a list view of a chat for one user.
type ChatSummary struct {
	ChatID        string     `json:"chat_id"`
	Type          ChatType   `json:"type"`
	Name          string     `json:"name,omitempty"`
	Participants  []string   `json:"participants"`
	LastMessageID string     `json:"last_message_id,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	UnreadCount   int        `json:"unread_count"`
	Muted         bool       `json:"muted"`
}

// DirectKey is the conversation-index key for an unordered pair of users.
// The lower id is length-prefixed so ids containing the separator cannot
// produce the same key for two different pairs.
func DirectKey(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("%d:%s|%s", len(userA), userA, userB)
}
