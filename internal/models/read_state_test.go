package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnreadCountSkipsOwnAndDeletedMessages(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	chat := &Chat{
		Participants: []Participant{
			{UserID: "a", LastRead: base},
			{UserID: "b", LastRead: base},
		},
		Messages: []Message{
			{ID: "m1", SenderID: "a", CreatedAt: base.Add(time.Second)},
			{ID: "m2", SenderID: "b", CreatedAt: base.Add(2 * time.Second)},
			{ID: "m3", SenderID: "a", CreatedAt: base.Add(3 * time.Second), Deleted: true},
			{ID: "m0", SenderID: "a", CreatedAt: base.Add(-time.Second)},
		},
	}

	assert.Equal(t, 1, UnreadCount(chat, "b"))
	assert.Equal(t, 1, UnreadCount(chat, "a"))
	assert.Equal(t, 0, UnreadCount(chat, "stranger"))
}

func TestApplyReadIsIdempotent(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	chat := &Chat{
		Participants: []Participant{{UserID: "a", LastRead: base}, {UserID: "b", LastRead: base}},
		Messages: []Message{
			{ID: "m1", SenderID: "a", CreatedAt: base.Add(time.Second), ReadBy: []ReadReceipt{{UserID: "a", ReadAt: base}}},
			{ID: "m2", SenderID: "a", CreatedAt: base.Add(2 * time.Second), ReadBy: []ReadReceipt{{UserID: "a", ReadAt: base}}},
		},
	}

	now := base.Add(time.Minute)
	marked := ApplyRead(chat, "b", nil, now)
	assert.Equal(t, []string{"m1", "m2"}, marked)
	assert.Empty(t, ApplyRead(chat, "b", nil, now.Add(time.Second)))

	for _, m := range chat.Messages {
		count := 0
		for _, r := range m.ReadBy {
			if r.UserID == "b" {
				count++
			}
		}
		assert.Equal(t, 1, count, "message %s", m.ID)
	}
	p, ok := chat.Participant("b")
	require.True(t, ok)
	assert.Equal(t, now.Add(time.Second), p.LastRead)
	assert.Equal(t, 0, UnreadCount(chat, "b"))
}

func TestApplyReadSelectedMessages(t *testing.T) {
	chat := &Chat{
		Participants: []Participant{{UserID: "b"}},
		Messages:     []Message{{ID: "m1", SenderID: "a"}, {ID: "m2", SenderID: "a"}},
	}

	marked := ApplyRead(chat, "b", []string{"m2", "missing"}, time.Now())
	assert.Equal(t, []string{"m2"}, marked)
	assert.False(t, chat.Messages[0].ReadByUser("b"))
	assert.True(t, chat.Messages[1].ReadByUser("b"))
}

func TestDirectKeyIsOrderIndependent(t *testing.T) {
	assert.Equal(t, DirectKey("alice", "bob"), DirectKey("bob", "alice"))
	assert.Equal(t, "5:alice|bob", DirectKey("bob", "alice"))
}

func TestDirectKeyDistinguishesSeparatorBearingIDs(t *testing.T) {
	assert.NotEqual(t, DirectKey("a:b", "c"), DirectKey("a", "b:c"))
	assert.NotEqual(t, DirectKey("a|b", "c"), DirectKey("a", "b|c"))
	assert.NotEqual(t, DirectKey("1:a", "b"), DirectKey("1", "a|b"))
}

func TestIsDirectPair(t *testing.T) {
	chat := Chat{
		Type:         ChatTypeDirect,
		Participants: []Participant{{UserID: "a:b"}, {UserID: "c"}},
	}
	assert.True(t, chat.IsDirectPair("c", "a:b"))
	assert.False(t, chat.IsDirectPair("a", "b:c"))
	assert.False(t, chat.IsDirectPair("c", "c"))

	chat.Type = ChatTypeGroup
	assert.False(t, chat.IsDirectPair("a:b", "c"))
}
