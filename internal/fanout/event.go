package fanout

import (
	"encoding/json"
	"time"
)

// EventKind names a mutation the live audience of a chat cares about.
type EventKind string

const (
	MessageCreated     EventKind = "message.created"
	MessageEdited      EventKind = "message.edited"
	MessageDeleted     EventKind = "message.deleted"
	ParticipantAdded   EventKind = "participant.added"
	ParticipantRemoved EventKind = "participant.removed"
	ChatRead           EventKind = "chat.read"
)

// Event is published on the topic named by ChatID.
type Event struct {
	ChatID     string    `json:"chat_id"`
	Kind       EventKind `json:"kind"`
	Payload    any       `json:"payload"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ParticipantPayload accompanies participant.added and participant.removed.
type ParticipantPayload struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
	Active bool   `json:"active"`
}

// ReadPayload accompanies chat.read.
type ReadPayload struct {
	UserID     string    `json:"user_id"`
	MessageIDs []string  `json:"message_ids"`
	ReadAt     time.Time `json:"read_at"`
}

// NewEvent stamps an event with the current time.
func NewEvent(chatID string, kind EventKind, payload any) Event {
	return Event{ChatID: chatID, Kind: kind, Payload: payload, OccurredAt: time.Now().UTC()}
}

// Encode renders the wire form sent to websocket clients.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// wireEvent is the decoding side of Encode; the payload stays raw.
type wireEvent struct {
	ChatID  string          `json:"chat_id"`
	Kind    EventKind       `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}
