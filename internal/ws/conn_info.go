package ws

import (
	"time"

	"github.com/google/uuid"
)

type ConnInfo struct {
	ConnID      string
	UserID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

func newConnID() string {
	return uuid.NewString()
}

// identity is the audit view of a connection.
func (i ConnInfo) identity() map[string]any {
	return map[string]any{
		"user_id":   i.UserID,
		"device_id": i.DeviceID,
		"ip":        i.IP,
	}
}
