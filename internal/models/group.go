package models

// GroupInfo describes a group chat. It is present only when Type is group.
type GroupInfo struct {
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	Avatar            string `json:"avatar,omitempty"`
	RelatedActivityID string `json:"related_activity_id,omitempty"`
}

// NewParticipant is a requested roster entry at group creation.
type NewParticipant struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}
