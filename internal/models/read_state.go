package models

import "time"

// UnreadCount counts messages userID has not read: newer than the
// participant's lastRead watermark, sent by someone else and not deleted.
// Non-participants have nothing unread.
func UnreadCount(chat *Chat, userID string) int {
	p, ok := chat.Participant(userID)
	if !ok {
		return 0
	}
	count := 0
	for _, m := range chat.Messages {
		if m.Deleted || m.SenderID == userID {
			continue
		}
		if m.CreatedAt.After(p.LastRead) {
			count++
		}
	}
	return count
}

// ApplyRead adds a receipt for userID to the selected messages (all of them
// when messageIDs is empty) and moves the participant's watermark to now.
// Messages already read by userID are skipped. It returns the ids of the
// messages that received a new receipt.
func ApplyRead(chat *Chat, userID string, messageIDs []string, now time.Time) []string {
	var selected map[string]struct{}
	if len(messageIDs) > 0 {
		selected = make(map[string]struct{}, len(messageIDs))
		for _, id := range messageIDs {
			selected[id] = struct{}{}
		}
	}

	var marked []string
	for i := range chat.Messages {
		m := &chat.Messages[i]
		if selected != nil {
			if _, ok := selected[m.ID]; !ok {
				continue
			}
		}
		if m.ReadByUser(userID) {
			continue
		}
		m.ReadBy = append(m.ReadBy, ReadReceipt{UserID: userID, ReadAt: now})
		marked = append(marked, m.ID)
	}

	for i := range chat.Participants {
		if chat.Participants[i].UserID == userID {
			chat.Participants[i].LastRead = now
		}
	}
	return marked
}
