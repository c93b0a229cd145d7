package repositories

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"social-chat/internal/apperrors"
	"social-chat/internal/models"
)

// MemoryDirectMessageRepo keeps direct messages in insertion order, which is
// also creation order.
type MemoryDirectMessageRepo struct {
	mu       sync.RWMutex
	messages []*models.DirectMessage
	byID     map[string]*models.DirectMessage
	clock    *monotonicClock
}

// NewMemoryDirectMessageRepo constructs a MemoryDirectMessageRepo.
func NewMemoryDirectMessageRepo(clock Clock) *MemoryDirectMessageRepo {
	return &MemoryDirectMessageRepo{
		byID:  make(map[string]*models.DirectMessage),
		clock: newMonotonicClock(clock),
	}
}

func (r *MemoryDirectMessageRepo) Create(ctx context.Context, fromUserID, toUserID, text string) (models.DirectMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg := &models.DirectMessage{
		ID:         uuid.NewString(),
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Text:       text,
		CreatedAt:  r.clock.Now(),
	}
	r.messages = append(r.messages, msg)
	r.byID[msg.ID] = msg
	return *msg, nil
}

func (r *MemoryDirectMessageRepo) Get(ctx context.Context, messageID string) (models.DirectMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	msg, ok := r.byID[messageID]
	if !ok {
		return models.DirectMessage{}, apperrors.NotFound("message")
	}
	return *msg, nil
}

func (r *MemoryDirectMessageRepo) Conversation(ctx context.Context, userA, userB string) ([]models.DirectMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := []models.DirectMessage{}
	for _, msg := range r.messages {
		if msg.IsDeleted {
			continue
		}
		if (msg.FromUserID == userA && msg.ToUserID == userB) || (msg.FromUserID == userB && msg.ToUserID == userA) {
			result = append(result, *msg)
		}
	}
	return result, nil
}

func (r *MemoryDirectMessageRepo) MarkAsRead(ctx context.Context, userID, senderID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	now := r.clock.Now()
	for _, msg := range r.messages {
		if msg.ToUserID == userID && msg.FromUserID == senderID && !msg.IsRead {
			readAt := now
			msg.IsRead = true
			msg.ReadAt = &readAt
			count++
		}
	}
	return count, nil
}

func (r *MemoryDirectMessageRepo) UnreadCount(ctx context.Context, userID string) (int, error) {
	return r.countUnread(userID, "")
}

func (r *MemoryDirectMessageRepo) UnreadCountFrom(ctx context.Context, userID, senderID string) (int, error) {
	return r.countUnread(userID, senderID)
}

func (r *MemoryDirectMessageRepo) countUnread(userID, senderID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, msg := range r.messages {
		if msg.ToUserID != userID || msg.IsRead || msg.IsDeleted {
			continue
		}
		if senderID != "" && msg.FromUserID != senderID {
			continue
		}
		count++
	}
	return count, nil
}

func (r *MemoryDirectMessageRepo) SoftDelete(ctx context.Context, messageID, requesterID string) (models.DirectMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.byID[messageID]
	if !ok {
		return models.DirectMessage{}, apperrors.NotFound("message")
	}
	if msg.FromUserID != requesterID {
		return models.DirectMessage{}, apperrors.Unauthorized("only the sender can delete a message")
	}
	if !msg.IsDeleted {
		now := r.clock.Now()
		msg.IsDeleted = true
		msg.DeletedAt = &now
	}
	return *msg, nil
}

func (r *MemoryDirectMessageRepo) RecentForUser(ctx context.Context, userID string, limit int) ([]models.DirectMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := []models.DirectMessage{}
	for i := len(r.messages) - 1; i >= 0 && len(result) < limit; i-- {
		msg := r.messages[i]
		if msg.IsDeleted {
			continue
		}
		if msg.FromUserID == userID || msg.ToUserID == userID {
			result = append(result, *msg)
		}
	}
	return result, nil
}

var _ DirectMessageRepository = (*MemoryDirectMessageRepo)(nil)
