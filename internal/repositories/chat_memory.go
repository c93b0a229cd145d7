package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"social-chat/internal/apperrors"
	"social-chat/internal/models"
)

// MemoryChatRepo keeps chats in process memory. Each chat has its own mutex;
// the store-wide lock only guards the chat map and the direct-chat index.
// Lock order is always chat lock before store lock.
type MemoryChatRepo struct {
	mu     sync.RWMutex
	chats  map[string]*memoryChat
	direct map[string]string
	clock  *monotonicClock
}

type memoryChat struct {
	mu        sync.Mutex
	chat      models.Chat
	clientIDs map[string]string
}

// NewMemoryChatRepo constructs a MemoryChatRepo. A nil clock uses time.Now.
func NewMemoryChatRepo(clock Clock) *MemoryChatRepo {
	return &MemoryChatRepo{
		chats:  make(map[string]*memoryChat),
		direct: make(map[string]string),
		clock:  newMonotonicClock(clock),
	}
}

func (r *MemoryChatRepo) FindDirectChat(ctx context.Context, userA, userB string) (models.Chat, error) {
	r.mu.RLock()
	chatID, ok := r.direct[models.DirectKey(userA, userB)]
	r.mu.RUnlock()
	if !ok {
		return models.Chat{}, apperrors.NotFound("direct chat")
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

func (r *MemoryChatRepo) CreateDirectChat(ctx context.Context, userA, userB string) (models.Chat, bool, error) {
	key := models.DirectKey(userA, userB)
	for {
		r.mu.Lock()
		if chatID, ok := r.direct[key]; ok {
			entry := r.chats[chatID]
			r.mu.Unlock()

			entry.mu.Lock()
			chat := entry.chat.Clone()
			entry.mu.Unlock()
			if chat.IsActive {
				if !chat.IsDirectPair(userA, userB) {
					return models.Chat{}, false, errDirectKeyConflict
				}
				return chat, false, nil
			}
			// deactivated between index lookup and clone; the index entry is gone now
			continue
		}

		now := r.clock.Now()
		chat := models.Chat{
			ID:   uuid.NewString(),
			Type: models.ChatTypeDirect,
			Participants: []models.Participant{
				{UserID: userA, Role: models.RoleMember, JoinedAt: now, LastRead: now},
				{UserID: userB, Role: models.RoleMember, JoinedAt: now, LastRead: now},
			},
			Messages:  []models.Message{},
			CreatedBy: userA,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		r.chats[chat.ID] = &memoryChat{chat: chat, clientIDs: make(map[string]string)}
		r.direct[key] = chat.ID
		r.mu.Unlock()
		return chat.Clone(), true, nil
	}
}

func (r *MemoryChatRepo) CreateGroupChat(ctx context.Context, createdBy string, info models.GroupInfo, participants []models.NewParticipant) (models.Chat, error) {
	now := r.clock.Now()
	groupInfo := info
	chat := models.Chat{
		ID:           uuid.NewString(),
		Type:         models.ChatTypeGroup,
		Participants: make([]models.Participant, 0, len(participants)),
		Messages:     []models.Message{},
		GroupInfo:    &groupInfo,
		CreatedBy:    createdBy,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, p := range participants {
		chat.Participants = append(chat.Participants, models.Participant{UserID: p.UserID, Role: p.Role, JoinedAt: now, LastRead: now})
	}

	r.mu.Lock()
	r.chats[chat.ID] = &memoryChat{chat: chat, clientIDs: make(map[string]string)}
	r.mu.Unlock()
	return chat.Clone(), nil
}

func (r *MemoryChatRepo) GetChat(ctx context.Context, chatID string) (models.Chat, error) {
	entry, err := r.entry(chatID)
	if err != nil {
		return models.Chat{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.chat.Clone(), nil
}

func (r *MemoryChatRepo) ListChatsForUser(ctx context.Context, userID string) ([]models.ChatSummary, error) {
	r.mu.RLock()
	entries := make([]*memoryChat, 0, len(r.chats))
	for _, entry := range r.chats {
		entries = append(entries, entry)
	}
	r.mu.RUnlock()

	type ranked struct {
		summary  models.ChatSummary
		activity time.Time
	}
	var rows []ranked
	for _, entry := range entries {
		entry.mu.Lock()
		chat := &entry.chat
		p, ok := chat.Participant(userID)
		if ok && chat.IsActive {
			summary := models.ChatSummary{
				ChatID:        chat.ID,
				Type:          chat.Type,
				LastMessageID: chat.LastMessageID,
				UnreadCount:   models.UnreadCount(chat, userID),
				Muted:         p.Muted,
			}
			if chat.GroupInfo != nil {
				summary.Name = chat.GroupInfo.Name
			}
			activity := chat.CreatedAt
			if chat.LastMessageAt != nil {
				at := *chat.LastMessageAt
				summary.LastMessageAt = &at
				activity = at
			}
			for _, member := range chat.Participants {
				summary.Participants = append(summary.Participants, member.UserID)
			}
			rows = append(rows, ranked{summary: summary, activity: activity})
		}
		entry.mu.Unlock()
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].activity.After(rows[j].activity)
	})
	result := make([]models.ChatSummary, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.summary)
	}
	return result, nil
}

func (r *MemoryChatRepo) IsParticipant(ctx context.Context, chatID string, userID string) (bool, error) {
	entry, err := r.entry(chatID)
	if err != nil {
		if apperrors.Is(err, apperrors.KindNotFound) {
			return false, nil
		}
		return false, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.chat.IsParticipant(userID), nil
}

func (r *MemoryChatRepo) AppendMessage(ctx context.Context, chatID string, msg models.NewMessage) (models.Message, bool, error) {
	entry, err := r.entry(chatID)
	if err != nil {
		return models.Message{}, false, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	chat := &entry.chat
	if !chat.IsActive {
		return models.Message{}, false, apperrors.Validation("chat is inactive")
	}
	if !chat.IsParticipant(msg.SenderID) {
		return models.Message{}, false, apperrors.NotParticipant(chatID, msg.SenderID)
	}
	if msg.ClientMessageID != "" {
		if existingID, ok := entry.clientIDs[msg.ClientMessageID]; ok {
			if existing := chat.Message(existingID); existing != nil {
				return existing.Clone(), false, nil
			}
		}
	}

	now := r.clock.Now()
	chat.MessageSeq++
	stored := models.Message{
		ID:              uuid.NewString(),
		ChatID:          chatID,
		Seq:             chat.MessageSeq,
		SenderID:        msg.SenderID,
		Content:         msg.Content,
		Kind:            msg.Kind,
		FileURL:         msg.FileURL,
		ClientMessageID: msg.ClientMessageID,
		ReadBy:          []models.ReadReceipt{{UserID: msg.SenderID, ReadAt: now}},
		CreatedAt:       now,
	}
	chat.Messages = append(chat.Messages, stored)
	chat.LastMessageID = stored.ID
	chat.LastMessageAt = &now
	chat.Version++
	chat.UpdatedAt = now
	if msg.ClientMessageID != "" {
		entry.clientIDs[msg.ClientMessageID] = stored.ID
	}
	return stored.Clone(), true, nil
}

func (r *MemoryChatRepo) EditMessage(ctx context.Context, chatID, messageID, editorID, content string) (models.Message, error) {
	entry, err := r.entry(chatID)
	if err != nil {
		return models.Message{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	msg := entry.chat.Message(messageID)
	if msg == nil {
		return models.Message{}, apperrors.NotFound("message")
	}
	if msg.SenderID != editorID {
		return models.Message{}, apperrors.Unauthorized("only the sender can edit a message")
	}
	if msg.Deleted {
		return models.Message{}, apperrors.Validation("message is deleted")
	}

	now := r.clock.Now()
	msg.Content = content
	msg.Edited = true
	msg.EditedAt = &now
	entry.chat.Version++
	entry.chat.UpdatedAt = now
	return msg.Clone(), nil
}

func (r *MemoryChatRepo) DeleteMessage(ctx context.Context, chatID, messageID, requesterID string) (models.Message, bool, error) {
	entry, err := r.entry(chatID)
	if err != nil {
		return models.Message{}, false, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	msg := entry.chat.Message(messageID)
	if msg == nil {
		return models.Message{}, false, apperrors.NotFound("message")
	}
	if msg.SenderID != requesterID {
		return models.Message{}, false, apperrors.Unauthorized("only the sender can delete a message")
	}
	if msg.Deleted {
		return msg.Clone(), false, nil
	}

	now := r.clock.Now()
	msg.Deleted = true
	msg.DeletedAt = &now
	entry.chat.Version++
	entry.chat.UpdatedAt = now
	return msg.Clone(), true, nil
}

func (r *MemoryChatRepo) AddParticipant(ctx context.Context, chatID, userID string, role models.Role) (models.Participant, error) {
	entry, err := r.entry(chatID)
	if err != nil {
		return models.Participant{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	chat := &entry.chat
	if chat.Type == models.ChatTypeDirect {
		return models.Participant{}, apperrors.Validation("direct chats have a fixed roster")
	}
	if chat.IsParticipant(userID) {
		return models.Participant{}, apperrors.AlreadyParticipant(chatID, userID)
	}

	now := r.clock.Now()
	p := models.Participant{UserID: userID, Role: role, JoinedAt: now, LastRead: now}
	chat.Participants = append(chat.Participants, p)
	chat.Version++
	chat.UpdatedAt = now
	return p, nil
}

func (r *MemoryChatRepo) RemoveParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	entry, err := r.entry(chatID)
	if err != nil {
		return false, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	chat := &entry.chat
	idx := -1
	for i, p := range chat.Participants {
		if p.UserID == userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, apperrors.NotParticipant(chatID, userID)
	}

	chat.Participants = append(chat.Participants[:idx], chat.Participants[idx+1:]...)
	if chat.Type != models.ChatTypeGroup && chat.IsActive {
		chat.IsActive = false
		r.mu.Lock()
		for key, id := range r.direct {
			if id == chatID {
				delete(r.direct, key)
			}
		}
		r.mu.Unlock()
	}
	chat.Version++
	chat.UpdatedAt = r.clock.Now()
	return chat.IsActive, nil
}

func (r *MemoryChatRepo) SetMuted(ctx context.Context, chatID, userID string, muted bool) error {
	entry, err := r.entry(chatID)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	for i := range entry.chat.Participants {
		if entry.chat.Participants[i].UserID == userID {
			entry.chat.Participants[i].Muted = muted
			return nil
		}
	}
	return apperrors.NotParticipant(chatID, userID)
}

func (r *MemoryChatRepo) MarkRead(ctx context.Context, chatID, userID string, messageIDs []string) ([]string, error) {
	entry, err := r.entry(chatID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if !entry.chat.IsParticipant(userID) {
		return nil, apperrors.NotParticipant(chatID, userID)
	}
	now := r.clock.Now()
	marked := models.ApplyRead(&entry.chat, userID, messageIDs, now)
	entry.chat.Version++
	entry.chat.UpdatedAt = now
	return marked, nil
}

func (r *MemoryChatRepo) UnreadCount(ctx context.Context, chatID, userID string) (int, error) {
	entry, err := r.entry(chatID)
	if err != nil {
		return 0, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return models.UnreadCount(&entry.chat, userID), nil
}

func (r *MemoryChatRepo) entry(chatID string) (*memoryChat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.chats[chatID]
	if !ok {
		return nil, apperrors.NotFound("chat")
	}
	return entry, nil
}

var _ ChatRepository = (*ChatRepo)(nil)
var _ ChatRepository = (*MemoryChatRepo)(nil)
