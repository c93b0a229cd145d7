package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"social-chat/internal/apperrors"
	"social-chat/internal/fanout"
	"social-chat/internal/models"
	"social-chat/internal/observability"
	"social-chat/internal/repositories"
)

// ChatService runs chat aggregate operations: it validates input, calls the
// store and, once the store has committed, hands an event to the notifier.
type ChatService struct {
	chats    repositories.ChatRepository
	users    repositories.UserDirectory
	notifier Notifier
	audit    Auditor
	logger   *slog.Logger
}

// NewChatService wires a ChatService. notifier and audit may be nil.
func NewChatService(chats repositories.ChatRepository, users repositories.UserDirectory, notifier Notifier, audit Auditor, logger *slog.Logger) *ChatService {
	if notifier == nil {
		notifier = discardNotifier{}
	}
	if audit == nil {
		audit = discardAuditor{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatService{chats: chats, users: users, notifier: notifier, audit: audit, logger: logger}
}

// CreateDirectChat returns the active direct chat for the pair, creating it
// on first use.
func (s *ChatService) CreateDirectChat(ctx context.Context, userA, userB string) (chat models.Chat, err error) {
	ctx, span := tracer().Start(ctx, "ChatService.CreateDirectChat",
		trace.WithAttributes(attribute.String("user.id", userA), attribute.String("peer.id", userB)))
	defer func() { end(span, err) }()

	userA, userB = strings.TrimSpace(userA), strings.TrimSpace(userB)
	if userA == "" || userB == "" {
		return models.Chat{}, apperrors.Validation("both users are required")
	}
	if userA == userB {
		return models.Chat{}, apperrors.Validation("cannot start a direct chat with yourself")
	}
	if err := s.requireUser(ctx, userB); err != nil {
		return models.Chat{}, err
	}

	chat, created, err := s.chats.CreateDirectChat(ctx, userA, userB)
	if err != nil {
		return models.Chat{}, err
	}
	span.SetAttributes(attribute.String("chat.id", chat.ID), attribute.Bool("chat.created", created))
	if created {
		s.audit.Emit(ctx, auditRecord(ctx, "chat.direct_created", userA, chat.ID, userB, "direct chat created"))
	}
	return chat, nil
}

// CreateGroupChat creates a group chat. An empty roster defaults to the
// creator as admin.
func (s *ChatService) CreateGroupChat(ctx context.Context, createdBy string, info models.GroupInfo, participants []models.NewParticipant) (chat models.Chat, err error) {
	ctx, span := tracer().Start(ctx, "ChatService.CreateGroupChat", trace.WithAttributes(attribute.String("user.id", createdBy)))
	defer func() { end(span, err) }()

	if strings.TrimSpace(createdBy) == "" {
		return models.Chat{}, apperrors.Validation("creator is required")
	}
	info.Name = strings.TrimSpace(info.Name)
	if info.Name == "" {
		return models.Chat{}, apperrors.Validation("group name is required")
	}

	roster, err := normalizeRoster(createdBy, participants)
	if err != nil {
		return models.Chat{}, err
	}
	for _, p := range roster {
		if p.UserID == createdBy {
			continue
		}
		if err := s.requireUser(ctx, p.UserID); err != nil {
			return models.Chat{}, err
		}
	}

	chat, err = s.chats.CreateGroupChat(ctx, createdBy, info, roster)
	if err != nil {
		return models.Chat{}, err
	}
	span.SetAttributes(attribute.String("chat.id", chat.ID), attribute.Int("chat.participants", len(chat.Participants)))
	s.audit.Emit(ctx, auditRecord(ctx, "chat.group_created", createdBy, chat.ID, "", "group chat created: "+info.Name))
	return chat, nil
}

func normalizeRoster(createdBy string, participants []models.NewParticipant) ([]models.NewParticipant, error) {
	if len(participants) == 0 {
		return []models.NewParticipant{{UserID: createdBy, Role: models.RoleAdmin}}, nil
	}
	seen := make(map[string]struct{}, len(participants))
	roster := make([]models.NewParticipant, 0, len(participants))
	for _, p := range participants {
		p.UserID = strings.TrimSpace(p.UserID)
		if p.UserID == "" {
			return nil, apperrors.Validation("participant user id is required")
		}
		if p.Role == "" {
			p.Role = models.RoleMember
		}
		if !p.Role.Valid() {
			return nil, apperrors.Validation("unknown role " + string(p.Role))
		}
		if _, dup := seen[p.UserID]; dup {
			continue
		}
		seen[p.UserID] = struct{}{}
		roster = append(roster, p)
	}
	return roster, nil
}

func (s *ChatService) GetChat(ctx context.Context, chatID string) (chat models.Chat, err error) {
	ctx, span := tracer().Start(ctx, "ChatService.GetChat", trace.WithAttributes(attribute.String("chat.id", chatID)))
	defer func() { end(span, err) }()
	return s.chats.GetChat(ctx, chatID)
}

// ListChats returns the user's active chats, most recent activity first.
func (s *ChatService) ListChats(ctx context.Context, userID string) (chats []models.ChatSummary, err error) {
	ctx, span := tracer().Start(ctx, "ChatService.ListChats", trace.WithAttributes(attribute.String("user.id", userID)))
	defer func() { end(span, err) }()
	return s.chats.ListChatsForUser(ctx, userID)
}

func (s *ChatService) IsParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	return s.chats.IsParticipant(ctx, chatID, userID)
}

// AppendMessage stores a message and notifies the chat's live audience. A
// retry with the same ClientMessageID returns the stored message without a
// second notification.
func (s *ChatService) AppendMessage(ctx context.Context, chatID string, msg models.NewMessage) (stored models.Message, err error) {
	ctx, span := tracer().Start(ctx, "ChatService.AppendMessage",
		trace.WithAttributes(attribute.String("chat.id", chatID), attribute.String("user.id", msg.SenderID)))
	defer func() { end(span, err) }()

	if err := validateNewMessage(&msg); err != nil {
		return models.Message{}, err
	}

	stored, created, err := s.chats.AppendMessage(ctx, chatID, msg)
	if err != nil {
		return models.Message{}, err
	}
	span.SetAttributes(attribute.String("message.id", stored.ID), attribute.Bool("message.created", created))
	if !created {
		return stored, nil
	}

	observability.IncMessagesAppended(string(stored.Kind))
	s.notify(chatID, fanout.MessageCreated, stored)
	s.audit.Emit(ctx, auditRecord(ctx, "message.created", msg.SenderID, chatID, stored.ID, "message appended"))
	return stored, nil
}

func validateNewMessage(msg *models.NewMessage) error {
	if msg.Kind == "" {
		msg.Kind = models.KindText
	}
	if !msg.Kind.Valid() {
		return apperrors.Validation("unknown message kind " + string(msg.Kind))
	}
	if msg.Kind == models.KindText && strings.TrimSpace(msg.Content) == "" {
		return apperrors.Validation("content is required")
	}
	if (msg.Kind == models.KindImage || msg.Kind == models.KindFile) && strings.TrimSpace(msg.FileURL) == "" {
		return apperrors.Validation("file url is required for " + string(msg.Kind) + " messages")
	}
	if len(msg.Content) > maxContentLength {
		return apperrors.Validation("content is too long")
	}
	return nil
}

// EditMessage replaces the content of the editor's own message.
func (s *ChatService) EditMessage(ctx context.Context, chatID, messageID, editorID, content string) (msg models.Message, err error) {
	ctx, span := tracer().Start(ctx, "ChatService.EditMessage",
		trace.WithAttributes(attribute.String("chat.id", chatID), attribute.String("message.id", messageID)))
	defer func() { end(span, err) }()

	if strings.TrimSpace(content) == "" {
		return models.Message{}, apperrors.Validation("content is required")
	}
	if len(content) > maxContentLength {
		return models.Message{}, apperrors.Validation("content is too long")
	}

	msg, err = s.chats.EditMessage(ctx, chatID, messageID, editorID, content)
	if err != nil {
		return models.Message{}, err
	}
	s.notify(chatID, fanout.MessageEdited, msg)
	s.audit.Emit(ctx, auditRecord(ctx, "message.edited", editorID, chatID, messageID, "message edited"))
	return msg, nil
}

// DeleteMessage soft-deletes the requester's own message. Repeating it is a
// no-op.
func (s *ChatService) DeleteMessage(ctx context.Context, chatID, messageID, requesterID string) (msg models.Message, err error) {
	ctx, span := tracer().Start(ctx, "ChatService.DeleteMessage",
		trace.WithAttributes(attribute.String("chat.id", chatID), attribute.String("message.id", messageID)))
	defer func() { end(span, err) }()

	msg, deleted, err := s.chats.DeleteMessage(ctx, chatID, messageID, requesterID)
	if err != nil {
		return models.Message{}, err
	}
	if deleted {
		s.notify(chatID, fanout.MessageDeleted, map[string]any{"message_id": msg.ID, "deleted_at": msg.DeletedAt})
		s.audit.Emit(ctx, auditRecord(ctx, "message.deleted", requesterID, chatID, messageID, "message deleted"))
	}
	return msg, nil
}

// AddParticipant adds a user to a group chat's roster.
func (s *ChatService) AddParticipant(ctx context.Context, actorID, chatID, userID string, role models.Role) (p models.Participant, err error) {
	ctx, span := tracer().Start(ctx, "ChatService.AddParticipant",
		trace.WithAttributes(attribute.String("chat.id", chatID), attribute.String("target.id", userID)))
	defer func() { end(span, err) }()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return models.Participant{}, apperrors.Validation("user id is required")
	}
	if role == "" {
		role = models.RoleMember
	}
	if !role.Valid() {
		return models.Participant{}, apperrors.Validation("unknown role " + string(role))
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return models.Participant{}, err
	}

	p, err = s.chats.AddParticipant(ctx, chatID, userID, role)
	if err != nil {
		return models.Participant{}, err
	}
	s.notify(chatID, fanout.ParticipantAdded, fanout.ParticipantPayload{UserID: userID, Role: string(p.Role), Active: true})
	s.audit.Emit(ctx, auditRecord(ctx, "participant.added", actorID, chatID, userID, "participant added as "+string(p.Role)))
	return p, nil
}

// RemoveParticipant removes a user from the roster and reports whether the
// chat is still active afterwards.
func (s *ChatService) RemoveParticipant(ctx context.Context, actorID, chatID, userID string) (active bool, err error) {
	ctx, span := tracer().Start(ctx, "ChatService.RemoveParticipant",
		trace.WithAttributes(attribute.String("chat.id", chatID), attribute.String("target.id", userID)))
	defer func() { end(span, err) }()

	active, err = s.chats.RemoveParticipant(ctx, chatID, userID)
	if err != nil {
		return false, err
	}
	span.SetAttributes(attribute.Bool("chat.active", active))
	s.notify(chatID, fanout.ParticipantRemoved, fanout.ParticipantPayload{UserID: userID, Active: active})
	s.audit.Emit(ctx, auditRecord(ctx, "participant.removed", actorID, chatID, userID, "participant removed"))
	return active, nil
}

func (s *ChatService) SetMuted(ctx context.Context, chatID, userID string, muted bool) (err error) {
	ctx, span := tracer().Start(ctx, "ChatService.SetMuted", trace.WithAttributes(attribute.String("chat.id", chatID)))
	defer func() { end(span, err) }()
	return s.chats.SetMuted(ctx, chatID, userID, muted)
}

// MarkRead records reads for userID and returns the unread count computed
// from the store after the update has committed.
func (s *ChatService) MarkRead(ctx context.Context, chatID, userID string, messageIDs []string) (unread int, err error) {
	ctx, span := tracer().Start(ctx, "ChatService.MarkRead",
		trace.WithAttributes(attribute.String("chat.id", chatID), attribute.String("user.id", userID)))
	defer func() { end(span, err) }()

	marked, err := s.chats.MarkRead(ctx, chatID, userID, messageIDs)
	if err != nil {
		return 0, err
	}
	if len(marked) > 0 {
		s.notify(chatID, fanout.ChatRead, fanout.ReadPayload{UserID: userID, MessageIDs: marked, ReadAt: time.Now().UTC()})
	}

	unread, err = s.chats.UnreadCount(ctx, chatID, userID)
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int("read.marked", len(marked)), attribute.Int("read.unread", unread))
	return unread, nil
}

func (s *ChatService) GetUnreadCount(ctx context.Context, chatID, userID string) (count int, err error) {
	ctx, span := tracer().Start(ctx, "ChatService.GetUnreadCount", trace.WithAttributes(attribute.String("chat.id", chatID)))
	defer func() { end(span, err) }()
	return s.chats.UnreadCount(ctx, chatID, userID)
}

func (s *ChatService) requireUser(ctx context.Context, userID string) error {
	if s.users == nil {
		return nil
	}
	ok, err := s.users.Exists(ctx, userID)
	if err != nil {
		return apperrors.Wrap(err, "lookup user")
	}
	if !ok {
		return apperrors.NotFound("user")
	}
	return nil
}

// notify hands the event to the notifier. A rejected event is only logged;
// the mutation has already committed.
func (s *ChatService) notify(chatID string, kind fanout.EventKind, payload any) {
	if !s.notifier.Publish(fanout.NewEvent(chatID, kind, payload)) {
		s.logger.Debug("fanout event not queued", "chat_id", chatID, "kind", kind)
	}
}
