package services

import (
	"context"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"social-chat/internal/apperrors"
	"social-chat/internal/models"
	"social-chat/internal/observability"
	"social-chat/internal/repositories"
)

const defaultRecentWindow = 100

// DirectMessageService runs operations on flat 1:1 messages.
type DirectMessageService struct {
	messages     repositories.DirectMessageRepository
	users        repositories.UserDirectory
	audit        Auditor
	recentWindow int
}

// NewDirectMessageService wires the service. recentWindow bounds how many
// recent messages RecentConversations scans.
func NewDirectMessageService(messages repositories.DirectMessageRepository, users repositories.UserDirectory, audit Auditor, recentWindow int) *DirectMessageService {
	if audit == nil {
		audit = discardAuditor{}
	}
	if recentWindow <= 0 {
		recentWindow = defaultRecentWindow
	}
	return &DirectMessageService{messages: messages, users: users, audit: audit, recentWindow: recentWindow}
}

// Send stores an unread message from one user to another.
func (s *DirectMessageService) Send(ctx context.Context, fromUserID, toUserID, text string) (msg models.DirectMessage, err error) {
	ctx, span := tracer().Start(ctx, "DirectMessageService.Send",
		trace.WithAttributes(attribute.String("user.id", fromUserID), attribute.String("peer.id", toUserID)))
	defer func() { end(span, err) }()

	text = strings.TrimSpace(text)
	if text == "" {
		return models.DirectMessage{}, apperrors.Validation("text is required")
	}
	if len(text) > maxContentLength {
		return models.DirectMessage{}, apperrors.Validation("text is too long")
	}
	if fromUserID == "" || toUserID == "" {
		return models.DirectMessage{}, apperrors.Validation("sender and recipient are required")
	}
	if fromUserID == toUserID {
		return models.DirectMessage{}, apperrors.Validation("cannot message yourself")
	}

	exists, err := s.users.Exists(ctx, toUserID)
	if err != nil {
		return models.DirectMessage{}, apperrors.Wrap(err, "lookup user")
	}
	if !exists {
		return models.DirectMessage{}, apperrors.NotFound("user")
	}

	msg, err = s.messages.Create(ctx, fromUserID, toUserID, text)
	if err != nil {
		return models.DirectMessage{}, err
	}
	observability.IncDirectMessagesSent()
	s.audit.Emit(ctx, auditRecord(ctx, "direct_message.sent", fromUserID, "", msg.ID, "direct message sent"))
	return msg, nil
}

// GetConversation returns the pair's non-deleted messages, oldest first.
func (s *DirectMessageService) GetConversation(ctx context.Context, userA, userB string) (msgs []models.DirectMessage, err error) {
	ctx, span := tracer().Start(ctx, "DirectMessageService.GetConversation")
	defer func() { end(span, err) }()
	return s.messages.Conversation(ctx, userA, userB)
}

// MarkAsRead marks everything senderID sent to userID as read and returns
// the number of records that changed.
func (s *DirectMessageService) MarkAsRead(ctx context.Context, userID, senderID string) (modified int64, err error) {
	ctx, span := tracer().Start(ctx, "DirectMessageService.MarkAsRead")
	defer func() { end(span, err) }()

	modified, err = s.messages.MarkAsRead(ctx, userID, senderID)
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int64("read.modified", modified))
	return modified, nil
}

func (s *DirectMessageService) GetUnreadCount(ctx context.Context, userID string) (count int, err error) {
	ctx, span := tracer().Start(ctx, "DirectMessageService.GetUnreadCount")
	defer func() { end(span, err) }()
	return s.messages.UnreadCount(ctx, userID)
}

// SoftDelete flags the requester's own message as deleted.
func (s *DirectMessageService) SoftDelete(ctx context.Context, messageID, requesterID string) (msg models.DirectMessage, err error) {
	ctx, span := tracer().Start(ctx, "DirectMessageService.SoftDelete", trace.WithAttributes(attribute.String("message.id", messageID)))
	defer func() { end(span, err) }()

	msg, err = s.messages.SoftDelete(ctx, messageID, requesterID)
	if err != nil {
		return models.DirectMessage{}, err
	}
	s.audit.Emit(ctx, auditRecord(ctx, "direct_message.deleted", requesterID, "", messageID, "direct message deleted"))
	return msg, nil
}

// RecentConversations groups the user's most recent messages by the other
// party, keeping the newest message per counterpart.
func (s *DirectMessageService) RecentConversations(ctx context.Context, userID string) (summaries []models.ConversationSummary, err error) {
	ctx, span := tracer().Start(ctx, "DirectMessageService.RecentConversations",
		trace.WithAttributes(attribute.String("user.id", userID), attribute.Int("window", s.recentWindow)))
	defer func() { end(span, err) }()

	recent, err := s.messages.RecentForUser(ctx, userID, s.recentWindow)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	summaries = []models.ConversationSummary{}
	for _, msg := range recent {
		counterpart := msg.Counterpart(userID)
		if _, ok := seen[counterpart]; ok {
			continue
		}
		seen[counterpart] = struct{}{}

		unread, err := s.messages.UnreadCountFrom(ctx, userID, counterpart)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, models.ConversationSummary{
			CounterpartID: counterpart,
			LastMessage:   msg,
			UnreadCount:   unread,
		})
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].LastMessage.CreatedAt.After(summaries[j].LastMessage.CreatedAt)
	})
	return summaries, nil
}
