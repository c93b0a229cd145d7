package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"social-chat/internal/models"
)

// ChatService is the set of chat operations the HTTP layer calls.
type ChatService interface {
	CreateDirectChat(ctx context.Context, userA, userB string) (models.Chat, error)
	CreateGroupChat(ctx context.Context, createdBy string, info models.GroupInfo, participants []models.NewParticipant) (models.Chat, error)
	GetChat(ctx context.Context, chatID string) (models.Chat, error)
	ListChats(ctx context.Context, userID string) ([]models.ChatSummary, error)
	IsParticipant(ctx context.Context, chatID, userID string) (bool, error)
	AppendMessage(ctx context.Context, chatID string, msg models.NewMessage) (models.Message, error)
	EditMessage(ctx context.Context, chatID, messageID, editorID, content string) (models.Message, error)
	DeleteMessage(ctx context.Context, chatID, messageID, requesterID string) (models.Message, error)
	AddParticipant(ctx context.Context, actorID, chatID, userID string, role models.Role) (models.Participant, error)
	RemoveParticipant(ctx context.Context, actorID, chatID, userID string) (bool, error)
	SetMuted(ctx context.Context, chatID, userID string, muted bool) error
	MarkRead(ctx context.Context, chatID, userID string, messageIDs []string) (int, error)
	GetUnreadCount(ctx context.Context, chatID, userID string) (int, error)
}

// ChatHandler manages chat endpoints.
type ChatHandler struct {
	chats ChatService
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(chats ChatService) *ChatHandler {
	return &ChatHandler{chats: chats}
}

// Register mounts the chat routes on an authenticated group.
func (h *ChatHandler) Register(r gin.IRoutes) {
	r.POST("/chats/direct", h.StartDirectChat)
	r.POST("/chats/groups", h.CreateGroupChat)
	r.GET("/chats", h.ListChats)
	r.GET("/chats/:chat_id", h.GetChat)
	r.POST("/chats/:chat_id/messages", h.PostMessage)
	r.PATCH("/chats/:chat_id/messages/:message_id", h.EditMessage)
	r.DELETE("/chats/:chat_id/messages/:message_id", h.DeleteMessage)
	r.POST("/chats/:chat_id/participants", h.AddParticipant)
	r.DELETE("/chats/:chat_id/participants/:user_id", h.RemoveParticipant)
	r.PUT("/chats/:chat_id/mute", h.SetMuted)
	r.POST("/chats/:chat_id/read", h.MarkRead)
	r.GET("/chats/:chat_id/unread", h.GetUnreadCount)
}

// StartDirectChat creates or returns the direct chat with another user.
func (h *ChatHandler) StartDirectChat(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chat, err := h.chats.CreateDirectChat(c.Request.Context(), actorID(c), req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat": chat})
}

func (h *ChatHandler) CreateGroupChat(c *gin.Context) {
	var req struct {
		Name              string                  `json:"name" binding:"required"`
		Description       string                  `json:"description"`
		Avatar            string                  `json:"avatar"`
		RelatedActivityID string                  `json:"related_activity_id"`
		Participants      []models.NewParticipant `json:"participants"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	info := models.GroupInfo{
		Name:              req.Name,
		Description:       req.Description,
		Avatar:            req.Avatar,
		RelatedActivityID: req.RelatedActivityID,
	}
	chat, err := h.chats.CreateGroupChat(c.Request.Context(), actorID(c), info, req.Participants)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"chat": chat})
}

// ListChats returns the chats visible to the authenticated user.
func (h *ChatHandler) ListChats(c *gin.Context) {
	chats, err := h.chats.ListChats(c.Request.Context(), actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// GetChat returns the full aggregate to a participant.
func (h *ChatHandler) GetChat(c *gin.Context) {
	chat, err := h.chats.GetChat(c.Request.Context(), c.Param("chat_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !chat.IsParticipant(actorID(c)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for chat"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat": chat})
}

// PostMessage appends a message. The Idempotency-Key header is used when
// the body carries no client_message_id.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	var req struct {
		Content         string             `json:"content"`
		Kind            models.MessageKind `json:"kind"`
		FileURL         string             `json:"file_url"`
		ClientMessageID string             `json:"client_message_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ClientMessageID == "" {
		req.ClientMessageID = c.GetHeader("Idempotency-Key")
	}

	msg, err := h.chats.AppendMessage(c.Request.Context(), c.Param("chat_id"), models.NewMessage{
		SenderID:        actorID(c),
		Content:         req.Content,
		Kind:            req.Kind,
		FileURL:         req.FileURL,
		ClientMessageID: req.ClientMessageID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

func (h *ChatHandler) EditMessage(c *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.chats.EditMessage(c.Request.Context(), c.Param("chat_id"), c.Param("message_id"), actorID(c), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	msg, err := h.chats.DeleteMessage(c.Request.Context(), c.Param("chat_id"), c.Param("message_id"), actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// AddParticipant lets a participant add another user.
func (h *ChatHandler) AddParticipant(c *gin.Context) {
	var req struct {
		UserID string      `json:"user_id" binding:"required"`
		Role   models.Role `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	chatID := c.Param("chat_id")
	if !h.requireMember(c, chatID) {
		return
	}

	p, err := h.chats.AddParticipant(c.Request.Context(), actorID(c), chatID, req.UserID, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"participant": p})
}

// RemoveParticipant lets a participant remove a user, including themselves.
func (h *ChatHandler) RemoveParticipant(c *gin.Context) {
	chatID := c.Param("chat_id")
	if !h.requireMember(c, chatID) {
		return
	}

	active, err := h.chats.RemoveParticipant(c.Request.Context(), actorID(c), chatID, c.Param("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat_id": chatID, "is_active": active})
}

func (h *ChatHandler) SetMuted(c *gin.Context) {
	var req struct {
		Muted *bool `json:"muted" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.chats.SetMuted(c.Request.Context(), c.Param("chat_id"), actorID(c), *req.Muted); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"muted": *req.Muted})
}

// MarkRead marks the given messages, or all of them when the body is empty.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	var req struct {
		MessageIDs []string `json:"message_ids"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	chatID := c.Param("chat_id")
	unread, err := h.chats.MarkRead(c.Request.Context(), chatID, actorID(c), req.MessageIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat_id": chatID, "unread_count": unread})
}

func (h *ChatHandler) GetUnreadCount(c *gin.Context) {
	chatID := c.Param("chat_id")
	unread, err := h.chats.GetUnreadCount(c.Request.Context(), chatID, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat_id": chatID, "unread_count": unread})
}

func (h *ChatHandler) requireMember(c *gin.Context, chatID string) bool {
	member, err := h.chats.IsParticipant(c.Request.Context(), chatID, actorID(c))
	if err != nil {
		respondError(c, err)
		return false
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for chat"})
		return false
	}
	return true
}
