package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"social-chat/internal/models"
)

// DirectMessageService is the set of 1:1 message operations the HTTP layer calls.
type DirectMessageService interface {
	Send(ctx context.Context, fromUserID, toUserID, text string) (models.DirectMessage, error)
	GetConversation(ctx context.Context, userA, userB string) ([]models.DirectMessage, error)
	MarkAsRead(ctx context.Context, userID, senderID string) (int64, error)
	GetUnreadCount(ctx context.Context, userID string) (int, error)
	SoftDelete(ctx context.Context, messageID, requesterID string) (models.DirectMessage, error)
	RecentConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error)
}

// DirectMessageHandler manages direct message endpoints.
type DirectMessageHandler struct {
	messages DirectMessageService
}

func NewDirectMessageHandler(messages DirectMessageService) *DirectMessageHandler {
	return &DirectMessageHandler{messages: messages}
}

func (h *DirectMessageHandler) Register(r gin.IRoutes) {
	r.POST("/direct-messages", h.Send)
	r.GET("/direct-messages/recent", h.Recent)
	r.GET("/direct-messages/unread", h.UnreadCount)
	r.GET("/direct-messages/with/:user_id", h.Conversation)
	r.POST("/direct-messages/with/:user_id/read", h.MarkAsRead)
	r.DELETE("/direct-messages/:message_id", h.Delete)
}

func (h *DirectMessageHandler) Send(c *gin.Context) {
	var req struct {
		ToUserID string `json:"to_user_id" binding:"required"`
		Text     string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), actorID(c), req.ToUserID, req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// Conversation returns the thread between the actor and :user_id.
func (h *DirectMessageHandler) Conversation(c *gin.Context) {
	msgs, err := h.messages.GetConversation(c.Request.Context(), actorID(c), c.Param("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// MarkAsRead marks everything :user_id sent to the actor as read.
func (h *DirectMessageHandler) MarkAsRead(c *gin.Context) {
	modified, err := h.messages.MarkAsRead(c.Request.Context(), actorID(c), c.Param("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"modified_count": modified})
}

func (h *DirectMessageHandler) UnreadCount(c *gin.Context) {
	count, err := h.messages.GetUnreadCount(c.Request.Context(), actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

func (h *DirectMessageHandler) Delete(c *gin.Context) {
	msg, err := h.messages.SoftDelete(c.Request.Context(), c.Param("message_id"), actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (h *DirectMessageHandler) Recent(c *gin.Context) {
	summaries, err := h.messages.RecentConversations(c.Request.Context(), actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": summaries})
}
