package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"social-chat/internal/observability"
)

// MembershipChecker decides who may subscribe to a chat topic.
type MembershipChecker interface {
	IsParticipant(ctx context.Context, chatID, userID string) (bool, error)
}

// ChatWebSocketHandler subscribes authenticated participants to a chat topic.
// The socket is receive-only; all mutations go through the HTTP API.
type ChatWebSocketHandler struct {
	hub     *Hub
	members MembershipChecker
}

// NewChatWebSocketHandler constructs a ChatWebSocketHandler.
func NewChatWebSocketHandler(hub *Hub, members MembershipChecker) *ChatWebSocketHandler {
	return &ChatWebSocketHandler{hub: hub, members: members}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Handle upgrades the connection and registers it on the chat topic. The
// actor id must already be on the context (WS auth middleware).
func (h *ChatWebSocketHandler) Handle(c *gin.Context) {
	chatID := c.Param("chat_id")
	userID := c.GetString("userID")
	if chatID == "" || userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	ctx, span := otel.Tracer("social-chat/ws").Start(c.Request.Context(), "ws.handshake")
	span.SetAttributes(attribute.String("chat.id", chatID), attribute.String("user.id", userID))
	defer span.End()

	member, err := h.members.IsParticipant(ctx, chatID, userID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "membership lookup failed"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for chat"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	h.hub.Add(chatID, conn, info)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(ctx, wsRoutingKey, wsEnvelope("ws_connect", chatID, info, ""), headers)

	done := make(chan struct{})
	go h.keepAlive(chatID, conn, done)
	go h.readLoop(chatID, conn, info, headers, done)
}

// readLoop drains client frames until the socket closes, then unregisters.
func (h *ChatWebSocketHandler) readLoop(chatID string, conn *websocket.Conn, info ConnInfo, headers map[string]string, done chan struct{}) {
	var closeReason string
	defer func() {
		close(done)
		h.hub.Remove(chatID, conn)
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		_ = observability.PublishEvent(context.Background(), wsRoutingKey, wsEnvelope("ws_disconnect", chatID, info, closeReason), headers)
		_ = conn.Close()
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
				_ = observability.PublishEvent(context.Background(), wsRoutingKey, wsEnvelope("ws_error", chatID, info, closeReason), headers)
			}
			return
		}
	}
}

// keepAlive pings through the hub's client so pings never race deliveries.
func (h *ChatWebSocketHandler) keepAlive(chatID string, conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := h.hub.ping(chatID, conn); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}
