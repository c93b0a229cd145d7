package ws

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"social-chat/internal/observability"
)

const (
	// writeWait bounds every frame write to a single socket.
	writeWait = 10 * time.Second

	// sendBuffer is how many payloads a client may fall behind before it is
	// dropped as a slow consumer.
	sendBuffer = 64
)

var errSlowConsumer = errors.New("send buffer full")

// Conn is the part of *websocket.Conn the hub writes through.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// client owns one subscribed socket. Deliveries are queued on send and
// written by the client's own writer goroutine.
type client struct {
	conn Conn
	info ConnInfo
	send chan []byte
	done chan struct{}
	once sync.Once
	mu   sync.Mutex
}

func newClient(conn Conn, info ConnInfo) *client {
	return &client{
		conn: conn,
		info: info,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// enqueue never blocks. It reports false once the client is stopped or its
// buffer is full.
func (c *client) enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *client) stop() {
	c.once.Do(func() { close(c.done) })
}

// writeFrame is the only path to the socket, so pings, deliveries and close
// frames never interleave.
func (c *client) writeFrame(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// Hub maintains live connections grouped by topic. A topic is a chat id.
type Hub struct {
	rooms map[string]map[Conn]*client
	mu    sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[Conn]*client)}
}

// Add subscribes a connection to a topic and starts its writer.
func (h *Hub) Add(topic string, conn Conn, info ConnInfo) {
	c := newClient(conn, info)

	h.mu.Lock()
	if _, ok := h.rooms[topic]; !ok {
		h.rooms[topic] = make(map[Conn]*client)
	}
	prev := h.rooms[topic][conn]
	h.rooms[topic][conn] = c
	h.mu.Unlock()

	if prev != nil {
		prev.stop()
	}
	go h.writeLoop(topic, c)
}

// Remove unsubscribes a connection and reports whether it was subscribed.
func (h *Hub) Remove(topic string, conn Conn) bool {
	return h.detach(topic, conn, nil)
}

// detach removes conn from topic. With want set, only that exact client is
// removed, so a stale writer cannot unsubscribe a newer registration.
func (h *Hub) detach(topic string, conn Conn, want *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.rooms[topic]
	if !ok {
		return false
	}
	c, ok := conns[conn]
	if !ok || (want != nil && c != want) {
		return false
	}
	c.stop()
	delete(conns, conn)
	if len(conns) == 0 {
		delete(h.rooms, topic)
	}
	return true
}

// Count returns the number of connections on a topic.
func (h *Hub) Count(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[topic])
}

func (h *Hub) snapshot(topic string) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := make([]*client, 0, len(h.rooms[topic]))
	for _, c := range h.rooms[topic] {
		clients = append(clients, c)
	}
	return clients
}

// Deliver queues payload for every connection on the topic and returns how
// many accepted it. It does not wait on any socket; a client whose buffer is
// full is closed and dropped.
func (h *Hub) Deliver(topic string, payload []byte) int {
	delivered := 0
	for _, c := range h.snapshot(topic) {
		if !c.enqueue(payload) {
			h.drop(topic, c, errSlowConsumer)
			continue
		}
		delivered++
	}
	return delivered
}

func (h *Hub) writeLoop(topic string, c *client) {
	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			if err := c.writeFrame(websocket.TextMessage, payload); err != nil {
				h.drop(topic, c, err)
				return
			}
		}
	}
}

// drop closes a failed client. Closing the socket also unblocks a write the
// writer may still be stuck in.
func (h *Hub) drop(topic string, c *client, err error) {
	c.stop()
	_ = c.conn.Close()
	if h.detach(topic, c.conn, c) {
		slog.Warn("websocket write error", "chat_id", topic, "conn_id", c.info.ConnID, "err", err)
		h.publishWSError(topic, c.info, err)
	}
}

func (h *Hub) ping(topic string, conn Conn) error {
	h.mu.RLock()
	c, ok := h.rooms[topic][conn]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	return c.writeFrame(websocket.PingMessage, nil)
}

// Evict unsubscribes every connection userID holds on the topic and closes
// it in the background. The reader goroutine of each connection performs
// the final cleanup.
func (h *Hub) Evict(topic, userID string) int {
	evicted := 0
	for _, c := range h.snapshot(topic) {
		if c.info.UserID != userID {
			continue
		}
		if h.detach(topic, c.conn, c) {
			evicted++
		}
		go func(c *client) {
			_ = c.writeFrame(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "removed from chat"))
			_ = c.conn.Close()
		}(c)
	}
	return evicted
}

func (h *Hub) publishWSError(topic string, info ConnInfo, err error) {
	observability.IncWSEvent("ws_error")
	_ = observability.PublishEvent(context.Background(), wsRoutingKey, wsEnvelope("ws_error", topic, info, err.Error()),
		observability.BuildHeaders(info.RequestID, info.TraceID))
}

const wsRoutingKey = "ws_events.chats"

func wsEnvelope(event, topic string, info ConnInfo, reason string) observability.EventEnvelope {
	var duration int64
	if !info.ConnectedAt.IsZero() {
		duration = time.Since(info.ConnectedAt).Milliseconds()
	}
	return observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]any{
			"ws": map[string]any{
				"chat_id":     topic,
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": duration,
				"reason":      reason,
			},
			"identity": info.identity(),
		},
	}
}
