package fanout

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"social-chat/internal/observability"
)

// Broker moves an encoded event to whoever holds the topic's connections.
type Broker interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Deliverer is the local connection registry, normally *ws.Hub. Deliver and
// Evict must not wait on a socket; the worker and the relay call them inline.
type Deliverer interface {
	Deliver(topic string, payload []byte) int
	Evict(topic, userID string) int
}

const publishTimeout = 5 * time.Second

// Gateway decouples notification from the request path. Publish never
// blocks; a single worker hands events to the broker in enqueue order.
type Gateway struct {
	broker Broker
	queue  chan Event
	logger *slog.Logger

	mu      sync.RWMutex
	started bool
	closed  bool
	done    chan struct{}
}

// NewGateway builds a gateway with a bounded queue of size buffer.
func NewGateway(broker Broker, buffer int, logger *slog.Logger) *Gateway {
	if buffer <= 0 {
		buffer = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		broker: broker,
		queue:  make(chan Event, buffer),
		logger: logger.With("component", "fanout"),
		done:   make(chan struct{}),
	}
}

// Start launches the delivery worker.
func (g *Gateway) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started || g.closed {
		return
	}
	g.started = true
	go g.run()
}

func (g *Gateway) run() {
	defer close(g.done)
	for event := range g.queue {
		g.deliver(event)
	}
}

func (g *Gateway) deliver(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := g.broker.Publish(ctx, event); err != nil {
		observability.IncFanout(string(event.Kind), "failed")
		g.logger.Warn("fanout publish failed", "chat_id", event.ChatID, "kind", event.Kind, "err", err)
		return
	}
	observability.IncFanout(string(event.Kind), "published")
}

// Publish enqueues the event and reports whether it was accepted. A full
// queue or a closed gateway drops the event.
func (g *Gateway) Publish(event Event) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		observability.IncFanout(string(event.Kind), "dropped")
		return false
	}

	select {
	case g.queue <- event:
		return true
	default:
		observability.IncFanout(string(event.Kind), "dropped")
		g.logger.Warn("fanout queue full, dropping event", "chat_id", event.ChatID, "kind", event.Kind)
		return false
	}
}

// Close stops accepting events and waits for queued ones to drain or for
// ctx to end. The broker is closed afterwards.
func (g *Gateway) Close(ctx context.Context) error {
	g.mu.Lock()
	if !g.closed {
		g.closed = true
		close(g.queue)
	}
	started := g.started
	g.mu.Unlock()

	if !started {
		return g.broker.Close()
	}

	select {
	case <-g.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return g.broker.Close()
}
