package telemetry

import (
	"context"
	"log/slog"
	"time"
)

// Message header names carried next to every published envelope.
const (
	RequestIDHeader = "x-request-id"
	TraceIDHeader   = "trace_id"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
	Close() error
}

// AuditEmitter records chat mutations on the audit exchange.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	TraceID       string       `json:"trace_id,omitempty"`
	ActorID       string       `json:"actor_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level    string `json:"level"`
	Action   string `json:"action"`
	ChatID   string `json:"chat_id,omitempty"`
	TargetID string `json:"target_id,omitempty"`
	Text     string `json:"text"`
}

// AuditRecord is what callers fill in; the emitter adds the envelope.
type AuditRecord struct {
	Level     string
	Action    string
	ChatID    string
	TargetID  string
	Text      string
	RequestID string
	TraceID   string
	ActorID   string
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
	}
}

// Emit never fails the caller; publish errors are only logged.
func (e *AuditEmitter) Emit(ctx context.Context, record AuditRecord) {
	if e == nil || e.publisher == nil {
		return
	}
	if record.Level == "" {
		record.Level = "INFO"
	}

	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     record.RequestID,
		TraceID:       record.TraceID,
		ActorID:       record.ActorID,
		Payload: AuditPayload{
			Level:    record.Level,
			Action:   record.Action,
			ChatID:   record.ChatID,
			TargetID: record.TargetID,
			Text:     record.Text,
		},
	}

	headers := map[string]string{}
	if record.RequestID != "" {
		headers[RequestIDHeader] = record.RequestID
	}
	if record.TraceID != "" {
		headers[TraceIDHeader] = record.TraceID
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope, headers); err != nil {
		slog.Warn("audit publish failed", "action", record.Action, "request_id", record.RequestID, "err", err)
	}
}
