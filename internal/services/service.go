package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"social-chat/internal/apperrors"
	"social-chat/internal/fanout"
	"social-chat/internal/observability"
	"social-chat/internal/telemetry"
)

// Notifier accepts fan-out events without blocking. *fanout.Gateway
// satisfies it.
type Notifier interface {
	Publish(event fanout.Event) bool
}

// Auditor records mutations. *telemetry.AuditEmitter satisfies it.
type Auditor interface {
	Emit(ctx context.Context, record telemetry.AuditRecord)
}

const (
	maxContentLength = 4000
	tracerName       = "social-chat/services"
)

type discardNotifier struct{}

func (discardNotifier) Publish(fanout.Event) bool { return false }

type discardAuditor struct{}

func (discardAuditor) Emit(context.Context, telemetry.AuditRecord) {}

func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// end closes a span, marking it failed for anything but client mistakes.
func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		if apperrors.Is(err, apperrors.KindTransient) {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}

func auditRecord(ctx context.Context, action, actorID, chatID, targetID, text string) telemetry.AuditRecord {
	return telemetry.AuditRecord{
		Action:    action,
		ActorID:   actorID,
		ChatID:    chatID,
		TargetID:  targetID,
		Text:      text,
		RequestID: observability.RequestIDFromContext(ctx),
		TraceID:   observability.TraceIDFromContext(ctx),
	}
}
