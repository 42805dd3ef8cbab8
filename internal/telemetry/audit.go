package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"chat-app/internal/observability"
)

// AuditEmitter publishes structured audit events for security-relevant
// operations (signup, login, message send).
type AuditEmitter struct {
	publisher   observability.Publisher
	routingKey  string
	service     string
	environment string
	logger      *zap.SugaredLogger
}

// AuditEnvelope is the published audit record.
type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	UserID        *int         `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

// AuditPayload is the free-form part of an audit record.
type AuditPayload struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

// NewAuditEmitter constructs an emitter bound to one routing key.
func NewAuditEmitter(publisher observability.Publisher, logger *zap.SugaredLogger, routingKey, service, environment string) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		logger:      logger,
	}
}

// Emit publishes one audit record. Failures are logged and swallowed.
func (e *AuditEmitter) Emit(ctx context.Context, level, text, requestID string, userID *int) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		UserID:        userID,
		Payload: AuditPayload{
			Level: level,
			Text:  text,
		},
	}

	headers := observability.BuildHeaders(requestID, "")
	if err := e.publisher.Publish(ctx, e.routingKey, envelope, headers); err != nil {
		e.logger.Warnw("audit publish failed", "error", err)
	}
}
