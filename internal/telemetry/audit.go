package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"realtime-chat/internal/observability"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

// AuditEmitter publishes account lifecycle events (signup, login, logout, profile changes).
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	log         *zap.Logger
	now         func() time.Time
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	UserID        *string      `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string, log *zap.Logger) *AuditEmitter {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		log:         log,
		now:         time.Now,
	}
}

// Emit publishes one audit record. The request id is taken from ctx. Failures are logged, never returned.
func (e *AuditEmitter) Emit(ctx context.Context, level, text string, userID *string) {
	if e == nil || e.publisher == nil {
		return
	}

	requestID := observability.RequestIDFromContext(ctx)
	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    e.now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		UserID:        userID,
		Payload: AuditPayload{
			Level: level,
			Text:  text,
		},
	}
	e.log.Debug("audit emit", zap.String("level", level), zap.String("request_id", requestID), zap.String("text", text))

	if err := e.publisher.Publish(ctx, e.routingKey, envelope, observability.BuildHeaders(requestID, "")); err != nil {
		e.log.Warn("audit publish failed", zap.Error(err))
	}
}
