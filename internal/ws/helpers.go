package ws

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"realtime-chat/internal/observability"
)

// ConnInfo describes one authenticated socket for logs and lifecycle events.
type ConnInfo struct {
	ConnID      string
	UserID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

func (i ConnInfo) logFields() []zap.Field {
	return []zap.Field{zap.String("conn_id", i.ConnID), zap.String("user_id", i.UserID)}
}

func newConnID() string {
	return uuid.NewString()
}

// publishLifecycle reports a connect, disconnect or error for one connection.
func publishLifecycle(ctx context.Context, info ConnInfo, event, reason string) {
	observability.IncWSEvent(event)
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
	_ = observability.PublishEvent(ctx, observability.RoutingKeyWSEvents,
		observability.NewEnvelope("ws_events", event, payload),
		observability.BuildHeaders(info.RequestID, info.TraceID))
}
