package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"realtime-chat/internal/observability"
)

// TokenValidator resolves a session token to a user id.
type TokenValidator interface {
	UserIDFromToken(token string) (string, error)
}

// WebSocketHandler authenticates the handshake and attaches the connection to the hub.
type WebSocketHandler struct {
	hub         *Hub
	router      *Router
	tokens      TokenValidator
	typingQuiet time.Duration
	log         *zap.Logger
}

// NewWebSocketHandler constructs a WebSocketHandler.
func NewWebSocketHandler(hub *Hub, router *Router, tokens TokenValidator, typingQuiet time.Duration, log *zap.Logger) *WebSocketHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WebSocketHandler{hub: hub, router: router, tokens: tokens, typingQuiet: typingQuiet, log: log}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and registers the client.
func (h *WebSocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("realtime-chat/ws").Start(c.Request.Context(), "ws.handshake", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, err := h.tokens.UserIDFromToken(tokenFromRequest(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "unauthorized - invalid token"})
		return
	}
	span.SetAttributes(attribute.String("user.id", userID))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.Error(err))
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
	client := newClient(conn, info, h.router, h.typingQuiet, h.log)
	go client.writePump()

	h.hub.Register(userID, client)
	observability.IncWSActive()
	h.log.Info("websocket connected", info.logFields()...)

	// the request context ends when this handler returns
	eventCtx := context.WithoutCancel(ctx)
	publishLifecycle(eventCtx, info, "ws_connect", "")

	go h.serve(eventCtx, client)
}

func (h *WebSocketHandler) serve(ctx context.Context, client *Client) {
	info := client.info
	var closeReason string
	defer func() {
		h.hub.Unregister(info.UserID, client)
		client.Close()
		_ = client.conn.Close()
		observability.DecWSActive()
		publishLifecycle(ctx, info, "ws_disconnect", closeReason)
		h.log.Info("websocket disconnected", append(info.logFields(), zap.String("reason", closeReason))...)
	}()

	err := client.readPump()
	closeReason = err.Error()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		publishLifecycle(ctx, info, "ws_error", closeReason)
	}
}

func tokenFromRequest(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(token)
	}
	return c.Query("token")
}
