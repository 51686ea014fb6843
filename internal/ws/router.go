package ws

import (
	"go.uber.org/zap"

	"realtime-chat/internal/models"
	"realtime-chat/internal/observability"
)

// Router delivers events to a user's live connection. Events for users who are
// not connected are dropped; durable facts are already persisted by the caller.
type Router struct {
	hub *Hub
	log *zap.Logger
}

func NewRouter(hub *Hub, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{hub: hub, log: log}
}

// Deliver sends event to userID and reports whether a live connection accepted it.
func (r *Router) Deliver(userID, event string, payload any) bool {
	conn, ok := r.hub.Lookup(userID)
	if !ok {
		observability.ObserveDelivery(event, false)
		return false
	}
	if err := conn.Send(event, payload); err != nil {
		r.log.Debug("delivery failed", zap.String("user_id", userID), zap.String("event", event), zap.Error(err))
		observability.ObserveDelivery(event, false)
		return false
	}
	observability.ObserveDelivery(event, true)
	return true
}

// DeliverTyping feeds a typing signal into the target's typing state machine.
func (r *Router) DeliverTyping(fromUserID, toUserID string, isTyping bool) bool {
	conn, ok := r.hub.Lookup(toUserID)
	if !ok {
		observability.ObserveDelivery(models.EventTyping, false)
		return false
	}
	conn.ObserveTyping(fromUserID, isTyping)
	observability.ObserveDelivery(models.EventTyping, true)
	return true
}

// NotifyNewMessage pushes a persisted message to its receiver.
func (r *Router) NotifyNewMessage(msg models.Message) bool {
	return r.Deliver(msg.ReceiverID, models.EventNewMessage, msg)
}

// NotifyMessagesSeen pushes a read receipt to the original sender.
func (r *Router) NotifyMessagesSeen(senderID string, receipt models.SeenReceipt) bool {
	return r.Deliver(senderID, models.EventMessagesSeen, receipt)
}
