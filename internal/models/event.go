package models

import "encoding/json"

const (
	EventOnlineUsers  = "getOnlineUsers"
	EventNewMessage   = "newMessage"
	EventTyping       = "typing"
	EventMessagesSeen = "messagesSeen"
)

// Envelope is a websocket frame in either direction.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// TypingRequest is sent by the typing user.
type TypingRequest struct {
	ToUserID string `json:"toUserId"`
	IsTyping bool   `json:"isTyping"`
}

// SeenReceipt tells a sender that ByUserID has read their messages. MessageIDs
// is empty when a whole conversation was marked at once.
type SeenReceipt struct {
	ByUserID   string   `json:"byUserId"`
	MessageIDs []string `json:"messageIds,omitempty"`
	Count      int64    `json:"count"`
}

// TypingEvent is pushed to the observer.
type TypingEvent struct {
	FromUserID string `json:"fromUserId"`
	IsTyping   bool   `json:"isTyping"`
}
