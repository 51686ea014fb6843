package models

import "time"

// Message is a one-to-one chat message. Only Seen ever changes after insert.
type Message struct {
	ID         string    `db:"id" json:"id"`
	SenderID   string    `db:"sender_id" json:"senderId"`
	ReceiverID string    `db:"receiver_id" json:"receiverId"`
	Text       *string   `db:"text" json:"text,omitempty"`
	ImageURL   *string   `db:"image_url" json:"image,omitempty"`
	Seen       bool      `db:"seen" json:"seen"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// Counterpart returns the other participant of the message relative to userID.
func (m Message) Counterpart(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

// Contact is one entry of a ranked contact list.
type Contact struct {
	User        User     `json:"user"`
	LastMessage *Message `json:"lastMessage,omitempty"`
	UnseenCount int      `json:"unseenCount"`
}

// LastActivity is the instant used to rank the contact.
func (c Contact) LastActivity() time.Time {
	if c.LastMessage != nil {
		return c.LastMessage.CreatedAt
	}
	return c.User.CreatedAt
}
