package models

import "time"

// Chat types a message can belong to.
const (
	ChatTypeGroup   = "group"
	ChatTypePrivate = "private"
)

// Message is an immutable chat message. The ID is store-assigned (ULID,
// so lexicographic order is chronological). Sender fields are denormalized
// into the wire view so clients never need a second lookup.
type Message struct {
	ID             string    `json:"id"`
	Content        string    `json:"content"`
	SenderID       string    `json:"senderId"`
	SenderUsername string    `json:"senderUsername"`
	ChatID         string    `json:"chatId"`
	ChatType       string    `json:"chatType"`
	CreatedAt      time.Time `json:"createdAt"`
}

// PrivateMessageView is the Message enriched with the recipient's identity,
// built by the relay for private sends so both parties' devices can render
// the conversation without resolving ids.
type PrivateMessageView struct {
	Message
	RecipientID       string `json:"recipientId"`
	RecipientUsername string `json:"recipientUsername"`
}
