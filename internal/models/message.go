package models

import "time"

// Message is a direct message between two users. At least one of Text and
// Image is set.
type Message struct {
	ID          int       `db:"id" json:"id"`
	SenderID    int       `db:"sender_id" json:"senderId"`
	RecipientID int       `db:"recipient_id" json:"recipientId"`
	Text        string    `db:"text" json:"text,omitempty"`
	Image       string    `db:"image" json:"image,omitempty"`
	Seen        bool      `db:"seen" json:"seen"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// Event is the frame pushed over websocket connections.
type Event struct {
	Event       string   `json:"event"`
	OnlineUsers []int    `json:"onlineUsers,omitempty"`
	Message     *Message `json:"message,omitempty"`
}

// Websocket event names, shared with the web client.
const (
	EventOnlineUsers = "getOnlineUsers"
	EventNewMessage  = "newMessage"
)
