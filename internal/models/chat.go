package models

import "time"

// Chat is the message-log aggregate. GroupID is set when the chat is the
// paired log of a group and nil for direct chats.
type Chat struct {
	ID            int       `db:"id" json:"id"`
	GroupID       *int      `db:"group_id" json:"group_id,omitempty"`
	LastMessageID *int      `db:"last_message_id" json:"last_message_id,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Participant is a user entitled to read and write a chat, together with
// their unread counter. Every current participant has exactly one row.
type Participant struct {
	ChatID      int `db:"chat_id" json:"chat_id"`
	UserID      int `db:"user_id" json:"user_id"`
	UnreadCount int `db:"unread_count" json:"unread_count"`
}
