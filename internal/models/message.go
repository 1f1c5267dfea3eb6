package models

import (
	"encoding/json"
	"time"
)

// Message content types.
const (
	ContentText  = "text"
	ContentImage = "image"
	ContentFile  = "file"
	ContentPoll  = "poll"
	ContentQuiz  = "quiz"
)

// Message is one element of a chat's append-only sequence. Deletion only
// flips IsDeleted; the row is preserved.
type Message struct {
	ID          int             `db:"id" json:"id"`
	ChatID      int             `db:"chat_id" json:"chat_id"`
	SenderID    int             `db:"sender_id" json:"sender_id"`
	ContentType string          `db:"content_type" json:"content_type"`
	Content     string          `db:"content" json:"content,omitempty"`
	ReplyTo     *int            `db:"reply_to" json:"reply_to,omitempty"`
	Quiz        json.RawMessage `db:"quiz" json:"quiz,omitempty"`
	IsDeleted   bool            `db:"is_deleted" json:"is_deleted"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// Attachment is an ordered media reference on an image or file message.
type Attachment struct {
	URL  string `db:"url" json:"url"`
	Type string `db:"type" json:"type"`
}

// Reaction records one user's reaction to a message. At most one row per
// user per message exists.
type Reaction struct {
	UserID   int    `db:"user_id" json:"user_id"`
	Reaction string `db:"reaction" json:"reaction"`
}

// ReadReceipt records that a user has seen a message. Receipts only grow;
// the sender's receipt is written at creation time.
type ReadReceipt struct {
	UserID int       `db:"user_id" json:"user_id"`
	ReadAt time.Time `db:"read_at" json:"read_at"`
}

// MessageView is a message expanded with its owned sub-entities and the
// sender's display profile for rendering.
type MessageView struct {
	Message
	Attachments  []Attachment  `json:"attachments,omitempty"`
	Reactions    []Reaction    `json:"reactions"`
	ReadBy       []ReadReceipt `json:"read_by"`
	Poll         *Poll         `json:"poll,omitempty"`
	SenderName   string        `json:"sender_name,omitempty"`
	SenderAvatar string        `json:"sender_avatar,omitempty"`
}
