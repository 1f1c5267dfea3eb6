package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"groupchat-service/internal/models"
)

var (
	ErrChatNotFound    = errors.New("chat not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrNotParticipant  = errors.New("not a chat participant")
)

// DefaultPageSize is the message page size when the caller gives none.
const DefaultPageSize = 50

// PollDraft describes a poll to embed in a new message.
type PollDraft struct {
	Question string
	Options  []string
	EndsAt   time.Time
}

// MessageDraft is the input for appending a message to a chat. Poll
// messages and plain messages share this one append path.
type MessageDraft struct {
	SenderID    int
	ContentType string
	Content     string
	ReplyTo     *int
	Quiz        json.RawMessage
	Attachments []models.Attachment
	Poll        *PollDraft
}

// MessagePage is one page of a chat's log, oldest message first.
type MessagePage struct {
	Messages    []models.MessageView `json:"messages"`
	HasMore     bool                 `json:"has_more"`
	UnreadReset bool                 `json:"-"`
}

// ChatRepository abstracts the chat log.
type ChatRepository interface {
	ResolveChat(ctx context.Context, id int) (models.Chat, error)
	IsParticipant(ctx context.Context, chatID int, userID int) (bool, error)
	CreateMessage(ctx context.Context, chatID int, draft MessageDraft) (models.MessageView, error)
	ListMessages(ctx context.Context, chatID int, readerID int, limit int, before *time.Time) (MessagePage, error)
	GetMessage(ctx context.Context, chatID int, messageID int) (models.Message, error)
	SoftDeleteMessage(ctx context.Context, chatID int, messageID int, senderID int) error
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

const chatColumns = `id, group_id, last_message_id, created_at, updated_at`
const messageColumns = `id, chat_id, sender_id, content_type, content, reply_to, quiz, is_deleted, created_at`

// ResolveChat locates a chat by its id, falling back to lookup by group id
// for callers that only know the group.
func (r *ChatRepo) ResolveChat(ctx context.Context, id int) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM chats WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		err = r.db.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM chats WHERE group_id=$1`, id)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// IsParticipant checks whether the user belongs to the chat.
func (r *ChatRepo) IsParticipant(ctx context.Context, chatID int, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM chat_participants WHERE chat_id=$1 AND user_id=$2)`, chatID, userID)
	return exists, err
}

// CreateMessage appends a message, seeds the sender's read receipt, bumps
// the chat tail, and fans out unread increments to every other participant.
// The increment is a single UPDATE so concurrent senders never lose counts.
func (r *ChatRepo) CreateMessage(ctx context.Context, chatID int, draft MessageDraft) (models.MessageView, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.MessageView{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var msg models.Message
	err = tx.QueryRowxContext(ctx, `INSERT INTO messages (chat_id, sender_id, content_type, content, reply_to, quiz)
        VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+messageColumns,
		chatID, draft.SenderID, draft.ContentType, draft.Content, draft.ReplyTo, nullableJSON(draft.Quiz)).
		StructScan(&msg)
	if err != nil {
		return models.MessageView{}, err
	}

	for i, att := range draft.Attachments {
		if _, err = tx.ExecContext(ctx, `INSERT INTO message_attachments (message_id, idx, url, type) VALUES ($1, $2, $3, $4)`,
			msg.ID, i, att.URL, att.Type); err != nil {
			return models.MessageView{}, err
		}
	}

	view := models.MessageView{Message: msg, Attachments: draft.Attachments, Reactions: []models.Reaction{}}

	if draft.Poll != nil {
		if _, err = tx.ExecContext(ctx, `INSERT INTO polls (message_id, question, ends_at) VALUES ($1, $2, $3)`,
			msg.ID, draft.Poll.Question, draft.Poll.EndsAt); err != nil {
			return models.MessageView{}, err
		}
		poll := &models.Poll{MessageID: msg.ID, Question: draft.Poll.Question, EndsAt: draft.Poll.EndsAt}
		for i, text := range draft.Poll.Options {
			if _, err = tx.ExecContext(ctx, `INSERT INTO poll_options (message_id, idx, text) VALUES ($1, $2, $3)`,
				msg.ID, i, text); err != nil {
				return models.MessageView{}, err
			}
			poll.Options = append(poll.Options, models.PollOption{Text: text, Votes: []int{}})
		}
		view.Poll = poll
	}

	var readAt time.Time
	if err = tx.QueryRowxContext(ctx, `INSERT INTO message_reads (message_id, user_id) VALUES ($1, $2) RETURNING read_at`,
		msg.ID, draft.SenderID).Scan(&readAt); err != nil {
		return models.MessageView{}, err
	}
	view.ReadBy = []models.ReadReceipt{{UserID: draft.SenderID, ReadAt: readAt}}

	if _, err = tx.ExecContext(ctx, `UPDATE chats SET last_message_id=$2, updated_at=NOW() WHERE id=$1`, chatID, msg.ID); err != nil {
		return models.MessageView{}, err
	}
	if _, err = tx.ExecContext(ctx, `UPDATE chat_participants SET unread_count = unread_count + 1
        WHERE chat_id=$1 AND user_id <> $2`, chatID, draft.SenderID); err != nil {
		return models.MessageView{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.MessageView{}, err
	}
	return view, nil
}

// ListMessages returns the most recent page of non-deleted messages in
// ascending order and merges the reader's receipts for the returned page.
// The merge is idempotent, so overlapping polls from the same reader are
// safe; the unread counter resets only when a new receipt was written.
func (r *ChatRepo) ListMessages(ctx context.Context, chatID int, readerID int, limit int, before *time.Time) (MessagePage, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}

	query := `SELECT ` + messageColumns + ` FROM messages WHERE chat_id=$1 AND is_deleted = FALSE`
	args := []interface{}{chatID, limit}
	if before != nil {
		args = append(args, *before)
		query += ` AND created_at < $3`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT $2`

	var page []models.Message
	if err := r.db.SelectContext(ctx, &page, query, args...); err != nil {
		return MessagePage{}, err
	}
	// Oldest first for rendering.
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM messages WHERE chat_id=$1 AND is_deleted = FALSE`, chatID); err != nil {
		return MessagePage{}, err
	}

	result := MessagePage{HasMore: total > len(page)}
	if len(page) > 0 {
		ids := messageIDs(page)
		res, err := r.db.ExecContext(ctx, `INSERT INTO message_reads (message_id, user_id)
            SELECT unnest($1::int[]), $2 ON CONFLICT DO NOTHING`, pq.Array(ids), readerID)
		if err != nil {
			return MessagePage{}, err
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return MessagePage{}, err
		}
		if inserted > 0 {
			if _, err := r.db.ExecContext(ctx, `UPDATE chat_participants SET unread_count = 0
                WHERE chat_id=$1 AND user_id=$2`, chatID, readerID); err != nil {
				return MessagePage{}, err
			}
			result.UnreadReset = true
		}
	}

	views, err := r.hydrateMessages(ctx, page)
	if err != nil {
		return MessagePage{}, err
	}
	result.Messages = views
	return result, nil
}

// GetMessage fetches one message scoped to its chat.
func (r *ChatRepo) GetMessage(ctx context.Context, chatID int, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1 AND chat_id=$2`, messageID, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// SoftDeleteMessage hides a message from listings without removing it.
// Only the sender may delete.
func (r *ChatRepo) SoftDeleteMessage(ctx context.Context, chatID int, messageID int, senderID int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET is_deleted = TRUE WHERE id=$1 AND chat_id=$2 AND sender_id=$3`,
		messageID, chatID, senderID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func (r *ChatRepo) hydrateMessages(ctx context.Context, msgs []models.Message) ([]models.MessageView, error) {
	views := make([]models.MessageView, 0, len(msgs))
	if len(msgs) == 0 {
		return views, nil
	}
	ids := messageIDs(msgs)

	attachments := map[int][]models.Attachment{}
	rows, err := r.db.QueryxContext(ctx, `SELECT message_id, url, type FROM message_attachments
        WHERE message_id = ANY($1) ORDER BY message_id, idx`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var msgID int
		var att models.Attachment
		if err := rows.Scan(&msgID, &att.URL, &att.Type); err != nil {
			return nil, err
		}
		attachments[msgID] = append(attachments[msgID], att)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	reactions := map[int][]models.Reaction{}
	rrows, err := r.db.QueryxContext(ctx, `SELECT message_id, user_id, reaction FROM message_reactions
        WHERE message_id = ANY($1) ORDER BY message_id, user_id`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rrows.Close()
	for rrows.Next() {
		var msgID int
		var reaction models.Reaction
		if err := rrows.Scan(&msgID, &reaction.UserID, &reaction.Reaction); err != nil {
			return nil, err
		}
		reactions[msgID] = append(reactions[msgID], reaction)
	}
	if err := rrows.Err(); err != nil {
		return nil, err
	}

	reads := map[int][]models.ReadReceipt{}
	drows, err := r.db.QueryxContext(ctx, `SELECT message_id, user_id, read_at FROM message_reads
        WHERE message_id = ANY($1) ORDER BY message_id, read_at`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer drows.Close()
	for drows.Next() {
		var msgID int
		var receipt models.ReadReceipt
		if err := drows.Scan(&msgID, &receipt.UserID, &receipt.ReadAt); err != nil {
			return nil, err
		}
		reads[msgID] = append(reads[msgID], receipt)
	}
	if err := drows.Err(); err != nil {
		return nil, err
	}

	polls, err := loadPolls(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}

	for _, msg := range msgs {
		view := models.MessageView{
			Message:     msg,
			Attachments: attachments[msg.ID],
			Reactions:   reactions[msg.ID],
			ReadBy:      reads[msg.ID],
		}
		if view.Reactions == nil {
			view.Reactions = []models.Reaction{}
		}
		if poll, ok := polls[msg.ID]; ok {
			view.Poll = poll
		}
		views = append(views, view)
	}
	return views, nil
}

func messageIDs(msgs []models.Message) []int {
	ids := make([]int, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	return ids
}

func nullableJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
