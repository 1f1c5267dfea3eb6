package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"groupchat-service/internal/models"
)

var (
	ErrPollNotFound     = errors.New("poll not found")
	ErrPollClosed       = errors.New("poll has ended")
	ErrOptionOutOfRange = errors.New("option index out of range")
)

// PollRepository abstracts poll voting. Poll creation goes through the chat
// log's message append path; this repository only mutates vote state.
type PollRepository interface {
	GetPoll(ctx context.Context, chatID int, messageID int) (models.Poll, error)
	CastVote(ctx context.Context, chatID int, messageID int, userID int, optionIdx int) (models.Poll, error)
	RetractVote(ctx context.Context, chatID int, messageID int, userID int) (models.Poll, error)
}

// PollRepo is a sqlx implementation of PollRepository.
type PollRepo struct {
	db *sqlx.DB
}

// NewPollRepo constructs a PollRepo.
func NewPollRepo(db *sqlx.DB) *PollRepo {
	return &PollRepo{db: db}
}

// GetPoll loads a poll scoped to its chat, options and vote sets included.
func (r *PollRepo) GetPoll(ctx context.Context, chatID int, messageID int) (models.Poll, error) {
	poll, _, err := r.pollHeader(ctx, chatID, messageID)
	if err != nil {
		return models.Poll{}, err
	}
	return r.hydrate(ctx, poll)
}

// CastVote records the user's vote as a single upsert keyed by
// (message, user), so a re-vote atomically moves the user between options
// and concurrent voters cannot clobber each other.
func (r *PollRepo) CastVote(ctx context.Context, chatID int, messageID int, userID int, optionIdx int) (models.Poll, error) {
	poll, optionCount, err := r.pollHeader(ctx, chatID, messageID)
	if err != nil {
		return models.Poll{}, err
	}
	if poll.Closed(time.Now()) {
		return models.Poll{}, ErrPollClosed
	}
	if optionIdx < 0 || optionIdx >= optionCount {
		return models.Poll{}, ErrOptionOutOfRange
	}

	if _, err := r.db.ExecContext(ctx, `INSERT INTO poll_votes (message_id, user_id, option_idx) VALUES ($1, $2, $3)
        ON CONFLICT (message_id, user_id) DO UPDATE SET option_idx = EXCLUDED.option_idx`,
		messageID, userID, optionIdx); err != nil {
		return models.Poll{}, err
	}
	return r.hydrate(ctx, poll)
}

// RetractVote removes the user's vote. Retracting an absent vote succeeds.
func (r *PollRepo) RetractVote(ctx context.Context, chatID int, messageID int, userID int) (models.Poll, error) {
	poll, _, err := r.pollHeader(ctx, chatID, messageID)
	if err != nil {
		return models.Poll{}, err
	}
	if poll.Closed(time.Now()) {
		return models.Poll{}, ErrPollClosed
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM poll_votes WHERE message_id=$1 AND user_id=$2`, messageID, userID); err != nil {
		return models.Poll{}, err
	}
	return r.hydrate(ctx, poll)
}

func (r *PollRepo) pollHeader(ctx context.Context, chatID int, messageID int) (models.Poll, int, error) {
	var header struct {
		models.Poll
		OptionCount int `db:"option_count"`
	}
	err := r.db.GetContext(ctx, &header, `SELECT p.message_id, p.question, p.ends_at,
            (SELECT COUNT(*) FROM poll_options o WHERE o.message_id = p.message_id) AS option_count
        FROM polls p
        JOIN messages m ON m.id = p.message_id
        WHERE p.message_id=$1 AND m.chat_id=$2 AND m.is_deleted = FALSE`, messageID, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Poll{}, 0, ErrPollNotFound
	}
	if err != nil {
		return models.Poll{}, 0, err
	}
	return header.Poll, header.OptionCount, nil
}

func (r *PollRepo) hydrate(ctx context.Context, poll models.Poll) (models.Poll, error) {
	polls, err := loadPolls(ctx, r.db, []int{poll.MessageID})
	if err != nil {
		return models.Poll{}, err
	}
	hydrated, ok := polls[poll.MessageID]
	if !ok {
		return models.Poll{}, ErrPollNotFound
	}
	return *hydrated, nil
}

// loadPolls fetches polls with their options and vote sets for a batch of
// message ids. Shared with the chat log's message hydration.
func loadPolls(ctx context.Context, db *sqlx.DB, messageIDs []int) (map[int]*models.Poll, error) {
	polls := map[int]*models.Poll{}

	rows, err := db.QueryxContext(ctx, `SELECT message_id, question, ends_at FROM polls
        WHERE message_id = ANY($1)`, pq.Array(messageIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var poll models.Poll
		if err := rows.Scan(&poll.MessageID, &poll.Question, &poll.EndsAt); err != nil {
			return nil, err
		}
		polls[poll.MessageID] = &poll
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(polls) == 0 {
		return polls, nil
	}

	orows, err := db.QueryxContext(ctx, `SELECT message_id, text FROM poll_options
        WHERE message_id = ANY($1) ORDER BY message_id, idx`, pq.Array(messageIDs))
	if err != nil {
		return nil, err
	}
	defer orows.Close()
	for orows.Next() {
		var msgID int
		var text string
		if err := orows.Scan(&msgID, &text); err != nil {
			return nil, err
		}
		if poll, ok := polls[msgID]; ok {
			poll.Options = append(poll.Options, models.PollOption{Text: text, Votes: []int{}})
		}
	}
	if err := orows.Err(); err != nil {
		return nil, err
	}

	vrows, err := db.QueryxContext(ctx, `SELECT message_id, user_id, option_idx FROM poll_votes
        WHERE message_id = ANY($1) ORDER BY message_id, user_id`, pq.Array(messageIDs))
	if err != nil {
		return nil, err
	}
	defer vrows.Close()
	for vrows.Next() {
		var msgID, userID, optionIdx int
		if err := vrows.Scan(&msgID, &userID, &optionIdx); err != nil {
			return nil, err
		}
		if poll, ok := polls[msgID]; ok && optionIdx >= 0 && optionIdx < len(poll.Options) {
			poll.Options[optionIdx].Votes = append(poll.Options[optionIdx].Votes, userID)
		}
	}
	return polls, vrows.Err()
}
