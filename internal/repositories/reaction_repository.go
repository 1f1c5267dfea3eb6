package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"groupchat-service/internal/models"
)

// ReactionRepository abstracts the one-reaction-per-user ledger.
type ReactionRepository interface {
	UpsertReaction(ctx context.Context, chatID int, messageID int, userID int, reaction string) ([]models.Reaction, error)
}

// ReactionRepo is a sqlx implementation of ReactionRepository.
type ReactionRepo struct {
	db *sqlx.DB
}

// NewReactionRepo constructs a ReactionRepo.
func NewReactionRepo(db *sqlx.DB) *ReactionRepo {
	return &ReactionRepo{db: db}
}

// UpsertReaction replaces any existing reaction by the user with the new
// one in a single upsert and returns the message's full reaction list.
func (r *ReactionRepo) UpsertReaction(ctx context.Context, chatID int, messageID int, userID int, reaction string) ([]models.Reaction, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM messages WHERE id=$1 AND chat_id=$2)`, messageID, chatID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrMessageNotFound
	}

	if _, err := r.db.ExecContext(ctx, `INSERT INTO message_reactions (message_id, user_id, reaction) VALUES ($1, $2, $3)
        ON CONFLICT (message_id, user_id) DO UPDATE SET reaction = EXCLUDED.reaction`,
		messageID, userID, reaction); err != nil {
		return nil, err
	}

	reactions := []models.Reaction{}
	err = r.db.SelectContext(ctx, &reactions, `SELECT user_id, reaction FROM message_reactions
        WHERE message_id=$1 ORDER BY user_id`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return reactions, nil
	}
	return reactions, err
}
