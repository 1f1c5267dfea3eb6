package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"groupchat-service/internal/models"
)

var (
	ErrGroupNotFound  = errors.New("group not found")
	ErrAlreadyMember  = errors.New("already a member")
	ErrRequestPending = errors.New("join request already pending")
)

// JoinResult reports the outcome of a join attempt. Pending is true when the
// group is private and the request was queued instead of granted.
type JoinResult struct {
	Group   models.Group `json:"group"`
	Pending bool         `json:"pending"`
}

// GroupRepository abstracts the group directory.
type GroupRepository interface {
	CreateGroup(ctx context.Context, group models.Group) (models.Group, models.Chat, error)
	GetGroup(ctx context.Context, groupID int) (models.Group, error)
	ListGroups(ctx context.Context, viewerID *int, category, search string) ([]models.GroupSummary, error)
	MemberRole(ctx context.Context, groupID int, userID int) (string, bool, error)
	JoinGroup(ctx context.Context, groupID int, userID int) (JoinResult, error)
	LeaveGroup(ctx context.Context, groupID int, userID int) error
}

// GroupRepo is a sqlx implementation of GroupRepository.
type GroupRepo struct {
	db *sqlx.DB
}

// NewGroupRepo constructs a GroupRepo.
func NewGroupRepo(db *sqlx.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

const groupColumns = `id, name, description, category, tags, created_by, is_private, allow_member_polls, last_activity, is_active, created_at`

// CreateGroup inserts the group, its owner membership, and the paired chat
// in one transaction so a group can never exist without its chat.
func (r *GroupRepo) CreateGroup(ctx context.Context, group models.Group) (models.Group, models.Chat, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Group{}, models.Chat{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var created models.Group
	err = tx.QueryRowxContext(ctx, `INSERT INTO groups (name, description, category, tags, created_by, is_private, allow_member_polls)
        VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING `+groupColumns,
		group.Name, group.Description, group.Category, group.Tags, group.CreatedBy, group.IsPrivate, group.AllowMemberPolls).
		StructScan(&created)
	if err != nil {
		return models.Group{}, models.Chat{}, err
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO group_members (group_id, user_id, role) VALUES ($1, $2, $3)`,
		created.ID, created.CreatedBy, models.RoleAdmin); err != nil {
		return models.Group{}, models.Chat{}, err
	}

	var chat models.Chat
	err = tx.QueryRowxContext(ctx, `INSERT INTO chats (group_id) VALUES ($1) RETURNING id, group_id, last_message_id, created_at, updated_at`, created.ID).
		StructScan(&chat)
	if err != nil {
		return models.Group{}, models.Chat{}, err
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO chat_participants (chat_id, user_id) VALUES ($1, $2)`,
		chat.ID, created.CreatedBy); err != nil {
		return models.Group{}, models.Chat{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Group{}, models.Chat{}, err
	}
	return created, chat, nil
}

// GetGroup fetches an active group.
func (r *GroupRepo) GetGroup(ctx context.Context, groupID int) (models.Group, error) {
	var group models.Group
	err := r.db.GetContext(ctx, &group, `SELECT `+groupColumns+` FROM groups WHERE id=$1 AND is_active = TRUE`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Group{}, ErrGroupNotFound
	}
	return group, err
}

// ListGroups returns active groups ordered by last activity, annotated for
// the viewer. Unauthenticated listings hide private groups.
func (r *GroupRepo) ListGroups(ctx context.Context, viewerID *int, category, search string) ([]models.GroupSummary, error) {
	query := `SELECT g.id, g.name, g.description, g.category, g.tags, g.created_by, g.is_private,
            g.allow_member_polls, g.last_activity, g.is_active, g.created_at,
            (SELECT COUNT(*) FROM group_members gm WHERE gm.group_id = g.id) AS member_count,
            COALESCE(m.role, '') AS member_role,
            (m.user_id IS NOT NULL) AS is_member,
            (jr.user_id IS NOT NULL) AS pending_request
        FROM groups g
        LEFT JOIN group_members m ON m.group_id = g.id AND m.user_id = $1
        LEFT JOIN group_join_requests jr ON jr.group_id = g.id AND jr.user_id = $1
        WHERE g.is_active = TRUE`

	viewer := 0
	if viewerID != nil {
		viewer = *viewerID
	} else {
		query += ` AND g.is_private = FALSE`
	}

	args := []interface{}{viewer}
	if category != "" {
		args = append(args, category)
		query += fmt.Sprintf(` AND g.category = $%d`, len(args))
	}
	if search != "" {
		args = append(args, "%"+search+"%")
		n := len(args)
		query += fmt.Sprintf(` AND (g.name ILIKE $%d OR g.description ILIKE $%d
            OR EXISTS (SELECT 1 FROM unnest(g.tags) tag WHERE tag ILIKE $%d))`, n, n, n)
	}
	query += ` ORDER BY g.last_activity DESC`

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.GroupSummary
	for rows.Next() {
		var row struct {
			models.Group
			MemberCount    int    `db:"member_count"`
			MemberRole     string `db:"member_role"`
			IsMember       bool   `db:"is_member"`
			PendingRequest bool   `db:"pending_request"`
		}
		if err := rows.StructScan(&row); err != nil {
			return nil, err
		}
		summary := models.GroupSummary{
			Group:       row.Group,
			MemberCount: row.MemberCount,
		}
		if viewerID != nil {
			summary.IsMember = row.IsMember
			summary.MemberRole = row.MemberRole
			summary.PendingRequest = row.PendingRequest
		}
		result = append(result, summary)
	}
	return result, rows.Err()
}

// MemberRole returns the viewer's role in the group and whether they are a member.
func (r *GroupRepo) MemberRole(ctx context.Context, groupID int, userID int) (string, bool, error) {
	var role string
	err := r.db.GetContext(ctx, &role, `SELECT role FROM group_members WHERE group_id=$1 AND user_id=$2`, groupID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return role, true, nil
}

// JoinGroup grants membership directly for public groups and queues a
// pending request for private ones. A second attempt while already a member
// or while a request is pending reports a conflict.
func (r *GroupRepo) JoinGroup(ctx context.Context, groupID int, userID int) (JoinResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return JoinResult{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var group models.Group
	err = tx.GetContext(ctx, &group, `SELECT `+groupColumns+` FROM groups WHERE id=$1 AND is_active = TRUE`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrGroupNotFound
		return JoinResult{}, err
	}
	if err != nil {
		return JoinResult{}, err
	}

	var isMember bool
	if err = tx.GetContext(ctx, &isMember, `SELECT EXISTS(SELECT 1 FROM group_members WHERE group_id=$1 AND user_id=$2)`, groupID, userID); err != nil {
		return JoinResult{}, err
	}
	if isMember {
		err = ErrAlreadyMember
		return JoinResult{}, err
	}

	if group.IsPrivate {
		var res sql.Result
		res, err = tx.ExecContext(ctx, `INSERT INTO group_join_requests (group_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, groupID, userID)
		if err != nil {
			return JoinResult{}, err
		}
		var inserted int64
		if inserted, err = res.RowsAffected(); err != nil {
			return JoinResult{}, err
		}
		if inserted == 0 {
			err = ErrRequestPending
			return JoinResult{}, err
		}
		if err = tx.Commit(); err != nil {
			return JoinResult{}, err
		}
		return JoinResult{Group: group, Pending: true}, nil
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO group_members (group_id, user_id, role) VALUES ($1, $2, $3)`,
		groupID, userID, models.RoleMember); err != nil {
		return JoinResult{}, err
	}
	// A user is never in members and pending requests at the same time.
	if _, err = tx.ExecContext(ctx, `DELETE FROM group_join_requests WHERE group_id=$1 AND user_id=$2`, groupID, userID); err != nil {
		return JoinResult{}, err
	}
	err = tx.GetContext(ctx, &group, `UPDATE groups SET last_activity = NOW() WHERE id=$1 RETURNING `+groupColumns, groupID)
	if err != nil {
		return JoinResult{}, err
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO chat_participants (chat_id, user_id)
        SELECT id, $2 FROM chats WHERE group_id=$1
        ON CONFLICT DO NOTHING`, groupID, userID); err != nil {
		return JoinResult{}, err
	}

	if err = tx.Commit(); err != nil {
		return JoinResult{}, err
	}
	return JoinResult{Group: group}, nil
}

// LeaveGroup removes the user's membership, pending request, and chat
// participation in one transaction. Removing an absent user succeeds.
func (r *GroupRepo) LeaveGroup(ctx context.Context, groupID int, userID int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var exists bool
	if err = tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM groups WHERE id=$1 AND is_active = TRUE)`, groupID); err != nil {
		return err
	}
	if !exists {
		err = ErrGroupNotFound
		return err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM group_members WHERE group_id=$1 AND user_id=$2`, groupID, userID); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM group_join_requests WHERE group_id=$1 AND user_id=$2`, groupID, userID); err != nil {
		return err
	}
	// Dropping the participant row also drops the user's unread entry.
	if _, err = tx.ExecContext(ctx, `DELETE FROM chat_participants cp USING chats c
        WHERE cp.chat_id = c.id AND c.group_id = $1 AND cp.user_id = $2`, groupID, userID); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `UPDATE groups SET last_activity = NOW() WHERE id=$1`, groupID); err != nil {
		return err
	}

	return tx.Commit()
}
