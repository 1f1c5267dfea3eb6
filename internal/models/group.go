package models

import (
	"time"

	"github.com/lib/pq"
)

// Membership roles within a group.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Group represents a named discussion space with membership and privacy settings.
type Group struct {
	ID               int            `db:"id" json:"id"`
	Name             string         `db:"name" json:"name"`
	Description      string         `db:"description" json:"description"`
	Category         string         `db:"category" json:"category"`
	Tags             pq.StringArray `db:"tags" json:"tags"`
	CreatedBy        int            `db:"created_by" json:"created_by"`
	IsPrivate        bool           `db:"is_private" json:"is_private"`
	AllowMemberPolls bool           `db:"allow_member_polls" json:"allow_member_polls"`
	LastActivity     time.Time      `db:"last_activity" json:"last_activity"`
	IsActive         bool           `db:"is_active" json:"is_active"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
}

// GroupMember is one membership row. Admins are rows with role "admin",
// so the admin set is always a subset of the members.
type GroupMember struct {
	GroupID  int       `db:"group_id" json:"group_id"`
	UserID   int       `db:"user_id" json:"user_id"`
	Role     string    `db:"role" json:"role"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
}

// JoinRequest is a pending request to join a private group.
type JoinRequest struct {
	GroupID     int       `db:"group_id" json:"group_id"`
	UserID      int       `db:"user_id" json:"user_id"`
	RequestedAt time.Time `db:"requested_at" json:"requested_at"`
}

// GroupSettings bundles the group switches accepted on creation.
type GroupSettings struct {
	IsPrivate        bool `json:"is_private"`
	AllowMemberPolls bool `json:"allow_member_polls"`
}

// GroupSummary is a group annotated for a listing viewer.
type GroupSummary struct {
	Group
	MemberCount    int    `json:"member_count"`
	IsMember       bool   `json:"is_member"`
	MemberRole     string `json:"member_role,omitempty"`
	PendingRequest bool   `json:"pending_request"`
}
