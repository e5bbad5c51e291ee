// internal/models/membership.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type MemberRole string

const (
	RoleAdmin  MemberRole = "ADMIN"
	RoleMember MemberRole = "MEMBER"
)

type MemberStatus string

const (
	MemberStatusPending  MemberStatus = "PENDING"
	MemberStatusAccepted MemberStatus = "ACCEPTED"
	MemberStatusRejected MemberStatus = "REJECTED"
)

// CommunityMembership joins a user to a community. Role and status are independent;
// only an ACCEPTED membership carries authority.
type CommunityMembership struct {
	CommunityID          uuid.UUID    `db:"community_id" json:"community_id"`
	UserID               uuid.UUID    `db:"user_id" json:"user_id"`
	Role                 MemberRole   `db:"role" json:"role"`
	Status               MemberStatus `db:"status" json:"status"`
	NotificationsEnabled bool         `db:"notifications_enabled" json:"notifications_enabled"`
	CreatedAt            time.Time    `db:"created_at" json:"created_at"`
}

// MemberUpdate is a partial update; nil fields are left unchanged.
type MemberUpdate struct {
	Role   *MemberRole   `json:"role,omitempty"`
	Status *MemberStatus `json:"status,omitempty"`
}

func (u MemberUpdate) Empty() bool {
	return u.Role == nil && u.Status == nil
}

// Announcement is a message an admin posts to a community.
type Announcement struct {
	ID          uuid.UUID `db:"id" json:"id"`
	CommunityID uuid.UUID `db:"community_id" json:"community_id"`
	AuthorID    uuid.UUID `db:"author_id" json:"author_id"`
	Title       string    `db:"title" json:"title"`
	Content     string    `db:"content" json:"content"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
