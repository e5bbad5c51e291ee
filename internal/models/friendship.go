// internal/models/friendship.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "PENDING"
	FriendshipAccepted FriendshipStatus = "ACCEPTED"
)

// Friendship is one direction of a friend relation. An accepted friendship is stored
// as two rows, one per direction.
type Friendship struct {
	UserID    uuid.UUID        `db:"user_id" json:"user_id"`
	FriendID  uuid.UUID        `db:"friend_id" json:"friend_id"`
	Status    FriendshipStatus `db:"status" json:"status"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// UsersPage is a page of users plus the total count.
type UsersPage struct {
	Data  []User `json:"data"`
	Count int    `json:"count"`
}
