// internal/models/directory.go
package models

import (
	"github.com/google/uuid"
)

// User is the subset of the account record the engine reads.
type User struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Email       string    `db:"email" json:"email"`
	FullName    *string   `db:"full_name" json:"full_name,omitempty"`
	Phone       *string   `db:"phone" json:"-"`
	IsSuperuser bool      `db:"is_superuser" json:"is_superuser"`
	IsActive    bool      `db:"is_active" json:"is_active"`
}

// DisplayName prefers the full name and falls back to the email address.
func (u User) DisplayName() string {
	if u.FullName != nil && *u.FullName != "" {
		return *u.FullName
	}
	return u.Email
}

// Actor is the authenticated identity performing an action.
type Actor struct {
	ID          uuid.UUID
	Name        string
	IsSuperuser bool
}

func ActorFromUser(u User) Actor {
	return Actor{ID: u.ID, Name: u.DisplayName(), IsSuperuser: u.IsSuperuser}
}

// Item is a physical item with zero or more personal owners. Owners are ordered by
// the time they were linked; the first one handles personal loan requests.
type Item struct {
	ID     uuid.UUID   `db:"id" json:"id"`
	Title  string      `db:"title" json:"title"`
	Owners []uuid.UUID `db:"-" json:"owners"`
}

func (i Item) IsOwner(userID uuid.UUID) bool {
	for _, o := range i.Owners {
		if o == userID {
			return true
		}
	}
	return false
}

// PrimaryOwner returns the first personal owner.
func (i Item) PrimaryOwner() (uuid.UUID, bool) {
	if len(i.Owners) == 0 {
		return uuid.Nil, false
	}
	return i.Owners[0], true
}

type Community struct {
	ID       uuid.UUID `db:"id" json:"id"`
	Name     string    `db:"name" json:"name"`
	IsClosed bool      `db:"is_closed" json:"is_closed"`
}
