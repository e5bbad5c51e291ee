// internal/models/notification.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeveritySuccess Severity = "SUCCESS"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeveritySuccess, SeverityWarning, SeverityError:
		return true
	}
	return false
}

// Notification is one message for exactly one recipient.
type Notification struct {
	ID          uuid.UUID `db:"id" json:"id"`
	RecipientID uuid.UUID `db:"recipient_id" json:"recipient_id"`
	Title       string    `db:"title" json:"title"`
	Message     string    `db:"message" json:"message"`
	Severity    Severity  `db:"severity" json:"type"`
	IsRead      bool      `db:"is_read" json:"is_read"`
	Link        *string   `db:"link" json:"link,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// NotificationsPage is one page of a recipient's notifications.
type NotificationsPage struct {
	Data        []Notification `json:"data"`
	Count       int            `json:"count"`
	UnreadCount int            `json:"unread_count"`
}
