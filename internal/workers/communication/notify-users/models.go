// internal/workers/communication/notify-users/models.go
package notifyusers

import (
	"github.com/google/uuid"
)

type Input struct {
	RecipientIDs []uuid.UUID `json:"recipientIds"`
	Title        string      `json:"title"`
	Message      string      `json:"message"`
	Severity     string      `json:"severity,omitempty"`
	Link         *string     `json:"link,omitempty"`
}

type Output struct {
	NotificationIDs []string `json:"notificationIds"`
	Delivered       int      `json:"notificationsDelivered"`
	Failed          int      `json:"notificationsFailed"`
}
