// internal/notification/mirror.go
package notification

import (
	"context"

	apperrors "lending-engine/internal/common/errors"
	"lending-engine/internal/common/logger"
	"lending-engine/internal/common/metrics"
	"lending-engine/internal/models"

	"github.com/google/uuid"
)

type EmailSender interface {
	SendText(ctx context.Context, to, subject, body string) (string, error)
}

type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) (string, error)
}

// UserLookup resolves contact details for a recipient.
type UserLookup interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// ContactMirror emails every notification and texts the urgent ones (WARNING and
// ERROR) to recipients with a phone number. Either sender may be nil.
type ContactMirror struct {
	users  UserLookup
	email  EmailSender
	sms    SMSSender
	logger logger.Logger
}

func NewContactMirror(users UserLookup, email EmailSender, sms SMSSender, log logger.Logger) *ContactMirror {
	return &ContactMirror{
		users:  users,
		email:  email,
		sms:    sms,
		logger: log.WithFields(map[string]interface{}{"component": "contact-mirror"}),
	}
}

func (m *ContactMirror) Mirror(ctx context.Context, n models.Notification) {
	if m.email == nil && m.sms == nil {
		return
	}

	user, err := m.users.GetUser(ctx, n.RecipientID)
	if err != nil {
		m.logger.Warn("Cannot mirror notification, recipient lookup failed", map[string]interface{}{
			"recipientId": n.RecipientID.String(),
			"error":       err.Error(),
		})
		return
	}
	if !user.IsActive {
		return
	}

	if m.email != nil && user.Email != "" {
		_, err := m.email.SendText(ctx, user.Email, n.Title, n.Message)
		m.record("email", n, err)
	}

	urgent := n.Severity == models.SeverityWarning || n.Severity == models.SeverityError
	if m.sms != nil && urgent && user.Phone != nil && *user.Phone != "" {
		_, err := m.sms.SendSMS(ctx, *user.Phone, n.Title+": "+n.Message)
		m.record("sms", n, err)
	}
}

func (m *ContactMirror) record(channel string, n models.Notification, err error) {
	if err != nil {
		metrics.MirrorDeliveries.WithLabelValues(channel, "failed").Inc()
		failure := apperrors.NewDeliveryFailureError(channel, err)
		m.logger.Warn("Notification mirror failed", map[string]interface{}{
			"notificationId": n.ID.String(),
			"channel":        channel,
			"error":          failure.Error(),
		})
		return
	}
	metrics.MirrorDeliveries.WithLabelValues(channel, "sent").Inc()
}
