// internal/notification/dispatcher.go
package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "lending-engine/internal/common/errors"
	"lending-engine/internal/common/logger"
	"lending-engine/internal/common/metrics"
	"lending-engine/internal/models"
	"lending-engine/internal/push"

	"github.com/google/uuid"
)

// NewNotificationSignal is the only thing a live connection receives. Clients
// re-fetch their notifications on receipt.
var NewNotificationSignal = []byte(`{"type":"new_notification"}`)

const defaultDeliveryTimeout = 10 * time.Second

// Message is the content of one fanout.
type Message struct {
	Title    string
	Body     string
	Severity models.Severity
	Link     *string
}

// Mirror copies a persisted notification to another channel such as email.
type Mirror interface {
	Mirror(ctx context.Context, n models.Notification)
}

// Writer is the part of Store the dispatcher needs.
type Writer interface {
	Insert(ctx context.Context, n *models.Notification) error
}

// Dispatcher persists one notification per recipient and then signals the
// recipient's live connections. Persistence is awaited; delivery is not.
type Dispatcher struct {
	store           Writer
	pusher          push.Pusher
	mirrors         []Mirror
	logger          logger.Logger
	deliveryTimeout time.Duration
	wg              sync.WaitGroup
}

func NewDispatcher(store Writer, pusher push.Pusher, log logger.Logger, mirrors ...Mirror) *Dispatcher {
	return &Dispatcher{
		store:           store,
		pusher:          pusher,
		mirrors:         mirrors,
		logger:          log.WithFields(map[string]interface{}{"component": "dispatcher"}),
		deliveryTimeout: defaultDeliveryTimeout,
	}
}

// Notify writes msg for every distinct recipient. A storage failure skips only that
// recipient; the returned error joins every such failure. The notifications that
// were written are returned either way.
func (d *Dispatcher) Notify(ctx context.Context, recipients []uuid.UUID, msg Message) ([]models.Notification, error) {
	if msg.Severity == "" {
		msg.Severity = models.SeverityInfo
	}
	if !msg.Severity.Valid() {
		return nil, apperrors.NewValidationError("invalid notification severity", string(msg.Severity))
	}

	var (
		persisted []models.Notification
		failures  []error
	)
	for _, recipient := range dedupe(recipients) {
		n := models.Notification{
			ID:          uuid.New(),
			RecipientID: recipient,
			Title:       msg.Title,
			Message:     msg.Body,
			Severity:    msg.Severity,
			Link:        msg.Link,
			CreatedAt:   time.Now().UTC(),
		}
		if err := d.store.Insert(ctx, &n); err != nil {
			metrics.NotificationsFailed.Inc()
			d.logger.Error("Failed to persist notification", map[string]interface{}{
				"recipientId": recipient.String(),
				"title":       msg.Title,
				"error":       err.Error(),
			})
			failures = append(failures, fmt.Errorf("recipient %s: %w", recipient, err))
			continue
		}
		metrics.NotificationsPersisted.Inc()
		persisted = append(persisted, n)
		d.deliver(ctx, n)
	}

	if len(failures) > 0 {
		return persisted, apperrors.NewStorageError("notify", apperrors.Join(failures...)).
			WithMetadata("failedRecipients", len(failures))
	}
	return persisted, nil
}

// deliver runs the push and mirrors detached from the caller's context so that a
// finished request does not cancel them.
func (d *Dispatcher) deliver(ctx context.Context, n models.Notification) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.deliveryTimeout)
		defer cancel()

		d.pusher.Push(dctx, n.RecipientID, NewNotificationSignal)
		for _, m := range d.mirrors {
			m.Mirror(dctx, n)
		}
	}()
}

// Wait blocks until every in-flight delivery has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Except returns ids without exclude.
func Except(ids []uuid.UUID, exclude uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id != exclude {
			out = append(out, id)
		}
	}
	return out
}
