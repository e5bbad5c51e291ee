// internal/notification/inbox.go
package notification

import (
	"context"

	apperrors "lending-engine/internal/common/errors"
	"lending-engine/internal/models"

	"github.com/google/uuid"
)

const (
	DefaultPageSize = 100
	MaxPageSize     = 500
)

// Inbox is the recipient-facing view of the store. Only the recipient may read,
// mark or delete their notifications.
type Inbox struct {
	store Store
}

func NewInbox(store Store) *Inbox {
	return &Inbox{store: store}
}

func (i *Inbox) List(ctx context.Context, actor models.Actor, skip, limit int) (*models.NotificationsPage, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return i.store.List(ctx, actor.ID, skip, limit)
}

func (i *Inbox) MarkRead(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Notification, error) {
	n, err := i.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if n.IsRead {
		return n, nil
	}
	if err := i.store.SetRead(ctx, id); err != nil {
		return nil, err
	}
	n.IsRead = true
	return n, nil
}

func (i *Inbox) MarkAllRead(ctx context.Context, actor models.Actor) (int64, error) {
	return i.store.MarkAllRead(ctx, actor.ID)
}

func (i *Inbox) Delete(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	if _, err := i.owned(ctx, actor, id); err != nil {
		return err
	}
	return i.store.Delete(ctx, id)
}

func (i *Inbox) owned(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Notification, error) {
	n, err := i.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.RecipientID != actor.ID {
		return nil, apperrors.NewPermissionDeniedError("notification belongs to another user")
	}
	return n, nil
}
