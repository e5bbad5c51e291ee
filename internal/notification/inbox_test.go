// internal/notification/inbox_test.go
package notification

import (
	"context"
	"testing"
	"time"

	apperrors "lending-engine/internal/common/errors"
	"lending-engine/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, store *memoryStore, recipient uuid.UUID, n int) []models.Notification {
	t.Helper()
	var out []models.Notification
	base := time.Now().UTC()
	for i := 0; i < n; i++ {
		row := models.Notification{
			ID:          uuid.New(),
			RecipientID: recipient,
			Title:       "t",
			Message:     "m",
			Severity:    models.SeverityInfo,
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, store.Insert(context.Background(), &row))
		out = append(out, row)
	}
	return out
}

func TestInbox_ListNewestFirstWithCounts(t *testing.T) {
	store := newMemoryStore()
	inbox := NewInbox(store)
	actor := models.Actor{ID: uuid.New()}
	rows := seed(t, store, actor.ID, 3)
	seed(t, store, uuid.New(), 2)

	page, err := inbox.List(context.Background(), actor, 0, 2)
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	assert.Equal(t, rows[2].ID, page.Data[0].ID)
	assert.Equal(t, 3, page.Count)
	assert.Equal(t, 3, page.UnreadCount)

	_, err = inbox.MarkRead(context.Background(), actor, rows[0].ID)
	require.NoError(t, err)

	page, err = inbox.List(context.Background(), actor, -5, 0)
	require.NoError(t, err)
	assert.Len(t, page.Data, 3)
	assert.Equal(t, 2, page.UnreadCount)
}

func TestInbox_OnlyRecipientMayMutate(t *testing.T) {
	store := newMemoryStore()
	inbox := NewInbox(store)
	owner := models.Actor{ID: uuid.New()}
	other := models.Actor{ID: uuid.New()}
	row := seed(t, store, owner.ID, 1)[0]

	_, err := inbox.MarkRead(context.Background(), other, row.ID)
	assert.Equal(t, apperrors.ErrCodePermissionDenied, apperrors.CodeOf(err))

	err = inbox.Delete(context.Background(), other, row.ID)
	assert.Equal(t, apperrors.ErrCodePermissionDenied, apperrors.CodeOf(err))

	err = inbox.Delete(context.Background(), owner, uuid.New())
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.CodeOf(err))

	require.NoError(t, inbox.Delete(context.Background(), owner, row.ID))
	assert.Empty(t, store.forRecipient(owner.ID))
}

func TestInbox_MarkAllRead(t *testing.T) {
	store := newMemoryStore()
	inbox := NewInbox(store)
	actor := models.Actor{ID: uuid.New()}
	seed(t, store, actor.ID, 4)
	other := uuid.New()
	seed(t, store, other, 1)

	n, err := inbox.MarkAllRead(context.Background(), actor)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	page, err := store.List(context.Background(), other, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, page.UnreadCount)
}
