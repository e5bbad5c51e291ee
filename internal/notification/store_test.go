// internal/notification/store_test.go
package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "lending-engine/internal/common/errors"
	"lending-engine/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var notificationRowColumns = []string{
	"id", "recipient_id", "title", "message", "severity", "is_read", "link", "created_at",
}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(sqlx.NewDb(db, "postgres")), mock
}

func TestPostgresStore_Insert(t *testing.T) {
	store, mock := newMockStore(t)
	n := &models.Notification{
		ID:          uuid.New(),
		RecipientID: uuid.New(),
		Title:       "New Loan Request",
		Message:     "Alice wants to borrow 'Drill'.",
		Severity:    models.SeverityInfo,
		CreatedAt:   time.Now().UTC(),
	}

	mock.ExpectExec(`INSERT INTO notifications`).
		WithArgs(n.ID, n.RecipientID, n.Title, n.Message, n.Severity, false, nil, n.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.Insert(context.Background(), n))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Insert_StorageError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`INSERT INTO notifications`).WillReturnError(errors.New("connection reset"))

	err := store.Insert(context.Background(), &models.Notification{ID: uuid.New()})
	assert.Equal(t, apperrors.ErrCodeStorage, apperrors.CodeOf(err))
}

func TestPostgresStore_Insert_UniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`INSERT INTO notifications`).WillReturnError(&pq.Error{Code: "23505"})

	err := store.Insert(context.Background(), &models.Notification{ID: uuid.New()})
	assert.Equal(t, apperrors.ErrCodeConflict, apperrors.CodeOf(err))
}

func TestPostgresStore_Get_NotFound(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	mock.ExpectQuery(`SELECT (.+) FROM notifications WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(notificationRowColumns))

	_, err := store.Get(context.Background(), id)
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_List(t *testing.T) {
	store, mock := newMockStore(t)
	recipient := uuid.New()
	now := time.Now().UTC()
	link := "/loans"

	mock.ExpectQuery(`SELECT (.+) FROM "notifications" WHERE \("recipient_id" = \$1\) ORDER BY "created_at" DESC, "id" DESC`).
		WillReturnRows(sqlmock.NewRows(notificationRowColumns).
			AddRow(uuid.New().String(), recipient.String(), "Return Confirmed", "Bob confirmed receipt of 'Drill'.", "SUCCESS", false, link, now).
			AddRow(uuid.New().String(), recipient.String(), "New Loan Request", "Alice wants to borrow 'Drill'.", "INFO", true, nil, now.Add(-time.Hour)))
	mock.ExpectQuery(`SELECT COUNT\(\*\) AS count`).
		WithArgs(recipient).
		WillReturnRows(sqlmock.NewRows([]string{"count", "unread_count"}).AddRow(7, 3))

	page, err := store.List(context.Background(), recipient, 0, 2)

	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "Return Confirmed", page.Data[0].Title)
	assert.Equal(t, models.SeveritySuccess, page.Data[0].Severity)
	require.NotNil(t, page.Data[0].Link)
	assert.Equal(t, "/loans", *page.Data[0].Link)
	assert.Nil(t, page.Data[1].Link)
	assert.Equal(t, 7, page.Count)
	assert.Equal(t, 3, page.UnreadCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetRead_NotFound(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	mock.ExpectExec(`UPDATE notifications SET is_read = TRUE WHERE id = \$1`).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.SetRead(context.Background(), id)
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.CodeOf(err))
}

func TestPostgresStore_MarkAllRead(t *testing.T) {
	store, mock := newMockStore(t)
	recipient := uuid.New()
	mock.ExpectExec(`UPDATE notifications SET is_read = TRUE WHERE recipient_id = \$1`).
		WithArgs(recipient).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := store.MarkAllRead(context.Background(), recipient)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestPostgresStore_Delete(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	mock.ExpectExec(`DELETE FROM notifications WHERE id = \$1`).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, store.Delete(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}
