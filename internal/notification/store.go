// Package notification persists per-user notifications and fans domain events out
// to their recipients.
package notification

import (
	"context"
	"database/sql"

	apperrors "lending-engine/internal/common/errors"
	"lending-engine/internal/models"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const notificationsTable = "notifications"

var notificationColumns = []interface{}{
	"id", "recipient_id", "title", "message", "severity", "is_read", "link", "created_at",
}

// Store is the persistence surface for notifications.
type Store interface {
	Insert(ctx context.Context, n *models.Notification) error
	Get(ctx context.Context, id uuid.UUID) (*models.Notification, error)
	List(ctx context.Context, recipientID uuid.UUID, skip, limit int) (*models.NotificationsPage, error)
	SetRead(ctx context.Context, id uuid.UUID) error
	MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type PostgresStore struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db, dialect: goqu.Dialect("postgres")}
}

func (s *PostgresStore) Insert(ctx context.Context, n *models.Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, recipient_id, title, message, severity, is_read, link, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		n.ID, n.RecipientID, n.Title, n.Message, n.Severity, n.IsRead, n.Link, n.CreatedAt,
	)
	if err != nil {
		return apperrors.FromPQ("insert notification", err, "notification already exists")
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*models.Notification, error) {
	var n models.Notification
	err := s.db.GetContext(ctx, &n, `
		SELECT id, recipient_id, title, message, severity, is_read, link, created_at
		FROM notifications WHERE id = $1`, id)
	if apperrors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("notification", id)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("get notification", err)
	}
	return &n, nil
}

// List returns newest first.
func (s *PostgresStore) List(ctx context.Context, recipientID uuid.UUID, skip, limit int) (*models.NotificationsPage, error) {
	query, args, err := s.dialect.From(notificationsTable).
		Prepared(true).
		Select(notificationColumns...).
		Where(goqu.C("recipient_id").Eq(recipientID.String())).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Desc()).
		Offset(uint(skip)).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	page := &models.NotificationsPage{Data: []models.Notification{}}
	if err := s.db.SelectContext(ctx, &page.Data, query, args...); err != nil {
		return nil, apperrors.NewStorageError("list notifications", err)
	}

	var counts struct {
		Count  int `db:"count"`
		Unread int `db:"unread_count"`
	}
	err = s.db.GetContext(ctx, &counts, `
		SELECT COUNT(*) AS count, COUNT(*) FILTER (WHERE NOT is_read) AS unread_count
		FROM notifications WHERE recipient_id = $1`, recipientID)
	if err != nil {
		return nil, apperrors.NewStorageError("count notifications", err)
	}
	page.Count = counts.Count
	page.UnreadCount = counts.Unread
	return page, nil
}

func (s *PostgresStore) SetRead(ctx context.Context, id uuid.UUID) error {
	return s.execOne(ctx, "mark notification read", id,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1`, id)
}

func (s *PostgresStore) MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE recipient_id = $1 AND is_read = FALSE`, recipientID)
	if err != nil {
		return 0, apperrors.NewStorageError("mark all notifications read", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.NewStorageError("mark all notifications read", err)
	}
	return n, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.execOne(ctx, "delete notification", id, `DELETE FROM notifications WHERE id = $1`, id)
}

func (s *PostgresStore) execOne(ctx context.Context, op string, id uuid.UUID, query string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewStorageError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewStorageError(op, err)
	}
	if n == 0 {
		return apperrors.NewNotFoundError("notification", id)
	}
	return nil
}
