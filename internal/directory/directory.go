// Package directory reads the reference data the lending engine depends on: users,
// items with their owners, and communities.
package directory

import (
	"context"
	"database/sql"

	apperrors "lending-engine/internal/common/errors"
	"lending-engine/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Directory struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Directory {
	return &Directory{db: db}
}

func (d *Directory) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := d.db.GetContext(ctx, &u, `
		SELECT id, email, full_name, phone, is_superuser, is_active
		FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, notFoundOr("user", id, err)
	}
	return &u, nil
}

// GetItem loads an item and its personal owners in the order they were linked.
func (d *Directory) GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	var item models.Item
	if err := d.db.GetContext(ctx, &item, `SELECT id, title FROM items WHERE id = $1`, id); err != nil {
		return nil, notFoundOr("item", id, err)
	}

	item.Owners = []uuid.UUID{}
	err := d.db.SelectContext(ctx, &item.Owners, `
		SELECT user_id FROM item_owners
		WHERE item_id = $1
		ORDER BY linked_at, user_id`, id)
	if err != nil {
		return nil, apperrors.NewStorageError("get item owners", err)
	}
	return &item, nil
}

func (d *Directory) GetCommunity(ctx context.Context, id uuid.UUID) (*models.Community, error) {
	var c models.Community
	err := d.db.GetContext(ctx, &c, `SELECT id, name, is_closed FROM communities WHERE id = $1`, id)
	if err != nil {
		return nil, notFoundOr("community", id, err)
	}
	return &c, nil
}

// IsPooled reports whether item is shared into community.
func (d *Directory) IsPooled(ctx context.Context, communityID, itemID uuid.UUID) (bool, error) {
	var exists bool
	err := d.db.GetContext(ctx, &exists, `
		SELECT EXISTS (SELECT 1 FROM community_items WHERE community_id = $1 AND item_id = $2)`,
		communityID, itemID)
	if err != nil {
		return false, apperrors.NewStorageError("check community item", err)
	}
	return exists, nil
}

func notFoundOr(entity string, id uuid.UUID, err error) error {
	if apperrors.Is(err, sql.ErrNoRows) {
		return apperrors.NewNotFoundError(entity, id)
	}
	return apperrors.NewStorageError("get "+entity, err)
}
