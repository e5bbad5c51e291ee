// Package friendship manages friend requests between users. An accepted
// friendship is two rows, one per direction.
package friendship

import (
	"context"
	"database/sql"

	"lending-engine/internal/common/database"
	apperrors "lending-engine/internal/common/errors"
	"lending-engine/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Store interface {
	Get(ctx context.Context, userID, friendID uuid.UUID) (*models.Friendship, error)
	Insert(ctx context.Context, f *models.Friendship) error
	// Accept marks the request requester→acceptor ACCEPTED and makes sure the
	// reverse row exists and is ACCEPTED too.
	Accept(ctx context.Context, requesterID, acceptorID uuid.UUID) error
	// DeleteBetween removes every row between a and b and reports how many went.
	DeleteBetween(ctx context.Context, a, b uuid.UUID) (int64, error)
	ListFriends(ctx context.Context, userID uuid.UUID, skip, limit int) (*models.UsersPage, error)
	ListIncoming(ctx context.Context, userID uuid.UUID, skip, limit int) (*models.UsersPage, error)
	ListOutgoing(ctx context.Context, userID uuid.UUID, skip, limit int) (*models.UsersPage, error)
}

type PostgresStore struct {
	pg *database.PostgresClient
}

func NewPostgresStore(pg *database.PostgresClient) *PostgresStore {
	return &PostgresStore{pg: pg}
}

func (s *PostgresStore) Get(ctx context.Context, userID, friendID uuid.UUID) (*models.Friendship, error) {
	var f models.Friendship
	err := s.pg.DB.GetContext(ctx, &f, `
		SELECT user_id, friend_id, status, created_at
		FROM friendships WHERE user_id = $1 AND friend_id = $2`, userID, friendID)
	if apperrors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("friendship", friendID)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("get friendship", err)
	}
	return &f, nil
}

func (s *PostgresStore) Insert(ctx context.Context, f *models.Friendship) error {
	_, err := s.pg.DB.ExecContext(ctx, `
		INSERT INTO friendships (user_id, friend_id, status, created_at)
		VALUES ($1, $2, $3, $4)`, f.UserID, f.FriendID, f.Status, f.CreatedAt)
	if err != nil {
		return apperrors.FromPQ("insert friendship", err, "Friendship already exists or request pending")
	}
	return nil
}

func (s *PostgresStore) Accept(ctx context.Context, requesterID, acceptorID uuid.UUID) error {
	err := s.pg.WithTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE friendships SET status = 'ACCEPTED'
			WHERE user_id = $1 AND friend_id = $2`, requesterID, acceptorID)
		if err != nil {
			return apperrors.NewStorageError("accept friendship", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return apperrors.NewStorageError("accept friendship", err)
		}
		if n == 0 {
			return apperrors.NewNotFoundError("friend request", requesterID)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO friendships (user_id, friend_id, status, created_at)
			VALUES ($1, $2, 'ACCEPTED', now())
			ON CONFLICT (user_id, friend_id) DO UPDATE SET status = 'ACCEPTED'`, acceptorID, requesterID)
		if err != nil {
			return apperrors.NewStorageError("accept friendship", err)
		}
		return nil
	})
	var stdErr *apperrors.StandardError
	if err != nil && !apperrors.As(err, &stdErr) {
		return apperrors.NewStorageError("accept friendship", err)
	}
	return err
}

func (s *PostgresStore) DeleteBetween(ctx context.Context, a, b uuid.UUID) (int64, error) {
	res, err := s.pg.DB.ExecContext(ctx, `
		DELETE FROM friendships
		WHERE (user_id = $1 AND friend_id = $2) OR (user_id = $2 AND friend_id = $1)`, a, b)
	if err != nil {
		return 0, apperrors.NewStorageError("delete friendship", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.NewStorageError("delete friendship", err)
	}
	return n, nil
}

const userColumns = `u.id, u.email, u.full_name, u.phone, u.is_superuser, u.is_active`

// ListFriends lists users with an accepted friendship from userID.
func (s *PostgresStore) ListFriends(ctx context.Context, userID uuid.UUID, skip, limit int) (*models.UsersPage, error) {
	return s.usersPage(ctx, "list friends", "f.friend_id", "f.user_id", models.FriendshipAccepted, userID, skip, limit)
}

// ListIncoming lists users who sent userID a pending request.
func (s *PostgresStore) ListIncoming(ctx context.Context, userID uuid.UUID, skip, limit int) (*models.UsersPage, error) {
	return s.usersPage(ctx, "list friend requests", "f.user_id", "f.friend_id", models.FriendshipPending, userID, skip, limit)
}

// ListOutgoing lists users userID has a pending request to.
func (s *PostgresStore) ListOutgoing(ctx context.Context, userID uuid.UUID, skip, limit int) (*models.UsersPage, error) {
	return s.usersPage(ctx, "list sent friend requests", "f.friend_id", "f.user_id", models.FriendshipPending, userID, skip, limit)
}

// usersPage joins users on joinCol for the friendship rows where matchCol is
// userID. Both column names are package constants.
func (s *PostgresStore) usersPage(ctx context.Context, op, joinCol, matchCol string, status models.FriendshipStatus, userID uuid.UUID, skip, limit int) (*models.UsersPage, error) {
	users := []models.User{}
	err := s.pg.DB.SelectContext(ctx, &users, `
		SELECT `+userColumns+`
		FROM friendships f JOIN users u ON u.id = `+joinCol+`
		WHERE `+matchCol+` = $1 AND f.status = $2
		ORDER BY f.created_at DESC, u.id
		OFFSET $3 LIMIT $4`, userID, status, skip, limit)
	if err != nil {
		return nil, apperrors.NewStorageError(op, err)
	}

	var count int
	err = s.pg.DB.GetContext(ctx, &count, `
		SELECT count(*) FROM friendships f
		WHERE `+matchCol+` = $1 AND f.status = $2`, userID, status)
	if err != nil {
		return nil, apperrors.NewStorageError(op, err)
	}
	return &models.UsersPage{Data: users, Count: count}, nil
}
