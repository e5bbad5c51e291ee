// Package membership holds community memberships and answers who may act for a
// community.
package membership

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

const membersTable = "community_members"

var memberColumns = []interface{}{
	"community_id", "user_id", "role", "status", "notifications_enabled", "created_at",
}

// MemberFilter narrows ListUserIDs. Zero fields are unconstrained.
type MemberFilter struct {
	Role              models.MemberRole
	Status            models.MemberStatus
	NotificationsOnly bool
}

type Store interface {
	Get(ctx context.Context, communityID, userID uuid.UUID) (*models.CommunityMembership, error)
	Insert(ctx context.Context, m *models.CommunityMembership) error
	Update(ctx context.Context, communityID, userID uuid.UUID, upd models.MemberUpdate) (*models.CommunityMembership, error)
	Delete(ctx context.Context, communityID, userID uuid.UUID) error
	SetNotifications(ctx context.Context, communityID, userID uuid.UUID, enabled bool) error
	ListUserIDs(ctx context.Context, communityID uuid.UUID, filter MemberFilter) ([]uuid.UUID, error)
	AdminCommunityIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	InsertAnnouncement(ctx context.Context, a *models.Announcement) error
}

type PostgresStore struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db, dialect: goqu.Dialect("postgres")}
}

func (s *PostgresStore) Get(ctx context.Context, communityID, userID uuid.UUID) (*models.CommunityMembership, error) {
	var m models.CommunityMembership
	err := s.db.GetContext(ctx, &m, `
		SELECT community_id, user_id, role, status, notifications_enabled, created_at
		FROM community_members WHERE community_id = $1 AND user_id = $2`, communityID, userID)
	if apperrors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("membership", userID)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("get membership", err)
	}
	return &m, nil
}

func (s *PostgresStore) Insert(ctx context.Context, m *models.CommunityMembership) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO community_members (community_id, user_id, role, status, notifications_enabled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		m.CommunityID, m.UserID, m.Role, m.Status, m.NotificationsEnabled, m.CreatedAt,
	)
	if err != nil {
		return apperrors.FromPQ("insert membership", err, "membership already exists")
	}
	return nil
}

// Update sets only the fields present in upd and returns the stored row.
func (s *PostgresStore) Update(ctx context.Context, communityID, userID uuid.UUID, upd models.MemberUpdate) (*models.CommunityMembership, error) {
	rec := goqu.Record{}
	if upd.Role != nil {
		rec["role"] = string(*upd.Role)
	}
	if upd.Status != nil {
		rec["status"] = string(*upd.Status)
	}
	if len(rec) == 0 {
		return s.Get(ctx, communityID, userID)
	}

	query, args, err := s.dialect.Update(membersTable).
		Prepared(true).
		Set(rec).
		Where(
			goqu.C("community_id").Eq(communityID.String()),
			goqu.C("user_id").Eq(userID.String()),
		).
		Returning(memberColumns...).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	var m models.CommunityMembership
	err = s.db.GetContext(ctx, &m, query, args...)
	if apperrors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("membership", userID)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("update membership", err)
	}
	return &m, nil
}

// Delete removes the membership. Deleting an absent membership is not an error.
func (s *PostgresStore) Delete(ctx context.Context, communityID, userID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM community_members WHERE community_id = $1 AND user_id = $2`, communityID, userID)
	if err != nil {
		return apperrors.NewStorageError("delete membership", err)
	}
	return nil
}

func (s *PostgresStore) SetNotifications(ctx context.Context, communityID, userID uuid.UUID, enabled bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE community_members SET notifications_enabled = $3
		WHERE community_id = $1 AND user_id = $2`, communityID, userID, enabled)
	if err != nil {
		return apperrors.NewStorageError("set member notifications", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewStorageError("set member notifications", err)
	}
	if n == 0 {
		return apperrors.NewNotFoundError("membership", userID)
	}
	return nil
}

func (s *PostgresStore) ListUserIDs(ctx context.Context, communityID uuid.UUID, filter MemberFilter) ([]uuid.UUID, error) {
	conds := []goqu.Expression{goqu.C("community_id").Eq(communityID.String())}
	if filter.Role != "" {
		conds = append(conds, goqu.C("role").Eq(string(filter.Role)))
	}
	if filter.Status != "" {
		conds = append(conds, goqu.C("status").Eq(string(filter.Status)))
	}
	if filter.NotificationsOnly {
		conds = append(conds, goqu.C("notifications_enabled").IsTrue())
	}

	query, args, err := s.dialect.From(membersTable).
		Prepared(true).
		Select("user_id").
		Where(conds...).
		Order(goqu.C("created_at").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	ids := []uuid.UUID{}
	if err := s.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, apperrors.NewStorageError("list members", err)
	}
	return ids, nil
}

// AdminCommunityIDs lists the communities where userID is an accepted admin.
func (s *PostgresStore) AdminCommunityIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	err := s.db.SelectContext(ctx, &ids, `
		SELECT community_id FROM community_members
		WHERE user_id = $1 AND role = 'ADMIN' AND status = 'ACCEPTED'`, userID)
	if err != nil {
		return nil, apperrors.NewStorageError("list admin communities", err)
	}
	return ids, nil
}

func (s *PostgresStore) InsertAnnouncement(ctx context.Context, a *models.Announcement) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO community_announcements (id, community_id, author_id, title, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.CommunityID, a.AuthorID, a.Title, a.Content, a.CreatedAt,
	)
	if err != nil {
		return apperrors.NewStorageError("insert announcement", err)
	}
	return nil
}
