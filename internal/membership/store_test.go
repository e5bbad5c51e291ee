// internal/membership/store_test.go
package membership

import (
	"context"
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

var memberRowColumns = []string{"community_id", "user_id", "role", "status", "notifications_enabled", "created_at"}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(sqlx.NewDb(db, "postgres")), mock
}

func TestPostgresStore_Update_OnlyProvidedFields(t *testing.T) {
	store, mock := newMockStore(t)
	community, user := uuid.New(), uuid.New()
	status := models.MemberStatusAccepted

	mock.ExpectQuery(`UPDATE "community_members" SET "status"=\$1 WHERE \(\("community_id" = \$2\) AND \("user_id" = \$3\)\) RETURNING`).
		WithArgs("ACCEPTED", community.String(), user.String()).
		WillReturnRows(sqlmock.NewRows(memberRowColumns).
			AddRow(community.String(), user.String(), "MEMBER", "ACCEPTED", true, time.Now()))

	m, err := store.Update(context.Background(), community, user, models.MemberUpdate{Status: &status})

	require.NoError(t, err)
	assert.Equal(t, models.MemberStatusAccepted, m.Status)
	assert.Equal(t, models.RoleMember, m.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Update_NotFound(t *testing.T) {
	store, mock := newMockStore(t)
	role := models.RoleAdmin

	mock.ExpectQuery(`UPDATE "community_members" SET "role"=\$1`).
		WillReturnRows(sqlmock.NewRows(memberRowColumns))

	_, err := store.Update(context.Background(), uuid.New(), uuid.New(), models.MemberUpdate{Role: &role})
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.CodeOf(err))
}

func TestPostgresStore_Insert_Duplicate(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`INSERT INTO community_members`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "community_members_pkey"})

	err := store.Insert(context.Background(), &models.CommunityMembership{CommunityID: uuid.New(), UserID: uuid.New()})
	assert.Equal(t, apperrors.ErrCodeConflict, apperrors.CodeOf(err))
}

func TestPostgresStore_ListUserIDs_Filters(t *testing.T) {
	store, mock := newMockStore(t)
	community := uuid.New()
	a, b := uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT "user_id" FROM "community_members" WHERE \(\("community_id" = \$1\) AND \("status" = \$2\) AND \("notifications_enabled" IS TRUE\)\)`).
		WithArgs(community.String(), "ACCEPTED").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(a.String()).AddRow(b.String()))

	ids, err := store.ListUserIDs(context.Background(), community, MemberFilter{
		Status:            models.MemberStatusAccepted,
		NotificationsOnly: true,
	})

	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a, b}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetNotifications_NotMember(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE community_members SET notifications_enabled`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.SetNotifications(context.Background(), uuid.New(), uuid.New(), false)
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.CodeOf(err))
}
