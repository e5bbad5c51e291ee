// internal/membership/authority.go
package membership

import (
	"context"

	apperrors "lending-engine/internal/common/errors"
	"lending-engine/internal/models"

	"github.com/google/uuid"
)

// Authority answers role questions from membership rows. Only ACCEPTED memberships
// carry authority; a PENDING admin row grants nothing.
type Authority struct {
	store Store
}

func NewAuthority(store Store) *Authority {
	return &Authority{store: store}
}

// HasRole reports whether userID holds role (any role when empty) in communityID
// with the given status.
func (a *Authority) HasRole(ctx context.Context, communityID, userID uuid.UUID, role models.MemberRole, status models.MemberStatus) (bool, error) {
	m, err := a.store.Get(ctx, communityID, userID)
	if apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if m.Status != status {
		return false, nil
	}
	return role == "" || m.Role == role, nil
}

func (a *Authority) IsAdmin(ctx context.Context, communityID, userID uuid.UUID) (bool, error) {
	return a.HasRole(ctx, communityID, userID, models.RoleAdmin, models.MemberStatusAccepted)
}

func (a *Authority) IsMember(ctx context.Context, communityID, userID uuid.UUID) (bool, error) {
	return a.HasRole(ctx, communityID, userID, "", models.MemberStatusAccepted)
}

// ResolveAdmins lists the accepted admins of a community.
func (a *Authority) ResolveAdmins(ctx context.Context, communityID uuid.UUID) ([]uuid.UUID, error) {
	return a.store.ListUserIDs(ctx, communityID, MemberFilter{
		Role:   models.RoleAdmin,
		Status: models.MemberStatusAccepted,
	})
}

// ResolveSubscribers lists accepted members who have community notifications on.
func (a *Authority) ResolveSubscribers(ctx context.Context, communityID uuid.UUID) ([]uuid.UUID, error) {
	return a.store.ListUserIDs(ctx, communityID, MemberFilter{
		Status:            models.MemberStatusAccepted,
		NotificationsOnly: true,
	})
}

// AdminCommunities lists the communities userID administers.
func (a *Authority) AdminCommunities(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return a.store.AdminCommunityIDs(ctx, userID)
}
