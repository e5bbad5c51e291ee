// internal/loan/capabilities.go
package loan

import (
	"context"

	apperrors "lending-engine/internal/common/errors"
	"lending-engine/internal/models"

	"github.com/google/uuid"
)

// AdminChecker answers whether a user is an accepted admin of a community.
type AdminChecker interface {
	IsAdmin(ctx context.Context, communityID, userID uuid.UUID) (bool, error)
}

// Capabilities is what an actor may do with one loan.
type Capabilities struct {
	IsRequester        bool
	IsResponsibleParty bool
	IsSuperuser        bool
}

// CanRespond gates Respond and ConfirmReturn.
func (c Capabilities) CanRespond() bool {
	return c.IsSuperuser || c.IsResponsibleParty
}

// CanActAsRequester gates Ratify and SignalReturn. Only the borrower can confirm
// they received or returned the item, so superusers get no override here.
func (c Capabilities) CanActAsRequester() bool {
	return c.IsRequester
}

// CanView reports whether the actor is a party to the loan.
func (c Capabilities) CanView() bool {
	return c.IsSuperuser || c.IsRequester || c.IsResponsibleParty
}

// ResolveCapabilities computes the actor's capabilities for l. The responsible
// party is the personal owner or an accepted admin of the pooling community. A
// requester is never the responsible party for their own loan unless they are a
// superuser.
func ResolveCapabilities(ctx context.Context, admins AdminChecker, l *models.Loan, actor models.Actor) (Capabilities, error) {
	caps := Capabilities{
		IsRequester: l.RequesterID == actor.ID,
		IsSuperuser: actor.IsSuperuser,
	}
	if actor.IsSuperuser {
		caps.IsResponsibleParty = true
		return caps, nil
	}
	if caps.IsRequester {
		return caps, nil
	}

	authority, err := l.Authority()
	if err != nil {
		return Capabilities{}, apperrors.NewInternalError(err)
	}
	if owner, ok := authority.OwnerID(); ok {
		caps.IsResponsibleParty = owner == actor.ID
		return caps, nil
	}
	community, _ := authority.CommunityID()
	isAdmin, err := admins.IsAdmin(ctx, community, actor.ID)
	if err != nil {
		return Capabilities{}, err
	}
	caps.IsResponsibleParty = isAdmin
	return caps, nil
}
