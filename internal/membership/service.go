// internal/membership/service.go
package membership

import (
	"context"
	"fmt"
	"time"

	apperrors "lending-engine/internal/common/errors"
	"lending-engine/internal/common/logger"
	"lending-engine/internal/models"
	"lending-engine/internal/notification"

	"github.com/google/uuid"
)

// Notifier fans a message out to recipients.
type Notifier interface {
	Notify(ctx context.Context, recipients []uuid.UUID, msg notification.Message) ([]models.Notification, error)
}

type CommunityLookup interface {
	GetCommunity(ctx context.Context, id uuid.UUID) (*models.Community, error)
}

type Service struct {
	store       Store
	authority   *Authority
	communities CommunityLookup
	notifier    Notifier
	logger      logger.Logger
}

func NewService(store Store, authority *Authority, communities CommunityLookup, notifier Notifier, log logger.Logger) *Service {
	return &Service{
		store:       store,
		authority:   authority,
		communities: communities,
		notifier:    notifier,
		logger:      log.WithFields(map[string]interface{}{"component": "membership"}),
	}
}

// Join creates the actor's membership: ACCEPTED for open communities, PENDING for
// closed ones. Admins of a closed community are told about the request.
func (s *Service) Join(ctx context.Context, communityID uuid.UUID, actor models.Actor) (*models.CommunityMembership, error) {
	community, err := s.communities.GetCommunity(ctx, communityID)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.Get(ctx, communityID, actor.ID)
	switch {
	case err == nil:
		return nil, existingMembershipError(existing.Status)
	case !apperrors.HasCode(err, apperrors.ErrCodeNotFound):
		return nil, err
	}

	m := NewMembership(community, actor.ID)
	if err := s.store.Insert(ctx, m); err != nil {
		return nil, err
	}

	s.logger.Info("Member joined community", map[string]interface{}{
		"communityId": communityID.String(),
		"userId":      actor.ID.String(),
		"status":      string(m.Status),
	})

	if community.IsClosed {
		admins, err := s.authority.ResolveAdmins(ctx, communityID)
		if err != nil {
			s.logFanoutError("join", communityID, err)
			return m, nil
		}
		s.fanout(ctx, "join", communityID, notification.Except(admins, actor.ID), notification.Message{
			Title:    "New Join Request",
			Body:     fmt.Sprintf("%s wants to join %s.", actor.Name, community.Name),
			Severity: models.SeverityInfo,
			Link:     communityLink(communityID),
		})
	}
	return m, nil
}

// NewMembership builds the row a join creates. The status depends only on whether
// the community is closed.
func NewMembership(community *models.Community, userID uuid.UUID) *models.CommunityMembership {
	status := models.MemberStatusAccepted
	if community.IsClosed {
		status = models.MemberStatusPending
	}
	return &models.CommunityMembership{
		CommunityID:          community.ID,
		UserID:               userID,
		Role:                 models.RoleMember,
		Status:               status,
		NotificationsEnabled: true,
		CreatedAt:            time.Now().UTC(),
	}
}

// UpdateMember changes a member's role and/or status. The actor must be an
// accepted admin of the community or a superuser.
func (s *Service) UpdateMember(ctx context.Context, communityID, targetID uuid.UUID, actor models.Actor, upd models.MemberUpdate) (*models.CommunityMembership, error) {
	if upd.Empty() {
		return nil, apperrors.NewValidationError("nothing to update", "role or status is required")
	}
	community, err := s.communities.GetCommunity(ctx, communityID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAdmin(ctx, communityID, actor, "only community admins can update members"); err != nil {
		return nil, err
	}

	prior, err := s.store.Get(ctx, communityID, targetID)
	if err != nil {
		return nil, err
	}
	m, err := s.store.Update(ctx, communityID, targetID, upd)
	if err != nil {
		return nil, err
	}

	// only changes are announced; repeating an update stays silent
	switch {
	case upd.Status != nil && *upd.Status == models.MemberStatusAccepted && prior.Status != models.MemberStatusAccepted:
		s.fanout(ctx, "update-member", communityID, []uuid.UUID{targetID}, notification.Message{
			Title:    "Community Request Accepted",
			Body:     fmt.Sprintf("You are now a member of %s.", community.Name),
			Severity: models.SeveritySuccess,
			Link:     communityLink(communityID),
		})
	case upd.Role != nil && *upd.Role != prior.Role:
		s.fanout(ctx, "update-member", communityID, []uuid.UUID{targetID}, notification.Message{
			Title:    "Community Role Updated",
			Body:     fmt.Sprintf("Your role in %s has been updated to %s.", community.Name, *upd.Role),
			Severity: models.SeverityInfo,
			Link:     communityLink(communityID),
		})
	}
	return m, nil
}

// Leave removes targetID from the community. Removing someone else requires admin
// rights. Leaving a community one is not in is a no-op.
func (s *Service) Leave(ctx context.Context, communityID, targetID uuid.UUID, actor models.Actor) error {
	if _, err := s.communities.GetCommunity(ctx, communityID); err != nil {
		return err
	}
	if targetID == uuid.Nil {
		targetID = actor.ID
	}
	if targetID != actor.ID {
		if err := s.requireAdmin(ctx, communityID, actor, "only community admins can remove members"); err != nil {
			return err
		}
	}
	return s.store.Delete(ctx, communityID, targetID)
}

func (s *Service) SetNotifications(ctx context.Context, communityID uuid.UUID, actor models.Actor, enabled bool) error {
	return s.store.SetNotifications(ctx, communityID, actor.ID, enabled)
}

// Announce stores an announcement and notifies every subscribed member except the
// author.
func (s *Service) Announce(ctx context.Context, communityID uuid.UUID, actor models.Actor, title, content string) (*models.Announcement, error) {
	community, err := s.communities.GetCommunity(ctx, communityID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAdmin(ctx, communityID, actor, "only admins can create announcements"); err != nil {
		return nil, err
	}

	a := &models.Announcement{
		ID:          uuid.New(),
		CommunityID: communityID,
		AuthorID:    actor.ID,
		Title:       title,
		Content:     content,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.InsertAnnouncement(ctx, a); err != nil {
		return nil, err
	}

	subscribers, err := s.authority.ResolveSubscribers(ctx, communityID)
	if err != nil {
		s.logFanoutError("announce", communityID, err)
		return a, nil
	}
	s.fanout(ctx, "announce", communityID, notification.Except(subscribers, actor.ID), notification.Message{
		Title:    fmt.Sprintf("New Announcement in %s", community.Name),
		Body:     title,
		Severity: models.SeverityInfo,
		Link:     communityLink(communityID),
	})
	return a, nil
}

func (s *Service) requireAdmin(ctx context.Context, communityID uuid.UUID, actor models.Actor, msg string) error {
	if actor.IsSuperuser {
		return nil
	}
	ok, err := s.authority.IsAdmin(ctx, communityID, actor.ID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewPermissionDeniedError(msg)
	}
	return nil
}

func (s *Service) fanout(ctx context.Context, op string, communityID uuid.UUID, recipients []uuid.UUID, msg notification.Message) {
	if _, err := s.notifier.Notify(ctx, recipients, msg); err != nil {
		s.logFanoutError(op, communityID, err)
	}
}

func (s *Service) logFanoutError(op string, communityID uuid.UUID, err error) {
	s.logger.Error("Community notification fanout failed", map[string]interface{}{
		"operation":   op,
		"communityId": communityID.String(),
		"error":       err.Error(),
	})
}

func existingMembershipError(status models.MemberStatus) error {
	switch status {
	case models.MemberStatusPending:
		return apperrors.NewConflictError("join request already pending")
	case models.MemberStatusRejected:
		return apperrors.NewConflictError("join request was rejected")
	default:
		return apperrors.NewConflictError("already a member of this community")
	}
}

func communityLink(id uuid.UUID) *string {
	link := "/communities/" + id.String()
	return &link
}
