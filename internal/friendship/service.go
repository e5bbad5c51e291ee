// internal/friendship/service.go
package friendship

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

const (
	DefaultPageSize = 100
	MaxPageSize     = 500
	friendsLink     = "/friends"
)

type Notifier interface {
	Notify(ctx context.Context, recipients []uuid.UUID, msg notification.Message) ([]models.Notification, error)
}

type UserLookup interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type Service struct {
	store    Store
	users    UserLookup
	notifier Notifier
	logger   logger.Logger
}

func NewService(store Store, users UserLookup, notifier Notifier, log logger.Logger) *Service {
	return &Service{
		store:    store,
		users:    users,
		notifier: notifier,
		logger:   log.WithFields(map[string]interface{}{"component": "friendship"}),
	}
}

// SendRequest creates a pending request from actor to friendID.
func (s *Service) SendRequest(ctx context.Context, actor models.Actor, friendID uuid.UUID) error {
	if actor.ID == friendID {
		return apperrors.NewValidationError("Cannot friend yourself", "friend_id equals the current user")
	}
	if _, err := s.users.GetUser(ctx, friendID); err != nil {
		return err
	}

	_, err := s.store.Get(ctx, actor.ID, friendID)
	switch {
	case err == nil:
		return apperrors.NewConflictError("Friendship already exists or request pending")
	case !apperrors.HasCode(err, apperrors.ErrCodeNotFound):
		return err
	}

	f := &models.Friendship{
		UserID:    actor.ID,
		FriendID:  friendID,
		Status:    models.FriendshipPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Insert(ctx, f); err != nil {
		return err
	}

	s.logger.Info("Friend request sent", map[string]interface{}{
		"userId":   actor.ID.String(),
		"friendId": friendID.String(),
	})
	s.notify(ctx, friendID, "New Friend Request",
		fmt.Sprintf("%s sent you a friend request.", actor.Name), models.SeverityInfo)
	return nil
}

// Accept accepts the pending request requesterID sent to actor. Accepting an
// already accepted friendship is a no-op.
func (s *Service) Accept(ctx context.Context, actor models.Actor, requesterID uuid.UUID) error {
	existing, err := s.store.Get(ctx, requesterID, actor.ID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
			return apperrors.NewNotFoundError("friend request", requesterID)
		}
		return err
	}

	if err := s.store.Accept(ctx, requesterID, actor.ID); err != nil {
		return err
	}
	if existing.Status == models.FriendshipAccepted {
		return nil
	}

	s.logger.Info("Friend request accepted", map[string]interface{}{
		"userId":   actor.ID.String(),
		"friendId": requesterID.String(),
	})
	s.notify(ctx, requesterID, "Friend Request Accepted",
		fmt.Sprintf("%s accepted your friend request.", actor.Name), models.SeveritySuccess)
	return nil
}

// Remove deletes a friendship or declines a request, in both directions.
func (s *Service) Remove(ctx context.Context, actor models.Actor, friendID uuid.UUID) error {
	n, err := s.store.DeleteBetween(ctx, actor.ID, friendID)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NewNotFoundError("friendship", friendID)
	}
	return nil
}

func (s *Service) ListFriends(ctx context.Context, actor models.Actor, skip, limit int) (*models.UsersPage, error) {
	skip, limit = clampPage(skip, limit)
	return s.store.ListFriends(ctx, actor.ID, skip, limit)
}

func (s *Service) ListIncoming(ctx context.Context, actor models.Actor, skip, limit int) (*models.UsersPage, error) {
	skip, limit = clampPage(skip, limit)
	return s.store.ListIncoming(ctx, actor.ID, skip, limit)
}

func (s *Service) ListOutgoing(ctx context.Context, actor models.Actor, skip, limit int) (*models.UsersPage, error) {
	skip, limit = clampPage(skip, limit)
	return s.store.ListOutgoing(ctx, actor.ID, skip, limit)
}

func (s *Service) notify(ctx context.Context, recipient uuid.UUID, title, body string, severity models.Severity) {
	link := friendsLink
	_, err := s.notifier.Notify(ctx, []uuid.UUID{recipient}, notification.Message{
		Title:    title,
		Body:     body,
		Severity: severity,
		Link:     &link,
	})
	if err != nil {
		s.logger.Error("Friendship notification fanout failed", map[string]interface{}{
			"recipientId": recipient.String(),
			"title":       title,
			"error":       err.Error(),
		})
	}
}

func clampPage(skip, limit int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return skip, limit
}
