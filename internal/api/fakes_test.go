// internal/api/fakes_test.go
package api

import (
	"context"
	"sync"

	apperrors "lending-engine/internal/common/errors"
	"lending-engine/internal/loan"
	"lending-engine/internal/models"
	"lending-engine/internal/notification"

	"github.com/google/uuid"
)

type fakeUsers map[uuid.UUID]*models.User

func (f fakeUsers) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, apperrors.NewNotFoundError("user", id)
}

type fakeLoans struct {
	mu    sync.Mutex
	loans map[uuid.UUID]models.Loan
}

func (f *fakeLoans) Get(_ context.Context, id uuid.UUID) (*models.Loan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.loans[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("loan", id)
	}
	return &l, nil
}

func (f *fakeLoans) Insert(_ context.Context, l *models.Loan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loans[l.ID] = *l
	return nil
}

func (f *fakeLoans) HasOpenLoan(_ context.Context, itemID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.loans {
		if l.ItemID == itemID && !l.Status.IsTerminal() {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLoans) Transition(_ context.Context, id uuid.UUID, from []models.LoanStatus, to models.LoanStatus) (*models.Loan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.loans[id]
	for _, s := range from {
		if l.Status == s {
			l.Status = to
			f.loans[id] = l
			return &l, nil
		}
	}
	return nil, apperrors.NewInvalidStateError("loan status changed concurrently")
}

func (f *fakeLoans) ListIncoming(context.Context, loan.IncomingQuery) (*models.LoansPage, error) {
	return &models.LoansPage{Data: []models.Loan{}}, nil
}

func (f *fakeLoans) ListOutgoing(_ context.Context, requesterID uuid.UUID, _, _ int) (*models.LoansPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	page := &models.LoansPage{Data: []models.Loan{}}
	for _, l := range f.loans {
		if l.RequesterID == requesterID {
			page.Data = append(page.Data, l)
			page.Count++
		}
	}
	return page, nil
}

type fakeItems map[uuid.UUID]*models.Item

func (f fakeItems) GetItem(_ context.Context, id uuid.UUID) (*models.Item, error) {
	if item, ok := f[id]; ok {
		return item, nil
	}
	return nil, apperrors.NewNotFoundError("item", id)
}

func (f fakeItems) IsPooled(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return false, nil
}

// noMembers is a membership authority with no communities at all.
type noMembers struct{}

func (noMembers) IsAdmin(context.Context, uuid.UUID, uuid.UUID) (bool, error)  { return false, nil }
func (noMembers) IsMember(context.Context, uuid.UUID, uuid.UUID) (bool, error) { return false, nil }
func (noMembers) ResolveAdmins(context.Context, uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}
func (noMembers) AdminCommunities(context.Context, uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, []uuid.UUID, notification.Message) ([]models.Notification, error) {
	return nil, nil
}

type fakeNotifications struct {
	mu   sync.Mutex
	rows map[uuid.UUID]models.Notification
}

func (f *fakeNotifications) Insert(_ context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[n.ID] = *n
	return nil
}

func (f *fakeNotifications) Get(_ context.Context, id uuid.UUID) (*models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.rows[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("notification", id)
	}
	return &n, nil
}

func (f *fakeNotifications) List(_ context.Context, recipientID uuid.UUID, _, _ int) (*models.NotificationsPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	page := &models.NotificationsPage{Data: []models.Notification{}}
	for _, n := range f.rows {
		if n.RecipientID != recipientID {
			continue
		}
		page.Data = append(page.Data, n)
		page.Count++
		if !n.IsRead {
			page.UnreadCount++
		}
	}
	return page, nil
}

func (f *fakeNotifications) SetRead(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.rows[id]
	n.IsRead = true
	f.rows[id] = n
	return nil
}

func (f *fakeNotifications) MarkAllRead(_ context.Context, recipientID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var updated int64
	for id, n := range f.rows {
		if n.RecipientID == recipientID && !n.IsRead {
			n.IsRead = true
			f.rows[id] = n
			updated++
		}
	}
	return updated, nil
}

func (f *fakeNotifications) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}
