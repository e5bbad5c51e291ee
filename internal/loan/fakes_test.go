// internal/loan/fakes_test.go
package loan

import (
	"context"
	"sort"
	"sync"

	apperrors "lending-engine/internal/common/errors"
	"lending-engine/internal/models"
	"lending-engine/internal/notification"

	"github.com/google/uuid"
)

// ===========================
// Loan store
// ===========================

type memoryStore struct {
	mu    sync.Mutex
	loans map[uuid.UUID]models.Loan
	order []uuid.UUID
}

func newMemoryStore() *memoryStore {
	return &memoryStore{loans: make(map[uuid.UUID]models.Loan)}
}

func (s *memoryStore) Get(_ context.Context, id uuid.UUID) (*models.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.loans[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("loan", id)
	}
	return &l, nil
}

func (s *memoryStore) Insert(_ context.Context, l *models.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loans[l.ID] = *l
	s.order = append(s.order, l.ID)
	return nil
}

func (s *memoryStore) HasOpenLoan(_ context.Context, itemID uuid.UUID) (bool, error) {
	return s.openCount(itemID) > 0, nil
}

func (s *memoryStore) openCount(itemID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.loans {
		if l.ItemID == itemID && !l.Status.IsTerminal() {
			n++
		}
	}
	return n
}

func (s *memoryStore) Transition(_ context.Context, id uuid.UUID, from []models.LoanStatus, to models.LoanStatus) (*models.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.loans[id]
	if !ok {
		return nil, apperrors.NewInvalidStateError("loan status changed concurrently")
	}
	for _, f := range from {
		if l.Status == f {
			l.Status = to
			s.loans[id] = l
			return &l, nil
		}
	}
	return nil, apperrors.NewInvalidStateError("loan status changed concurrently")
}

func (s *memoryStore) ListIncoming(_ context.Context, q IncomingQuery) (*models.LoansPage, error) {
	communities := make(map[uuid.UUID]bool, len(q.CommunityIDs))
	for _, id := range q.CommunityIDs {
		communities[id] = true
	}
	return s.filter(q.Skip, q.Limit, func(l models.Loan) bool {
		if l.RequesterID == q.ActorID {
			return false
		}
		return (l.OwnerID.Valid && l.OwnerID.UUID == q.ActorID) ||
			(l.CommunityID.Valid && communities[l.CommunityID.UUID])
	}), nil
}

func (s *memoryStore) ListOutgoing(_ context.Context, requesterID uuid.UUID, skip, limit int) (*models.LoansPage, error) {
	return s.filter(skip, limit, func(l models.Loan) bool { return l.RequesterID == requesterID }), nil
}

func (s *memoryStore) filter(skip, limit int, keep func(models.Loan) bool) *models.LoansPage {
	s.mu.Lock()
	defer s.mu.Unlock()
	page := &models.LoansPage{Data: []models.Loan{}}
	for i := len(s.order) - 1; i >= 0; i-- {
		l := s.loans[s.order[i]]
		if !keep(l) {
			continue
		}
		if page.Count >= skip && len(page.Data) < limit {
			page.Data = append(page.Data, l)
		}
		page.Count++
	}
	return page
}

// ===========================
// Directory and membership
// ===========================

type fakeItems struct {
	items  map[uuid.UUID]*models.Item
	pooled map[uuid.UUID]map[uuid.UUID]bool
}

func newFakeItems() *fakeItems {
	return &fakeItems{
		items:  make(map[uuid.UUID]*models.Item),
		pooled: make(map[uuid.UUID]map[uuid.UUID]bool),
	}
}

func (f *fakeItems) add(title string, owners ...uuid.UUID) *models.Item {
	item := &models.Item{ID: uuid.New(), Title: title, Owners: owners}
	f.items[item.ID] = item
	return item
}

func (f *fakeItems) pool(communityID, itemID uuid.UUID) {
	if f.pooled[communityID] == nil {
		f.pooled[communityID] = make(map[uuid.UUID]bool)
	}
	f.pooled[communityID][itemID] = true
}

func (f *fakeItems) GetItem(_ context.Context, id uuid.UUID) (*models.Item, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("item", id)
	}
	return item, nil
}

func (f *fakeItems) IsPooled(_ context.Context, communityID, itemID uuid.UUID) (bool, error) {
	return f.pooled[communityID][itemID], nil
}

type membership struct {
	role   models.MemberRole
	status models.MemberStatus
	seq    int
}

type fakeMembers struct {
	mu      sync.Mutex
	members map[uuid.UUID]map[uuid.UUID]membership
	seq     int
}

func newFakeMembers() *fakeMembers {
	return &fakeMembers{members: make(map[uuid.UUID]map[uuid.UUID]membership)}
}

func (f *fakeMembers) set(communityID, userID uuid.UUID, role models.MemberRole, status models.MemberStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.members[communityID] == nil {
		f.members[communityID] = make(map[uuid.UUID]membership)
	}
	f.seq++
	f.members[communityID][userID] = membership{role: role, status: status, seq: f.seq}
}

func (f *fakeMembers) get(communityID, userID uuid.UUID) (membership, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[communityID][userID]
	return m, ok
}

func (f *fakeMembers) IsAdmin(_ context.Context, communityID, userID uuid.UUID) (bool, error) {
	m, ok := f.get(communityID, userID)
	return ok && m.role == models.RoleAdmin && m.status == models.MemberStatusAccepted, nil
}

func (f *fakeMembers) IsMember(_ context.Context, communityID, userID uuid.UUID) (bool, error) {
	m, ok := f.get(communityID, userID)
	return ok && m.status == models.MemberStatusAccepted, nil
}

func (f *fakeMembers) ResolveAdmins(_ context.Context, communityID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	type ranked struct {
		id  uuid.UUID
		seq int
	}
	var admins []ranked
	for id, m := range f.members[communityID] {
		if m.role == models.RoleAdmin && m.status == models.MemberStatusAccepted {
			admins = append(admins, ranked{id, m.seq})
		}
	}
	sort.Slice(admins, func(i, j int) bool { return admins[i].seq < admins[j].seq })
	ids := make([]uuid.UUID, len(admins))
	for i, a := range admins {
		ids[i] = a.id
	}
	return ids, nil
}

func (f *fakeMembers) AdminCommunities(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for community, members := range f.members {
		if m, ok := members[userID]; ok && m.role == models.RoleAdmin && m.status == models.MemberStatusAccepted {
			ids = append(ids, community)
		}
	}
	return ids, nil
}

// ===========================
// Notifier and audit log
// ===========================

type delivered struct {
	recipient uuid.UUID
	msg       notification.Message
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []delivered
}

func (n *recordingNotifier) Notify(_ context.Context, recipients []uuid.UUID, msg notification.Message) ([]models.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]models.Notification, 0, len(recipients))
	for _, r := range recipients {
		n.sent = append(n.sent, delivered{r, msg})
		out = append(out, models.Notification{ID: uuid.New(), RecipientID: r, Title: msg.Title, Message: msg.Body})
	}
	return out, nil
}

func (n *recordingNotifier) titlesFor(recipient uuid.UUID) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var titles []string
	for _, d := range n.sent {
		if d.recipient == recipient {
			titles = append(titles, d.msg.Title)
		}
	}
	return titles
}

func (n *recordingNotifier) last() delivered {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[len(n.sent)-1]
}

type memoryAudit struct {
	mu     sync.Mutex
	events []models.LoanEvent
}

func (a *memoryAudit) Record(_ context.Context, ev models.LoanEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
	return nil
}

func (a *memoryAudit) History(_ context.Context, loanID uuid.UUID) ([]models.LoanEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := []models.LoanEvent{}
	for _, ev := range a.events {
		if ev.LoanID == loanID {
			out = append(out, ev)
		}
	}
	return out, nil
}
