// internal/membership/fakes_test.go
package membership

import (
	"context"
	"sort"
	"sync"

	apperrors "lending-engine/internal/common/errors"
	"lending-engine/internal/models"
	"lending-engine/internal/notification"

	"github.com/google/uuid"
)

type memberKey struct {
	community uuid.UUID
	user      uuid.UUID
}

type memoryStore struct {
	mu            sync.Mutex
	rows          map[memberKey]models.CommunityMembership
	announcements []models.Announcement
	seq           int
	order         map[memberKey]int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		rows:  make(map[memberKey]models.CommunityMembership),
		order: make(map[memberKey]int),
	}
}

func (s *memoryStore) put(m models.CommunityMembership) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := memberKey{m.CommunityID, m.UserID}
	s.rows[k] = m
	s.seq++
	s.order[k] = s.seq
}

func (s *memoryStore) Get(_ context.Context, communityID, userID uuid.UUID) (*models.CommunityMembership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[memberKey{communityID, userID}]
	if !ok {
		return nil, apperrors.NewNotFoundError("membership", userID)
	}
	return &m, nil
}

func (s *memoryStore) Insert(_ context.Context, m *models.CommunityMembership) error {
	s.mu.Lock()
	k := memberKey{m.CommunityID, m.UserID}
	if _, ok := s.rows[k]; ok {
		s.mu.Unlock()
		return apperrors.NewConflictError("membership already exists")
	}
	s.mu.Unlock()
	s.put(*m)
	return nil
}

func (s *memoryStore) Update(_ context.Context, communityID, userID uuid.UUID, upd models.MemberUpdate) (*models.CommunityMembership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := memberKey{communityID, userID}
	m, ok := s.rows[k]
	if !ok {
		return nil, apperrors.NewNotFoundError("membership", userID)
	}
	if upd.Role != nil {
		m.Role = *upd.Role
	}
	if upd.Status != nil {
		m.Status = *upd.Status
	}
	s.rows[k] = m
	return &m, nil
}

func (s *memoryStore) Delete(_ context.Context, communityID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, memberKey{communityID, userID})
	return nil
}

func (s *memoryStore) SetNotifications(_ context.Context, communityID, userID uuid.UUID, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := memberKey{communityID, userID}
	m, ok := s.rows[k]
	if !ok {
		return apperrors.NewNotFoundError("membership", userID)
	}
	m.NotificationsEnabled = enabled
	s.rows[k] = m
	return nil
}

func (s *memoryStore) ListUserIDs(_ context.Context, communityID uuid.UUID, f MemberFilter) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	type ranked struct {
		id   uuid.UUID
		rank int
	}
	var hits []ranked
	for k, m := range s.rows {
		if k.community != communityID {
			continue
		}
		if f.Role != "" && m.Role != f.Role {
			continue
		}
		if f.Status != "" && m.Status != f.Status {
			continue
		}
		if f.NotificationsOnly && !m.NotificationsEnabled {
			continue
		}
		hits = append(hits, ranked{k.user, s.order[k]})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].rank < hits[j].rank })
	ids := make([]uuid.UUID, len(hits))
	for i, h := range hits {
		ids[i] = h.id
	}
	return ids, nil
}

func (s *memoryStore) AdminCommunityIDs(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uuid.UUID
	for k, m := range s.rows {
		if k.user == userID && m.Role == models.RoleAdmin && m.Status == models.MemberStatusAccepted {
			ids = append(ids, k.community)
		}
	}
	return ids, nil
}

func (s *memoryStore) InsertAnnouncement(_ context.Context, a *models.Announcement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.announcements = append(s.announcements, *a)
	return nil
}

type communities map[uuid.UUID]*models.Community

func (c communities) GetCommunity(_ context.Context, id uuid.UUID) (*models.Community, error) {
	if community, ok := c[id]; ok {
		return community, nil
	}
	return nil, apperrors.NewNotFoundError("community", id)
}

type sentMessage struct {
	recipient uuid.UUID
	msg       notification.Message
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (n *recordingNotifier) Notify(_ context.Context, recipients []uuid.UUID, msg notification.Message) ([]models.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []models.Notification
	for _, r := range recipients {
		n.sent = append(n.sent, sentMessage{r, msg})
		out = append(out, models.Notification{ID: uuid.New(), RecipientID: r, Title: msg.Title})
	}
	return out, nil
}

func (n *recordingNotifier) to(recipient uuid.UUID) []notification.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notification.Message
	for _, s := range n.sent {
		if s.recipient == recipient {
			out = append(out, s.msg)
		}
	}
	return out
}

func (n *recordingNotifier) total() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}
