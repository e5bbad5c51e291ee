// internal/notification/fakes_test.go
package notification

import (
	"context"
	"sort"
	"sync"

	apperrors "lending-engine/internal/common/errors"
	"lending-engine/internal/models"

	"github.com/google/uuid"
)

// memoryStore is an in-memory Store.
type memoryStore struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]models.Notification
	InsertErr func(n *models.Notification) error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: make(map[uuid.UUID]models.Notification)}
}

func (s *memoryStore) Insert(_ context.Context, n *models.Notification) error {
	if s.InsertErr != nil {
		if err := s.InsertErr(n); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[n.ID] = *n
	return nil
}

func (s *memoryStore) Get(_ context.Context, id uuid.UUID) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.rows[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("notification", id)
	}
	return &n, nil
}

func (s *memoryStore) List(_ context.Context, recipientID uuid.UUID, skip, limit int) (*models.NotificationsPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	page := &models.NotificationsPage{Data: []models.Notification{}}
	var all []models.Notification
	for _, n := range s.rows {
		if n.RecipientID != recipientID {
			continue
		}
		all = append(all, n)
		if !n.IsRead {
			page.UnreadCount++
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	page.Count = len(all)
	for i := skip; i < len(all) && i < skip+limit; i++ {
		page.Data = append(page.Data, all[i])
	}
	return page, nil
}

func (s *memoryStore) SetRead(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.rows[id]
	if !ok {
		return apperrors.NewNotFoundError("notification", id)
	}
	n.IsRead = true
	s.rows[id] = n
	return nil
}

func (s *memoryStore) MarkAllRead(_ context.Context, recipientID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var changed int64
	for id, n := range s.rows {
		if n.RecipientID == recipientID && !n.IsRead {
			n.IsRead = true
			s.rows[id] = n
			changed++
		}
	}
	return changed, nil
}

func (s *memoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return apperrors.NewNotFoundError("notification", id)
	}
	delete(s.rows, id)
	return nil
}

func (s *memoryStore) forRecipient(id uuid.UUID) []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, n := range s.rows {
		if n.RecipientID == id {
			out = append(out, n)
		}
	}
	return out
}

type recordingPusher struct {
	mu     sync.Mutex
	pushes map[uuid.UUID]int
}

func newRecordingPusher() *recordingPusher {
	return &recordingPusher{pushes: make(map[uuid.UUID]int)}
}

func (p *recordingPusher) Push(_ context.Context, userID uuid.UUID, _ []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes[userID]++
}

func (p *recordingPusher) count(userID uuid.UUID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pushes[userID]
}
