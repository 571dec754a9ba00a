// Package memory provides an in-memory Store for tests and local runs. A
// single mutex spans the marker reads and the writes, which gives CreateEntry
// the same all-or-nothing semantics the Postgres store gets from a
// transaction.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"waitlistd/internal/waitlist/models"
	"waitlistd/internal/waitlist/store"
)

type Store struct {
	mu      sync.RWMutex
	entries map[string]*models.WaitlistEntry
	markers map[string]models.UniquenessMarker
	order   []string
}

func New() *Store {
	return &Store{
		entries: make(map[string]*models.WaitlistEntry),
		markers: make(map[string]models.UniquenessMarker),
	}
}

func (s *Store) CreateEntry(_ context.Context, entry *models.WaitlistEntry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	emailKey := models.MarkerKey(models.MarkerKindEmail, entry.EmailHash)
	phoneKey := models.MarkerKey(models.MarkerKindPhone, entry.PhoneHash)

	// Email takes priority over phone when both slots are taken.
	if _, exists := s.markers[emailKey]; exists {
		return "", store.ErrEmailTaken
	}
	if _, exists := s.markers[phoneKey]; exists {
		return "", store.ErrPhoneTaken
	}

	id := uuid.NewString()
	persisted := *entry
	persisted.ID = id
	s.entries[id] = &persisted
	s.order = append(s.order, id)

	s.markers[emailKey] = models.UniquenessMarker{
		Type:        models.MarkerKindEmail,
		Hash:        entry.EmailHash,
		WaitlistRef: id,
		CreatedAt:   entry.CreatedAt,
	}
	s.markers[phoneKey] = models.UniquenessMarker{
		Type:        models.MarkerKindPhone,
		Hash:        entry.PhoneHash,
		WaitlistRef: id,
		CreatedAt:   entry.CreatedAt,
	}

	return id, nil
}

func (s *Store) ListEntries(_ context.Context, limit int) ([]*models.WaitlistEntry, error) {
	if limit < 0 {
		limit = 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.WaitlistEntry, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		entry := *s.entries[s.order[i]]
		out = append(out, &entry)
	}
	return out, nil
}

func (s *Store) CountEntries(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func (s *Store) Health(_ context.Context) error {
	return nil
}

// Marker exposes a stored marker for tests.
func (s *Store) Marker(kind, hash string) (models.UniquenessMarker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	marker, ok := s.markers[models.MarkerKey(kind, hash)]
	return marker, ok
}
