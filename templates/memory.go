package templates

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps templates in process. Used by tests and when no database path is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   []Template
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) Save(_ context.Context, t *Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	if t.ID == 0 {
		t.ID = s.nextID
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	if t.Version == 0 {
		t.Version = 1
	}
	s.rows = append(s.rows, *t)
	return nil
}

func (s *MemoryStore) FindActive(_ context.Context, typ Type) (*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *Template
	for i := range s.rows {
		row := s.rows[i]
		if row.Type != typ || !row.Active {
			continue
		}
		if found == nil || row.newerThan(*found) {
			copied := row
			found = &copied
		}
	}
	return found, nil
}

// Deactivate marks every template of typ inactive.
func (s *MemoryStore) Deactivate(_ context.Context, typ Type) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		if s.rows[i].Type == typ {
			s.rows[i].Active = false
		}
	}
	return nil
}
