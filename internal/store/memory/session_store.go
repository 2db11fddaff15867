package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/sessionwatch/sessionwatch/internal/models"
	"github.com/sessionwatch/sessionwatch/internal/store"
)

// SessionStore implements store.SessionStore using in-memory storage.
// Data is lost on restart; intended for development and testing.
type SessionStore struct {
	mu      sync.RWMutex
	records map[string]*models.SessionRecord
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		records: make(map[string]*models.SessionRecord),
	}
}

// Upsert stores the record, replacing any existing record with the same ID.
func (s *SessionStore) Upsert(ctx context.Context, record *models.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Clone to avoid external modifications
	clone := *record
	s.records[record.ID] = &clone

	return nil
}

// Merge folds the record into any existing record with the same ID. Zero
// values in the incoming record leave the stored fields untouched. A merge
// against a missing ID behaves like an upsert.
func (s *SessionStore) Merge(ctx context.Context, record *models.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[record.ID]
	if !ok {
		clone := *record
		s.records[record.ID] = &clone
		return nil
	}

	merged := *existing
	mergeString(&merged.UserID, record.UserID)
	mergeString(&merged.Status, record.Status)
	mergeString(&merged.Object, record.Object)
	mergeString(&merged.ClientID, record.ClientID)
	mergeString(&merged.ClientIP, record.ClientIP)
	mergeString(&merged.UserAgent, record.UserAgent)
	mergeInt64(&merged.CreatedAt, record.CreatedAt)
	mergeInt64(&merged.LastActiveAt, record.LastActiveAt)
	mergeInt64(&merged.AbandonAt, record.AbandonAt)
	mergeInt64(&merged.ExpireAt, record.ExpireAt)
	mergeInt64(&merged.UpdatedAt, record.UpdatedAt)

	s.records[record.ID] = &merged
	return nil
}

// Delete removes the record by ID. Missing records are not an error.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, id)
	return nil
}

// Get retrieves a record by ID.
func (s *SessionStore) Get(ctx context.Context, id string) (*models.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return nil, store.ErrSessionNotFound
	}

	clone := *record
	return &clone, nil
}

// List returns all records ordered by ID for deterministic iteration.
func (s *SessionStore) List(ctx context.Context) ([]*models.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.SessionRecord, 0, len(s.records))
	for _, record := range s.records {
		clone := *record
		result = append(result, &clone)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ListByUser returns all records owned by the given user, ordered by ID.
func (s *SessionStore) ListByUser(ctx context.Context, userID string) ([]*models.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.SessionRecord
	for _, record := range s.records {
		if record.UserID != userID {
			continue
		}
		clone := *record
		result = append(result, &clone)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func mergeString(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

func mergeInt64(dst *int64, src int64) {
	if src != 0 {
		*dst = src
	}
}
