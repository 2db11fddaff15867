package memory

import (
	"context"
	"sync"

	"github.com/sessionwatch/sessionwatch/internal/models"
	"github.com/sessionwatch/sessionwatch/internal/store"
)

// ProfileStore implements store.ProfileStore using in-memory storage.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]*models.UserProfile
}

// NewProfileStore creates a new in-memory profile store.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		profiles: make(map[string]*models.UserProfile),
	}
}

// Put upserts a profile keyed by email.
func (s *ProfileStore) Put(ctx context.Context, profile *models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *profile
	s.profiles[profile.Email] = &clone
	return nil
}

// Get retrieves a profile by email.
func (s *ProfileStore) Get(ctx context.Context, email string) (*models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.profiles[email]
	if !ok {
		return nil, store.ErrProfileNotFound
	}

	clone := *profile
	return &clone, nil
}
