package store

import (
	"context"
	"errors"

	"github.com/sessionwatch/sessionwatch/internal/models"
)

// Sentinel errors for common error conditions
var (
	ErrSessionNotFound = errors.New("session record not found")
	ErrProfileNotFound = errors.New("user profile not found")
)

// SessionStore is the durable keyed store for session records. Records are
// keyed by the provider-issued session ID; the event dispatcher is the only
// writer and the history aggregator reads via List.
type SessionStore interface {
	// Upsert stores the record, fully replacing any existing record with
	// the same ID.
	Upsert(ctx context.Context, record *models.SessionRecord) error

	// Merge stores the record, leaving stored fields untouched where the
	// incoming record carries a zero value for them.
	Merge(ctx context.Context, record *models.SessionRecord) error

	// Delete removes the record by ID. Deleting a record that does not
	// exist is not an error.
	Delete(ctx context.Context, id string) error

	// Get retrieves a single record by ID, returning ErrSessionNotFound
	// when absent.
	Get(ctx context.Context, id string) (*models.SessionRecord, error)

	// List returns all session records.
	List(ctx context.Context) ([]*models.SessionRecord, error)

	// ListByUser returns all session records owned by the given user.
	ListByUser(ctx context.Context, userID string) ([]*models.SessionRecord, error)
}

// ProfileStore holds per-owner account profiles keyed by email.
type ProfileStore interface {
	// Put upserts a profile by its email key.
	Put(ctx context.Context, profile *models.UserProfile) error

	// Get retrieves a profile by email, returning ErrProfileNotFound
	// when absent.
	Get(ctx context.Context, email string) (*models.UserProfile, error)
}
