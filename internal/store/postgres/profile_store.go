package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/sessionwatch/sessionwatch/internal/models"
	"github.com/sessionwatch/sessionwatch/internal/store"
)

// ProfileStore implements store.ProfileStore using PostgreSQL.
type ProfileStore struct {
	pool *pgxpool.Pool
}

// NewProfileStore creates a new PostgreSQL-backed profile store.
func NewProfileStore(pool *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{
		pool: pool,
	}
}

// Put upserts a profile keyed by email.
func (s *ProfileStore) Put(ctx context.Context, profile *models.UserProfile) error {
	query := `
		INSERT INTO user_profiles (email, name, avatar, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET
			name   = EXCLUDED.name,
			avatar = EXCLUDED.avatar,
			role   = EXCLUDED.role
	`

	_, err := s.pool.Exec(ctx, query, profile.Email, profile.Name, profile.Avatar, profile.Role)
	if err != nil {
		return fmt.Errorf("failed to put user profile: %w", mapPostgresError(err))
	}

	log.Debug().Str("email", profile.Email).Msg("Stored user profile")
	return nil
}

// Get retrieves a profile by email.
func (s *ProfileStore) Get(ctx context.Context, email string) (*models.UserProfile, error) {
	query := `SELECT email, name, avatar, role FROM user_profiles WHERE email = $1`

	var profile models.UserProfile
	err := s.pool.QueryRow(ctx, query, email).Scan(
		&profile.Email,
		&profile.Name,
		&profile.Avatar,
		&profile.Role,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get user profile: %w", mapPostgresError(err))
	}

	return &profile, nil
}
