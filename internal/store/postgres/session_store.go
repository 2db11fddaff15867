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

// SessionStore implements store.SessionStore using PostgreSQL.
type SessionStore struct {
	pool *pgxpool.Pool
}

// NewSessionStore creates a new PostgreSQL-backed session store.
func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{
		pool: pool,
	}
}

const sessionColumns = `
	id, user_id, status, object,
	created_at, last_active_at, abandon_at, expire_at, updated_at,
	client_id, client_ip, user_agent
`

// Upsert stores the record, fully replacing any existing row with the same ID.
func (s *SessionStore) Upsert(ctx context.Context, record *models.SessionRecord) error {
	query := `
		INSERT INTO session_records (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			user_id        = EXCLUDED.user_id,
			status         = EXCLUDED.status,
			object         = EXCLUDED.object,
			created_at     = EXCLUDED.created_at,
			last_active_at = EXCLUDED.last_active_at,
			abandon_at     = EXCLUDED.abandon_at,
			expire_at      = EXCLUDED.expire_at,
			updated_at     = EXCLUDED.updated_at,
			client_id      = EXCLUDED.client_id,
			client_ip      = EXCLUDED.client_ip,
			user_agent     = EXCLUDED.user_agent
	`

	_, err := s.pool.Exec(ctx, query,
		record.ID,
		record.UserID,
		record.Status,
		record.Object,
		record.CreatedAt,
		record.LastActiveAt,
		record.AbandonAt,
		record.ExpireAt,
		record.UpdatedAt,
		record.ClientID,
		record.ClientIP,
		record.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert session record: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("session_id", record.ID).
		Str("user_id", record.UserID).
		Msg("Upserted session record")

	return nil
}

// Merge folds the record into any existing row with the same ID. Zero values
// in the incoming record leave the stored columns untouched. Merging against
// a missing ID inserts the record as given.
func (s *SessionStore) Merge(ctx context.Context, record *models.SessionRecord) error {
	query := `
		INSERT INTO session_records (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			user_id        = COALESCE(NULLIF(EXCLUDED.user_id, ''), session_records.user_id),
			status         = COALESCE(NULLIF(EXCLUDED.status, ''), session_records.status),
			object         = COALESCE(NULLIF(EXCLUDED.object, ''), session_records.object),
			created_at     = COALESCE(NULLIF(EXCLUDED.created_at, 0), session_records.created_at),
			last_active_at = COALESCE(NULLIF(EXCLUDED.last_active_at, 0), session_records.last_active_at),
			abandon_at     = COALESCE(NULLIF(EXCLUDED.abandon_at, 0), session_records.abandon_at),
			expire_at      = COALESCE(NULLIF(EXCLUDED.expire_at, 0), session_records.expire_at),
			updated_at     = COALESCE(NULLIF(EXCLUDED.updated_at, 0), session_records.updated_at),
			client_id      = COALESCE(NULLIF(EXCLUDED.client_id, ''), session_records.client_id),
			client_ip      = COALESCE(NULLIF(EXCLUDED.client_ip, ''), session_records.client_ip),
			user_agent     = COALESCE(NULLIF(EXCLUDED.user_agent, ''), session_records.user_agent)
	`

	_, err := s.pool.Exec(ctx, query,
		record.ID,
		record.UserID,
		record.Status,
		record.Object,
		record.CreatedAt,
		record.LastActiveAt,
		record.AbandonAt,
		record.ExpireAt,
		record.UpdatedAt,
		record.ClientID,
		record.ClientIP,
		record.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("failed to merge session record: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("session_id", record.ID).
		Str("status", record.Status).
		Msg("Merged session record")

	return nil
}

// Delete removes the record by ID. Missing rows are not an error.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM session_records WHERE id = $1`

	result, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete session record: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("session_id", id).
		Int64("rows", result.RowsAffected()).
		Msg("Deleted session record")

	return nil
}

// Get retrieves a record by ID.
func (s *SessionStore) Get(ctx context.Context, id string) (*models.SessionRecord, error) {
	query := `SELECT ` + sessionColumns + ` FROM session_records WHERE id = $1`

	record, err := scanSessionRecord(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session record: %w", mapPostgresError(err))
	}

	return record, nil
}

// List returns all session records ordered by ID.
func (s *SessionStore) List(ctx context.Context) ([]*models.SessionRecord, error) {
	query := `SELECT ` + sessionColumns + ` FROM session_records ORDER BY id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list session records: %w", mapPostgresError(err))
	}
	defer rows.Close()

	return collectSessionRecords(rows)
}

// ListByUser returns all session records owned by the given user, ordered by ID.
func (s *SessionStore) ListByUser(ctx context.Context, userID string) ([]*models.SessionRecord, error) {
	query := `SELECT ` + sessionColumns + ` FROM session_records WHERE user_id = $1 ORDER BY id`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list session records by user: %w", mapPostgresError(err))
	}
	defer rows.Close()

	return collectSessionRecords(rows)
}

func scanSessionRecord(row pgx.Row) (*models.SessionRecord, error) {
	var record models.SessionRecord
	err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.Status,
		&record.Object,
		&record.CreatedAt,
		&record.LastActiveAt,
		&record.AbandonAt,
		&record.ExpireAt,
		&record.UpdatedAt,
		&record.ClientID,
		&record.ClientIP,
		&record.UserAgent,
	)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func collectSessionRecords(rows pgx.Rows) ([]*models.SessionRecord, error) {
	var result []*models.SessionRecord
	for rows.Next() {
		record, err := scanSessionRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session record: %w", err)
		}
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read session records: %w", mapPostgresError(err))
	}
	return result, nil
}
