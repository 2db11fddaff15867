package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/sessionwatch/sessionwatch/internal/models"
	"github.com/sessionwatch/sessionwatch/internal/store"
	"github.com/stretchr/testify/require"
)

func testRecord(id, userID string) *models.SessionRecord {
	return &models.SessionRecord{
		ID:           id,
		UserID:       userID,
		Status:       models.SessionStatusActive,
		Object:       "session",
		CreatedAt:    100,
		LastActiveAt: 200,
		AbandonAt:    300,
		ExpireAt:     400,
		UpdatedAt:    200,
		ClientID:     "client_1",
		ClientIP:     "192.0.2.1",
		UserAgent:    "Mozilla/5.0",
	}
}

func TestSessionStore_Upsert(t *testing.T) {
	ctx := context.Background()

	t.Run("upsert stores record", func(t *testing.T) {
		s := NewSessionStore()

		require.NoError(t, s.Upsert(ctx, testRecord("sess_1", "user_1")))

		record, err := s.Get(ctx, "sess_1")
		require.NoError(t, err)
		require.Equal(t, "user_1", record.UserID)
	})

	t.Run("upsert replaces existing record", func(t *testing.T) {
		s := NewSessionStore()

		require.NoError(t, s.Upsert(ctx, testRecord("sess_1", "user_1")))

		replacement := testRecord("sess_1", "user_1")
		replacement.Status = models.SessionStatusEnded
		replacement.ClientIP = ""
		require.NoError(t, s.Upsert(ctx, replacement))

		record, err := s.Get(ctx, "sess_1")
		require.NoError(t, err)
		require.Equal(t, models.SessionStatusEnded, record.Status)
		require.Empty(t, record.ClientIP, "upsert is a full replace")
	})

	t.Run("upsert is idempotent", func(t *testing.T) {
		s := NewSessionStore()

		require.NoError(t, s.Upsert(ctx, testRecord("sess_1", "user_1")))
		require.NoError(t, s.Upsert(ctx, testRecord("sess_1", "user_1")))

		records, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, records, 1)
	})

	t.Run("stored record is a copy", func(t *testing.T) {
		s := NewSessionStore()

		record := testRecord("sess_1", "user_1")
		require.NoError(t, s.Upsert(ctx, record))
		record.Status = "mutated"

		stored, err := s.Get(ctx, "sess_1")
		require.NoError(t, err)
		require.Equal(t, models.SessionStatusActive, stored.Status)
	})
}

func TestSessionStore_Merge(t *testing.T) {
	ctx := context.Background()

	t.Run("merge keeps stored fields when incoming is zero", func(t *testing.T) {
		s := NewSessionStore()

		require.NoError(t, s.Upsert(ctx, testRecord("sess_1", "user_1")))

		update := &models.SessionRecord{
			ID:        "sess_1",
			Status:    models.SessionStatusEnded,
			UpdatedAt: 500,
		}
		require.NoError(t, s.Merge(ctx, update))

		record, err := s.Get(ctx, "sess_1")
		require.NoError(t, err)
		require.Equal(t, models.SessionStatusEnded, record.Status)
		require.Equal(t, int64(500), record.UpdatedAt)
		require.Equal(t, "192.0.2.1", record.ClientIP)
		require.Equal(t, "Mozilla/5.0", record.UserAgent)
		require.Equal(t, int64(200), record.LastActiveAt)
	})

	t.Run("merge against missing id inserts record", func(t *testing.T) {
		s := NewSessionStore()

		update := &models.SessionRecord{ID: "sess_new", Status: models.SessionStatusEnded}
		require.NoError(t, s.Merge(ctx, update))

		record, err := s.Get(ctx, "sess_new")
		require.NoError(t, err)
		require.Equal(t, models.SessionStatusEnded, record.Status)
	})
}

func TestSessionStore_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("delete removes record", func(t *testing.T) {
		s := NewSessionStore()

		require.NoError(t, s.Upsert(ctx, testRecord("sess_1", "user_1")))
		require.NoError(t, s.Delete(ctx, "sess_1"))

		_, err := s.Get(ctx, "sess_1")
		require.ErrorIs(t, err, store.ErrSessionNotFound)
	})

	t.Run("delete of missing record is not an error", func(t *testing.T) {
		s := NewSessionStore()
		require.NoError(t, s.Delete(ctx, "sess_missing"))
	})
}

func TestSessionStore_List(t *testing.T) {
	ctx := context.Background()

	t.Run("list returns all records ordered by id", func(t *testing.T) {
		s := NewSessionStore()

		require.NoError(t, s.Upsert(ctx, testRecord("sess_b", "user_1")))
		require.NoError(t, s.Upsert(ctx, testRecord("sess_a", "user_2")))

		records, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, records, 2)
		require.Equal(t, "sess_a", records[0].ID)
		require.Equal(t, "sess_b", records[1].ID)
	})

	t.Run("list by user filters by owner", func(t *testing.T) {
		s := NewSessionStore()

		require.NoError(t, s.Upsert(ctx, testRecord("sess_1", "user_1")))
		require.NoError(t, s.Upsert(ctx, testRecord("sess_2", "user_2")))
		require.NoError(t, s.Upsert(ctx, testRecord("sess_3", "user_1")))

		records, err := s.ListByUser(ctx, "user_1")
		require.NoError(t, err)
		require.Len(t, records, 2)
		for _, record := range records {
			require.Equal(t, "user_1", record.UserID)
		}
	})

	t.Run("empty store lists no records", func(t *testing.T) {
		s := NewSessionStore()

		records, err := s.List(ctx)
		require.NoError(t, err)
		require.Empty(t, records)
	})
}

func TestSessionStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, s.Upsert(ctx, testRecord("sess_1", "user_1")))
			require.NoError(t, s.Merge(ctx, &models.SessionRecord{ID: "sess_1", UpdatedAt: 999}))
			_, _ = s.List(ctx)
		}()
	}
	wg.Wait()

	records, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
}
