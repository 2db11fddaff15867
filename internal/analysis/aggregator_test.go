package analysis

import (
	"context"
	"testing"

	"github.com/sessionwatch/sessionwatch/internal/models"
	memorystore "github.com/sessionwatch/sessionwatch/internal/store/memory"
	"github.com/stretchr/testify/require"
)

func TestAggregator_Aggregate(t *testing.T) {
	ctx := context.Background()

	t.Run("projects records into samples", func(t *testing.T) {
		sessions := memorystore.NewSessionStore()
		require.NoError(t, sessions.Upsert(ctx, &models.SessionRecord{
			ID:           "sess_1",
			UserID:       "user_1",
			Status:       models.SessionStatusActive,
			CreatedAt:    100,
			LastActiveAt: 200,
			AbandonAt:    300,
			ClientID:     "client_1",
			ClientIP:     "192.0.2.1",
			UserAgent:    "Mozilla/5.0",
		}))
		require.NoError(t, sessions.Upsert(ctx, &models.SessionRecord{
			ID:           "sess_2",
			UserID:       "user_2",
			Status:       models.SessionStatusEnded,
			LastActiveAt: 400,
		}))

		samples, err := NewAggregator(sessions).Aggregate(ctx)
		require.NoError(t, err)
		require.Len(t, samples, 2)

		require.Equal(t, Sample{
			UserID:       "user_1",
			CreatedAt:    100,
			LastActiveAt: 200,
			AbandonAt:    300,
			Status:       models.SessionStatusActive,
			ClientIP:     "192.0.2.1",
			UserAgent:    "Mozilla/5.0",
		}, samples[0], "projection drops record-keeping fields like id and clientId")
	})

	t.Run("empty store signals no history", func(t *testing.T) {
		sessions := memorystore.NewSessionStore()

		_, err := NewAggregator(sessions).Aggregate(ctx)
		require.ErrorIs(t, err, ErrNoHistory)
	})
}
