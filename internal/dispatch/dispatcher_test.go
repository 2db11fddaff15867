package dispatch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sessionwatch/sessionwatch/internal/models"
	"github.com/sessionwatch/sessionwatch/internal/store"
	memorystore "github.com/sessionwatch/sessionwatch/internal/store/memory"
	"github.com/stretchr/testify/require"
)

type countingTrigger struct {
	fired int
}

func (c *countingTrigger) TriggerAnalysis() {
	c.fired++
}

func parseEvent(t *testing.T, body string) *models.WebhookEvent {
	t.Helper()
	evt, err := models.ParseWebhookEvent([]byte(body))
	require.NoError(t, err)
	return evt
}

func createdEvent(t *testing.T) *models.WebhookEvent {
	return parseEvent(t, `{
		"type": "session.created",
		"data": {
			"id": "sess_1", "user_id": "user_1", "object": "session", "status": "active",
			"created_at": 100, "last_active_at": 200, "abandon_at": 300,
			"expire_at": 400, "updated_at": 200, "client_id": "client_1"
		},
		"event_attributes": {"http_request": {"client_ip": "198.51.100.7", "user_agent": "curl/8.0"}}
	}`)
}

func TestDispatcher_Dispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("session created upserts full record", func(t *testing.T) {
		sessions := memorystore.NewSessionStore()
		trigger := &countingTrigger{}
		d := NewDispatcher(sessions, trigger)

		require.NoError(t, d.Dispatch(ctx, createdEvent(t)))

		record, err := sessions.Get(ctx, "sess_1")
		require.NoError(t, err)
		require.Equal(t, "user_1", record.UserID)
		require.Equal(t, "active", record.Status)
		require.Equal(t, int64(200), record.LastActiveAt)
		require.Equal(t, "198.51.100.7", record.ClientIP)
		require.Equal(t, "curl/8.0", record.UserAgent)
		require.Equal(t, 1, trigger.fired)
	})

	t.Run("duplicate created event is idempotent", func(t *testing.T) {
		sessions := memorystore.NewSessionStore()
		d := NewDispatcher(sessions, nil)

		require.NoError(t, d.Dispatch(ctx, createdEvent(t)))
		require.NoError(t, d.Dispatch(ctx, createdEvent(t)))

		records, err := sessions.List(ctx)
		require.NoError(t, err)
		require.Len(t, records, 1)
		require.Equal(t, "sess_1", records[0].ID)
	})

	t.Run("session ended merges without erasing client metadata", func(t *testing.T) {
		sessions := memorystore.NewSessionStore()
		d := NewDispatcher(sessions, nil)

		require.NoError(t, d.Dispatch(ctx, createdEvent(t)))

		// Ended event with no http_request attributes
		ended := parseEvent(t, `{
			"type": "session.ended",
			"data": {
				"id": "sess_1", "user_id": "user_1", "object": "session", "status": "ended",
				"updated_at": 500
			}
		}`)
		require.NoError(t, d.Dispatch(ctx, ended))

		record, err := sessions.Get(ctx, "sess_1")
		require.NoError(t, err)
		require.Equal(t, "ended", record.Status)
		require.Equal(t, int64(500), record.UpdatedAt)
		require.Equal(t, "198.51.100.7", record.ClientIP, "merge must not erase stored clientIp")
		require.Equal(t, int64(200), record.LastActiveAt, "merge must not erase stored timestamps")
	})

	t.Run("session revoked deletes record", func(t *testing.T) {
		sessions := memorystore.NewSessionStore()
		d := NewDispatcher(sessions, nil)

		require.NoError(t, d.Dispatch(ctx, createdEvent(t)))

		revoked := parseEvent(t, `{
			"type": "session.revoked",
			"data": {"id": "sess_1", "user_id": "user_1", "status": "revoked"}
		}`)
		require.NoError(t, d.Dispatch(ctx, revoked))

		_, err := sessions.Get(ctx, "sess_1")
		require.ErrorIs(t, err, store.ErrSessionNotFound)
	})

	t.Run("revoking unknown session succeeds", func(t *testing.T) {
		sessions := memorystore.NewSessionStore()
		trigger := &countingTrigger{}
		d := NewDispatcher(sessions, trigger)

		revoked := parseEvent(t, `{
			"type": "session.revoked",
			"data": {"id": "sess_missing", "status": "revoked"}
		}`)
		require.NoError(t, d.Dispatch(ctx, revoked))
		require.Equal(t, 1, trigger.fired)

		records, err := sessions.List(ctx)
		require.NoError(t, err)
		require.Empty(t, records)
	})

	t.Run("unhandled event type is a no-op", func(t *testing.T) {
		sessions := memorystore.NewSessionStore()
		trigger := &countingTrigger{}
		d := NewDispatcher(sessions, trigger)

		unhandled := parseEvent(t, `{"type": "user.updated", "data": {"id": "user_1"}}`)
		require.NoError(t, d.Dispatch(ctx, unhandled))
		require.Equal(t, 0, trigger.fired, "unhandled events must not trigger analysis")

		records, err := sessions.List(ctx)
		require.NoError(t, err)
		require.Empty(t, records)
	})
}

func TestParseWebhookEvent(t *testing.T) {
	t.Run("session event without id rejected", func(t *testing.T) {
		_, err := models.ParseWebhookEvent([]byte(`{"type": "session.created", "data": {"user_id": "user_1"}}`))
		require.Error(t, err)
	})

	t.Run("malformed envelope rejected", func(t *testing.T) {
		_, err := models.ParseWebhookEvent([]byte(`{"type": ["not", "a", "string"]}`))
		require.Error(t, err)
	})

	t.Run("record normalizes provider field names", func(t *testing.T) {
		evt := createdEvent(t)
		record := evt.Record()

		raw, err := json.Marshal(record)
		require.NoError(t, err)
		require.Contains(t, string(raw), `"lastActiveAt":200`)
		require.Contains(t, string(raw), `"clientIp":"198.51.100.7"`)
	})
}
