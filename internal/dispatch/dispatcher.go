package dispatch

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sessionwatch/sessionwatch/internal/models"
	"github.com/sessionwatch/sessionwatch/internal/store"
)

// AnalysisTrigger kicks the downstream anomaly-analysis pass. Implementations
// must never block; the trigger is advisory and its outcome is observed only
// by logging.
type AnalysisTrigger interface {
	TriggerAnalysis()
}

// NoopTrigger satisfies AnalysisTrigger without doing anything. Used when
// the analysis pipeline is disabled.
type NoopTrigger struct{}

func (NoopTrigger) TriggerAnalysis() {}

// Dispatcher maps verified provider events onto session store mutations.
// It is the only writer of session records. Each event produces exactly one
// store mutation; after a successful mutation of a recognized session event
// the analysis trigger fires.
type Dispatcher struct {
	sessions store.SessionStore
	trigger  AnalysisTrigger
}

// NewDispatcher creates a dispatcher over the given session store.
func NewDispatcher(sessions store.SessionStore, trigger AnalysisTrigger) *Dispatcher {
	if trigger == nil {
		trigger = NoopTrigger{}
	}
	return &Dispatcher{
		sessions: sessions,
		trigger:  trigger,
	}
}

// Dispatch applies the event to the session store:
//
//   - session.created           full upsert of the canonical record
//   - session.ended / .removed  merge upsert, absent fields left untouched
//   - session.revoked           idempotent delete by ID
//   - anything else             no-op
//
// Unrecognized event types succeed so provider schema evolution never breaks
// ingestion. A returned error always means the store mutation failed.
func (d *Dispatcher) Dispatch(ctx context.Context, evt *models.WebhookEvent) error {
	switch evt.Kind {
	case models.EventSessionCreated:
		if err := d.sessions.Upsert(ctx, evt.Record()); err != nil {
			return fmt.Errorf("failed to store created session: %w", err)
		}
		log.Info().
			Str("session_id", evt.Session.ID).
			Str("user_id", evt.Session.UserID).
			Msg("Session created")

	case models.EventSessionEnded, models.EventSessionRemoved:
		if err := d.sessions.Merge(ctx, evt.Record()); err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}
		log.Info().
			Str("session_id", evt.Session.ID).
			Str("user_id", evt.Session.UserID).
			Str("type", evt.Type).
			Msg("Session ended")

	case models.EventSessionRevoked:
		if err := d.sessions.Delete(ctx, evt.Session.ID); err != nil {
			return fmt.Errorf("failed to delete revoked session: %w", err)
		}
		log.Info().
			Str("session_id", evt.Session.ID).
			Msg("Session revoked")

	default:
		log.Debug().Str("type", evt.Type).Msg("Ignoring unhandled event type")
		return nil
	}

	// Best-effort handoff; never blocks or fails the ingestion path.
	d.trigger.TriggerAnalysis()

	return nil
}
