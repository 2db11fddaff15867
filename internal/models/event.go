package models

import (
	"encoding/json"
	"fmt"
)

// EventKind identifies the lifecycle transition carried by a provider event.
// Unknown event types map to EventUnhandled so provider schema evolution
// never breaks ingestion.
type EventKind string

const (
	EventSessionCreated EventKind = "session.created"
	EventSessionEnded   EventKind = "session.ended"
	EventSessionRemoved EventKind = "session.removed"
	EventSessionRevoked EventKind = "session.revoked"
	EventUnhandled      EventKind = "unhandled"
)

// SessionEventData is the provider's session payload as delivered on the
// wire. Field names follow the provider's snake_case convention.
type SessionEventData struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	Status       string `json:"status"`
	Object       string `json:"object"`
	AbandonAt    int64  `json:"abandon_at"`
	ClientID     string `json:"client_id"`
	CreatedAt    int64  `json:"created_at"`
	ExpireAt     int64  `json:"expire_at"`
	LastActiveAt int64  `json:"last_active_at"`
	UpdatedAt    int64  `json:"updated_at"`
}

// eventEnvelope is the outer wire shape of a provider webhook event.
type eventEnvelope struct {
	Type            string          `json:"type"`
	Object          string          `json:"object"`
	Timestamp       int64           `json:"timestamp"`
	Data            json.RawMessage `json:"data"`
	EventAttributes struct {
		HTTPRequest struct {
			ClientIP  string `json:"client_ip"`
			UserAgent string `json:"user_agent"`
		} `json:"http_request"`
	} `json:"event_attributes"`
}

// WebhookEvent is a verified, decoded provider event. Session holds the
// typed payload for the session.* kinds; for EventUnhandled it is zero and
// only Type is meaningful.
type WebhookEvent struct {
	Kind      EventKind
	Type      string
	Timestamp int64
	Session   SessionEventData

	// Client metadata nested under event_attributes.http_request.
	// Absent for some event types; empty strings in that case.
	ClientIP  string
	UserAgent string
}

// ParseWebhookEvent decodes a raw event body into its typed variant.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var env eventEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode event envelope: %w", err)
	}

	evt := &WebhookEvent{
		Kind:      EventUnhandled,
		Type:      env.Type,
		Timestamp: env.Timestamp,
		ClientIP:  env.EventAttributes.HTTPRequest.ClientIP,
		UserAgent: env.EventAttributes.HTTPRequest.UserAgent,
	}

	switch EventKind(env.Type) {
	case EventSessionCreated, EventSessionEnded, EventSessionRemoved, EventSessionRevoked:
		evt.Kind = EventKind(env.Type)
		if err := json.Unmarshal(env.Data, &evt.Session); err != nil {
			return nil, fmt.Errorf("failed to decode session payload for %s: %w", env.Type, err)
		}
		if evt.Session.ID == "" {
			return nil, fmt.Errorf("event %s is missing a session id", env.Type)
		}
	}

	return evt, nil
}

// Record builds the canonical session record from the event payload,
// normalizing provider field names and folding in the client metadata.
func (e *WebhookEvent) Record() *SessionRecord {
	return &SessionRecord{
		ID:           e.Session.ID,
		UserID:       e.Session.UserID,
		Status:       e.Session.Status,
		Object:       e.Session.Object,
		CreatedAt:    e.Session.CreatedAt,
		LastActiveAt: e.Session.LastActiveAt,
		AbandonAt:    e.Session.AbandonAt,
		ExpireAt:     e.Session.ExpireAt,
		UpdatedAt:    e.Session.UpdatedAt,
		ClientID:     e.Session.ClientID,
		ClientIP:     e.ClientIP,
		UserAgent:    e.UserAgent,
	}
}
