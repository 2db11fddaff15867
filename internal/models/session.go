package models

// SessionStatus represents the lifecycle status reported by the identity provider.
const (
	SessionStatusCreated = "created"
	SessionStatusActive  = "active"
	SessionStatusEnded   = "ended"
	SessionStatusRemoved = "removed"
	SessionStatusRevoked = "revoked"
)

// SessionRecord is the canonical shape of one identity-provider session.
// The record is keyed by the provider-issued session ID; repeated events
// for the same ID merge into the existing record rather than duplicating it.
// All timestamps are epoch milliseconds exactly as the provider issues them.
type SessionRecord struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Status string `json:"status"`
	Object string `json:"object"`

	CreatedAt    int64 `json:"createdAt"`
	LastActiveAt int64 `json:"lastActiveAt"`
	AbandonAt    int64 `json:"abandonAt"`
	ExpireAt     int64 `json:"expireAt"`
	UpdatedAt    int64 `json:"updatedAt"`

	// Client metadata extracted from the event's http_request attributes.
	// May be empty when the provider omits them.
	ClientID  string `json:"clientId"`
	ClientIP  string `json:"clientIp"`
	UserAgent string `json:"userAgent"`
}
