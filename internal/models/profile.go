package models

// DefaultProfileRole is assigned when a profile is first stored. Roles are
// never recomputed by this service.
const DefaultProfileRole = "user"

// UserProfile is the per-owner account profile, keyed by the account's
// primary email address.
type UserProfile struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}
