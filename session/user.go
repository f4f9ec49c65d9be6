package session

import (
	"github.com/corebrain/go-session-service/backend"
	"github.com/corebrain/go-session-service/identity"
)

// User is the merged identity: an internal-service user record overlaid on
// the identity-provider profile.
type User struct {
	ID       string         `json:"id"`
	Name     string         `json:"name,omitempty"`
	Email    string         `json:"email"`
	Roles    []string       `json:"roles,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// MergeUser overlays the internal record on the provider profile.
// Precedence: email is authoritative from the provider; every other field
// prefers the internal record when present. A nil internal record (user
// resolution failed) falls back to the raw provider profile, so
// authentication is never blocked on resolution.
func MergeUser(profile *identity.Profile, record *backend.User) *User {
	if profile == nil {
		return nil
	}

	user := &User{
		ID:       profile.ID,
		Name:     profile.Name,
		Email:    profile.Email,
		Metadata: profile.Metadata,
	}
	if record == nil {
		return user
	}

	if record.ID != "" {
		user.ID = record.ID
	}
	if record.Name != "" {
		user.Name = record.Name
	}
	if len(record.Roles) > 0 {
		user.Roles = record.Roles
	}
	if len(record.Metadata) > 0 {
		user.Metadata = record.Metadata
	}
	return user
}

// AsBackendUser converts the merged user to the internal API's shape for
// the token bridge call.
func (u *User) AsBackendUser() *backend.User {
	return &backend.User{
		ID:       u.ID,
		Email:    u.Email,
		Name:     u.Name,
		Roles:    u.Roles,
		Metadata: u.Metadata,
	}
}
