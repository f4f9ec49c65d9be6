package store

import (
	"context"
	"encoding/json"
	"time"
)

// Data is the durable session record: provider tokens with explicit expiry,
// the bridged service token, and the cached merged user. The service token
// is only ever derived from a currently-valid provider token, never minted
// independently.
type Data struct {
	ProviderAccessToken  string          `json:"provider_access_token"`
	ProviderRefreshToken string          `json:"provider_refresh_token,omitempty"`
	ProviderTokenExpiry  time.Time       `json:"provider_token_expiry,omitempty"`
	ServiceToken         string          `json:"service_token,omitempty"`
	ServiceTokenExpiry   time.Time       `json:"service_token_expiry,omitempty"`
	User                 json.RawMessage `json:"user,omitempty"`
}

// Repo defines the durable key/value store for session state and its
// flow markers. A session is purged as a whole: DeleteSession removes the
// record, the redirect path, and the processed-code marker together, so a
// partially-cleared session cannot exist.
//
// TakeRedirectPath and TakeLogoutReturnPath are read-once: the value is
// removed as it is read.
type Repo interface {
	SaveSession(ctx context.Context, sessionID string, data *Data) error
	GetSession(ctx context.Context, sessionID string) (*Data, error)
	DeleteSession(ctx context.Context, sessionID string) error

	SetRedirectPath(ctx context.Context, sessionID, path string) error
	TakeRedirectPath(ctx context.Context, sessionID string) (string, error)

	SetLogoutReturnPath(ctx context.Context, sessionID, path string) error
	TakeLogoutReturnPath(ctx context.Context, sessionID string) (string, error)

	MarkCodeProcessed(ctx context.Context, sessionID, code string) error
	IsCodeProcessed(ctx context.Context, sessionID, code string) (bool, error)
}
