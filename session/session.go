package session

import "time"

// Session is the in-memory view of one authenticated session. Invariant:
// ServiceToken is always derived from a currently-valid provider access
// token; a session whose provider token is expired and unrefreshable is
// equivalent to no session and is purged entirely.
type Session struct {
	ProviderAccessToken  string
	ProviderRefreshToken string
	ProviderTokenExpiry  time.Time
	ServiceToken         string
	ServiceTokenExpiry   time.Time
	User                 *User
}

// IsAuthenticated reports whether the session carries a verified identity.
// A missing service token does not matter here: when the bridge fails, only
// service-token-dependent features degrade.
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.ProviderAccessToken != "" && s.User != nil
}

// HasServiceToken reports whether a usable service token is present.
func (s *Session) HasServiceToken(now time.Time) bool {
	return s != nil && s.ServiceToken != "" && (s.ServiceTokenExpiry.IsZero() || now.Before(s.ServiceTokenExpiry))
}
