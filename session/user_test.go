package session_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corebrain/go-session-service/backend"
	"github.com/corebrain/go-session-service/identity"
	"github.com/corebrain/go-session-service/session"
)

func TestMergeUserPrecedence(t *testing.T) {
	profile := &identity.Profile{
		ID:       "p1",
		Email:    "a@b.com",
		Name:     "Ada",
		Metadata: map[string]any{"avatar": "x.png"},
	}
	record := &backend.User{
		ID:    "u1",
		Email: "old@b.com",
		Name:  "Ada Lovelace",
		Roles: []string{"member"},
	}

	user := session.MergeUser(profile, record)

	// Internal record wins for identity fields, the provider wins for
	// email.
	require.Equal(t, "u1", user.ID)
	require.Equal(t, "a@b.com", user.Email)
	require.Equal(t, "Ada Lovelace", user.Name)
	require.Equal(t, []string{"member"}, user.Roles)
	require.Equal(t, "x.png", user.Metadata["avatar"])
}

func TestMergeUserNilRecord(t *testing.T) {
	profile := &identity.Profile{ID: "p1", Email: "a@b.com", Name: "Ada"}

	user := session.MergeUser(profile, nil)
	require.Equal(t, "p1", user.ID)
	require.Equal(t, "a@b.com", user.Email)
	require.Equal(t, "Ada", user.Name)
}

func TestMergeUserNilProfile(t *testing.T) {
	require.Nil(t, session.MergeUser(nil, &backend.User{ID: "u1"}))
}

func TestMergeUserSparseRecord(t *testing.T) {
	profile := &identity.Profile{ID: "p1", Email: "a@b.com", Name: "Ada"}
	record := &backend.User{Email: "a@b.com"}

	// Empty record fields do not erase profile fields.
	user := session.MergeUser(profile, record)
	require.Equal(t, "p1", user.ID)
	require.Equal(t, "Ada", user.Name)
}

func TestSessionPredicates(t *testing.T) {
	var nilSession *session.Session
	require.False(t, nilSession.IsAuthenticated())

	sess := &session.Session{ProviderAccessToken: "tok1"}
	require.False(t, sess.IsAuthenticated(), "a token without a resolved user is not authenticated")

	sess.User = &session.User{ID: "u1", Email: "a@b.com"}
	require.True(t, sess.IsAuthenticated())
}
