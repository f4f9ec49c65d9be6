package identity_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/corebrain/go-session-service/identity"
	errs "github.com/corebrain/go-session-service/internal/errors"
)

func TestNewFacadeRequiresClientSecret(t *testing.T) {
	_, err := identity.NewFacade(providerConfig{url: "https://identity.example.com"}, zerolog.Nop())
	require.ErrorIs(t, err, errs.ErrInvalidConfig)
}

func TestFacadeAppliesDefaultProvider(t *testing.T) {
	facade, err := identity.NewFacade(providerConfig{url: "https://identity.example.com", secret: testClientSecret}, zerolog.Nop())
	require.NoError(t, err)

	require.Contains(t, facade.AuthorizationURL(""), "provider=google")
	require.Contains(t, facade.AuthorizationURL("github"), "provider=github")
}

func TestFacadeLogoutBestEffort(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	facade, err := identity.NewFacade(providerConfig{url: srv.URL, secret: testClientSecret}, zerolog.Nop())
	require.NoError(t, err)

	// A failed remote revocation reports false; it must not error or panic,
	// callers clear local state regardless.
	require.False(t, facade.Logout(context.Background(), "r1", "tok1"))
}
