package identity_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/corebrain/go-session-service/identity"
	errs "github.com/corebrain/go-session-service/internal/errors"
)

const (
	testClientID     = "dashboard-client"
	testClientSecret = "dashboard-secret"
	testServiceID    = "corebrain-dashboard"
	testRedirectURI  = "http://localhost:3000/auth/callback"
	testAccessToken  = "tok1"
	testRefreshToken = "r1"
	testCode         = "abc123"
)

// providerConfig satisfies config.IdentityConfig against a test server.
type providerConfig struct {
	url    string
	secret string
}

func (c providerConfig) GetIdentityURL() string    { return c.url }
func (providerConfig) GetClientID() string         { return testClientID }
func (c providerConfig) GetClientSecret() string   { return c.secret }
func (providerConfig) GetServiceID() string        { return testServiceID }
func (providerConfig) GetRedirectURI() string      { return testRedirectURI }
func (providerConfig) GetDefaultProvider() string  { return "google" }

func newTestClient(t *testing.T, providerURL string) *identity.Client {
	t.Helper()
	client, err := identity.New(providerConfig{url: providerURL, secret: testClientSecret})
	require.NoError(t, err)
	return client
}

func tokenEndpoint(t *testing.T, calls *int64, expiresAt any) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/token" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt64(calls, 1)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, testClientID, req["client_id"])
		require.Equal(t, testServiceID, req["service_id"])

		resp := map[string]any{
			"access_token":  testAccessToken,
			"refresh_token": testRefreshToken,
		}
		if expiresAt != nil {
			resp["expires_at"] = expiresAt
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := identity.New(providerConfig{url: "not a url"})
	require.ErrorIs(t, err, errs.ErrInvalidConfig)
}

func TestBuildAuthorizationURL(t *testing.T) {
	client := newTestClient(t, "https://identity.example.com")

	u := client.BuildAuthorizationURL("")
	require.Contains(t, u, "https://identity.example.com/api/auth/authorize")
	require.Contains(t, u, "client_id="+testClientID)
	require.NotContains(t, u, "provider=")

	u = client.BuildAuthorizationURL("github")
	require.Contains(t, u, "provider=github")
}

func TestExchangeCodeForTokenOnce(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(tokenEndpoint(t, &calls, time.Now().Add(time.Hour).Unix()))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	bundle, err := client.ExchangeCodeForToken(context.Background(), testCode)
	require.NoError(t, err)
	require.Equal(t, testAccessToken, bundle.AccessToken)
	require.Equal(t, testRefreshToken, bundle.RefreshToken)
	require.WithinDuration(t, time.Now().Add(time.Hour), bundle.ExpiresAt, 5*time.Second)

	// A replayed code must fail fast, without touching the network.
	_, err = client.ExchangeCodeForToken(context.Background(), testCode)
	require.ErrorIs(t, err, errs.ErrCodeReplayed)
	require.EqualValues(t, 1, atomic.LoadInt64(&calls))
}

func TestExchangeCodeForTokenConcurrent(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		tokenEndpoint(t, &calls, nil)(w, r)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bundle, err := client.ExchangeCodeForToken(context.Background(), testCode)
			if err == nil {
				require.Equal(t, testAccessToken, bundle.AccessToken)
			} else {
				require.ErrorIs(t, err, errs.ErrCodeReplayed)
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, atomic.LoadInt64(&calls), "concurrent exchanges for one code must share a single request")
}

func TestExchangeCodeForTokenInvalidGrantBurnsCode(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.ExchangeCodeForToken(context.Background(), testCode)
	require.ErrorIs(t, err, errs.ErrInvalidGrant)

	_, err = client.ExchangeCodeForToken(context.Background(), testCode)
	require.ErrorIs(t, err, errs.ErrCodeReplayed)
	require.EqualValues(t, 1, atomic.LoadInt64(&calls))
}

func TestExchangeCodeForTokenEmptyCode(t *testing.T) {
	client := newTestClient(t, "https://identity.example.com")
	_, err := client.ExchangeCodeForToken(context.Background(), "")
	require.ErrorIs(t, err, errs.ErrInvalidGrant)
}

func TestRefreshTokenRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.RefreshToken(context.Background(), "stale-refresh")
	require.ErrorIs(t, err, errs.ErrRefreshRejected)
}

func TestRefreshTokenSuccess(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(tokenEndpoint(t, &calls, time.Now().Add(time.Hour).Format(time.RFC3339)))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	bundle, err := client.RefreshToken(context.Background(), "refresh-1")
	require.NoError(t, err)
	require.Equal(t, testAccessToken, bundle.AccessToken)
	require.WithinDuration(t, time.Now().Add(time.Hour), bundle.ExpiresAt, 5*time.Second)
}

func TestExchangeExpiryFromJWTClaim(t *testing.T) {
	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": exp.Unix(),
	}).SignedString([]byte("test-signing-key"))
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":%q}`, signed)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	// No expires_at in the response: the exp claim of the token itself is
	// the fallback.
	bundle, err := client.ExchangeCodeForToken(context.Background(), testCode)
	require.NoError(t, err)
	require.True(t, bundle.ExpiresAt.Equal(exp))
}

func TestVerifyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/service-auth", r.URL.Path)
		require.Equal(t, testServiceID, r.URL.Query().Get("service_id"))
		if r.Header.Get("Authorization") != "Bearer "+testAccessToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	require.NoError(t, client.VerifyToken(context.Background(), testAccessToken))
	require.ErrorIs(t, client.VerifyToken(context.Background(), "wrong"), errs.ErrTokenNotVerified)
}

func TestGetUserInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/users/me/profile", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"p1","email":"a@b.com","name":"Ada","avatar":"https://img.example.com/a.png","locale":"en"}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	profile, err := client.GetUserInfo(context.Background(), testAccessToken)
	require.NoError(t, err)
	require.Equal(t, "p1", profile.ID)
	require.Equal(t, "a@b.com", profile.Email)
	require.Equal(t, "Ada", profile.Name)
	require.Equal(t, "https://img.example.com/a.png", profile.Metadata["avatar"])
	require.NotContains(t, profile.Metadata, "email")
}

func TestBuildLogoutURL(t *testing.T) {
	client := newTestClient(t, "https://identity.example.com")
	u := client.BuildLogoutURL("http://localhost:3000/auth/logout/callback")
	require.Equal(t, "https://identity.example.com/api/auth/logout?returnTo=http%3A%2F%2Flocalhost%3A3000%2Fauth%2Flogout%2Fcallback", u)
}
