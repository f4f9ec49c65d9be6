package backend_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/corebrain/go-session-service/backend"
	errs "github.com/corebrain/go-session-service/internal/errors"
)

const (
	testProviderToken = "provider-token-1"
	testServiceToken  = "service-token-1"
	testUserEmail     = "a@b.com"
	testUserID        = "u1"
)

type backendConfig struct {
	url string
}

func (c backendConfig) GetAPIEndpoint() string         { return c.url }
func (backendConfig) GetRequestTimeout() time.Duration { return 5 * time.Second }

func newTestClient(t *testing.T, url string) *backend.Client {
	t.Helper()
	client, err := backend.New(backendConfig{url: url})
	require.NoError(t, err)
	return client
}

func TestGetUserByEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/auth/users/a@b.com/email", r.URL.Path)
		require.Equal(t, "Bearer "+testProviderToken, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"u1","email":"a@b.com","name":"Ada","roles":["member"]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	user, err := client.GetUserByEmail(context.Background(), testProviderToken, testUserEmail)
	require.NoError(t, err)
	require.Equal(t, testUserID, user.ID)
	require.Equal(t, []string{"member"}, user.Roles)
}

func TestGetUserByEmailNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.GetUserByEmail(context.Background(), testProviderToken, "nobody@b.com")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestCreateUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/auth/users", r.URL.Path)

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, testUserEmail, payload["email"])
		require.NotEmpty(t, payload["password"])

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"u1","email":"a@b.com"}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	user, err := client.CreateUser(context.Background(), testProviderToken, &backend.NewUser{
		Email:    testUserEmail,
		Password: "one-time",
	})
	require.NoError(t, err)
	require.Equal(t, testUserID, user.ID)
}

func TestBridgeToken(t *testing.T) {
	expires := time.Now().Add(time.Hour).Unix()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/auth/sso/token", r.URL.Path)
		require.Equal(t, "Bearer "+testProviderToken, r.Header.Get("Authorization"))

		var payload struct {
			UserData *backend.User `json:"user_data"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, testUserID, payload.UserData.ID)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":{"access_token":%q,"expires_at":%d}}`, testServiceToken, expires)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	token, err := client.BridgeToken(context.Background(), testProviderToken, &backend.User{ID: testUserID, Email: testUserEmail})
	require.NoError(t, err)
	require.Equal(t, testServiceToken, token.Token)
	require.Equal(t, time.Unix(expires, 0), token.ExpiresAt)
}

func TestBridgeTokenUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.BridgeToken(context.Background(), "expired", &backend.User{ID: testUserID})
	require.ErrorIs(t, err, errs.ErrServiceTokenBridge)
}

func TestGetSubscription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/subscriptions/users/u1", r.URL.Path)
		require.Equal(t, "Bearer "+testServiceToken, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"tier":"pro","status":"active","products":["corebrain"],"usage":{"requests":42}}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	payload, err := client.GetSubscription(context.Background(), testServiceToken, testUserID)
	require.NoError(t, err)
	require.Equal(t, "pro", payload.Tier)
	require.EqualValues(t, 42, payload.Usage["requests"])
}

func TestSubmitPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/subscriptions/payment", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"plan_changed":true}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	result, err := client.SubmitPayment(context.Background(), testServiceToken, &backend.PaymentRequest{UserID: testUserID, Tier: "pro"})
	require.NoError(t, err)
	require.True(t, result.PlanChanged)
}
