package entitlement_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/corebrain/go-session-service/backend"
	"github.com/corebrain/go-session-service/entitlement"
)

const (
	testSessionID    = "sess-1"
	testUserID       = "u1"
	testServiceToken = "service-token-1"
)

type backendConfig struct {
	url string
}

func (c backendConfig) GetAPIEndpoint() string         { return c.url }
func (backendConfig) GetRequestTimeout() time.Duration { return 5 * time.Second }

func newProvider(t *testing.T, handler http.Handler) (*entitlement.Provider, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := backend.New(backendConfig{url: srv.URL})
	require.NoError(t, err)

	provider, err := entitlement.NewProvider(client, entitlement.DefaultCatalog(), zerolog.Nop())
	require.NoError(t, err)
	return provider, srv
}

func TestFetchNormalizesAndCaches(t *testing.T) {
	provider, _ := newProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"type":"pro","status":"active","products":"corebrain"}`)
	}))

	record := provider.Fetch(context.Background(), testSessionID, testServiceToken, testUserID)
	require.Equal(t, entitlement.TierPro, record.Tier)
	require.True(t, record.HasProduct("corebrain"))

	cached, ok := provider.Current(testSessionID)
	require.True(t, ok)
	require.Equal(t, record, cached)

	require.True(t, provider.HasAccess(testSessionID, "usage-analytics"))
	require.True(t, provider.HasPlanAccess(testSessionID, entitlement.TierBasic))
	require.False(t, provider.HasPlanAccess(testSessionID, entitlement.TierEnterprise))
	require.True(t, provider.HasProduct(testSessionID, "corebrain"))
	require.False(t, provider.HasProduct(testSessionID, "copilot"))
}

func TestFetchFailureFallsBackToFree(t *testing.T) {
	provider, _ := newProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	record := provider.Fetch(context.Background(), testSessionID, testServiceToken, testUserID)
	require.Equal(t, entitlement.TierFree, record.Tier)
	require.False(t, record.HasProducts())

	// The synthesized record is installed, not just returned.
	cached, ok := provider.Current(testSessionID)
	require.True(t, ok)
	require.Equal(t, entitlement.TierFree, cached.Tier)
}

func TestChangePlanReplacesRecordWholesale(t *testing.T) {
	var fetches int64
	provider, _ := newProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodGet {
			atomic.AddInt64(&fetches, 1)
			fmt.Fprint(w, `{"tier":"pro","status":"active","products":["corebrain","copilot"],"usage":{"requests":10}}`)
			return
		}
		// Billing's replacement record drops a product and the usage map;
		// nothing of the old record may survive the swap.
		fmt.Fprint(w, `{"tier":"basic","status":"active","products":["corebrain"]}`)
	}))

	provider.Fetch(context.Background(), testSessionID, testServiceToken, testUserID)

	record, err := provider.ChangePlan(context.Background(), testSessionID, testServiceToken, testUserID, entitlement.TierBasic, "")
	require.NoError(t, err)
	require.Equal(t, entitlement.TierBasic, record.Tier)
	require.False(t, record.HasProduct("copilot"))
	require.Empty(t, record.Usage)

	cached, ok := provider.Current(testSessionID)
	require.True(t, ok)
	require.Equal(t, record, cached)
}

func TestSubmitPaymentRefetchesOnPlanChange(t *testing.T) {
	var fetches int64
	provider, _ := newProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/v1/subscriptions/payment" {
			fmt.Fprint(w, `{"plan_changed":true}`)
			return
		}
		atomic.AddInt64(&fetches, 1)
		fmt.Fprint(w, `{"tier":"pro","status":"active"}`)
	}))

	result, err := provider.SubmitPayment(context.Background(), testSessionID, testServiceToken, &backend.PaymentRequest{
		UserID: testUserID,
		Tier:   "pro",
	})
	require.NoError(t, err)
	require.True(t, result.PlanChanged)
	require.EqualValues(t, 1, atomic.LoadInt64(&fetches))

	cached, ok := provider.Current(testSessionID)
	require.True(t, ok)
	require.Equal(t, entitlement.TierPro, cached.Tier)
}

func TestClear(t *testing.T) {
	provider, _ := newProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"tier":"pro"}`)
	}))

	provider.Fetch(context.Background(), testSessionID, testServiceToken, testUserID)
	provider.Clear(testSessionID)

	_, ok := provider.Current(testSessionID)
	require.False(t, ok)
	require.False(t, provider.HasPlanAccess(testSessionID, entitlement.TierBasic))
}
