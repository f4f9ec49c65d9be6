package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	errs "github.com/corebrain/go-session-service/internal/errors"
	"github.com/corebrain/go-session-service/session/store"
)

const testSessionID = "sess-1"

func testData() *store.Data {
	return &store.Data{
		ProviderAccessToken:  "tok1",
		ProviderRefreshToken: "r1",
		ProviderTokenExpiry:  time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second),
		ServiceToken:         "svc1",
		ServiceTokenExpiry:   time.Now().Add(time.Hour).UTC().Truncate(time.Second),
	}
}

// repoFactories lets every Repo implementation run the same contract tests.
func repoFactories(t *testing.T) map[string]func(t *testing.T) store.Repo {
	t.Helper()
	return map[string]func(t *testing.T) store.Repo{
		"memory": func(t *testing.T) store.Repo {
			return store.NewInMemoryRepo()
		},
		"redis": func(t *testing.T) store.Repo {
			mr := miniredis.RunT(t)
			repo, err := store.NewRedisRepo(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
			require.NoError(t, err)
			return repo
		},
	}
}

func TestSaveAndGetSession(t *testing.T) {
	for name, newRepo := range repoFactories(t) {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)
			ctx := context.Background()

			_, err := repo.GetSession(ctx, testSessionID)
			require.ErrorIs(t, err, errs.ErrSessionNotFound)

			data := testData()
			require.NoError(t, repo.SaveSession(ctx, testSessionID, data))

			got, err := repo.GetSession(ctx, testSessionID)
			require.NoError(t, err)
			require.Equal(t, data.ProviderAccessToken, got.ProviderAccessToken)
			require.Equal(t, data.ServiceToken, got.ServiceToken)
			require.True(t, data.ProviderTokenExpiry.Equal(got.ProviderTokenExpiry))
		})
	}
}

func TestDeleteSessionPurgesEverything(t *testing.T) {
	for name, newRepo := range repoFactories(t) {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)
			ctx := context.Background()

			require.NoError(t, repo.SaveSession(ctx, testSessionID, testData()))
			require.NoError(t, repo.SetRedirectPath(ctx, testSessionID, "/dashboard"))
			require.NoError(t, repo.MarkCodeProcessed(ctx, testSessionID, "abc123"))

			require.NoError(t, repo.DeleteSession(ctx, testSessionID))

			_, err := repo.GetSession(ctx, testSessionID)
			require.ErrorIs(t, err, errs.ErrSessionNotFound)

			path, err := repo.TakeRedirectPath(ctx, testSessionID)
			require.NoError(t, err)
			require.Empty(t, path)

			processed, err := repo.IsCodeProcessed(ctx, testSessionID, "abc123")
			require.NoError(t, err)
			require.False(t, processed)
		})
	}
}

func TestRedirectPathReadOnce(t *testing.T) {
	for name, newRepo := range repoFactories(t) {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)
			ctx := context.Background()

			require.NoError(t, repo.SetRedirectPath(ctx, testSessionID, "/products/corebrain"))

			path, err := repo.TakeRedirectPath(ctx, testSessionID)
			require.NoError(t, err)
			require.Equal(t, "/products/corebrain", path)

			path, err = repo.TakeRedirectPath(ctx, testSessionID)
			require.NoError(t, err)
			require.Empty(t, path)
		})
	}
}

func TestLogoutReturnPathReadOnce(t *testing.T) {
	for name, newRepo := range repoFactories(t) {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)
			ctx := context.Background()

			require.NoError(t, repo.SetLogoutReturnPath(ctx, testSessionID, "/goodbye"))

			path, err := repo.TakeLogoutReturnPath(ctx, testSessionID)
			require.NoError(t, err)
			require.Equal(t, "/goodbye", path)

			path, err = repo.TakeLogoutReturnPath(ctx, testSessionID)
			require.NoError(t, err)
			require.Empty(t, path)
		})
	}
}

func TestProcessedCode(t *testing.T) {
	for name, newRepo := range repoFactories(t) {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)
			ctx := context.Background()

			processed, err := repo.IsCodeProcessed(ctx, testSessionID, "abc123")
			require.NoError(t, err)
			require.False(t, processed)

			require.NoError(t, repo.MarkCodeProcessed(ctx, testSessionID, "abc123"))

			processed, err = repo.IsCodeProcessed(ctx, testSessionID, "abc123")
			require.NoError(t, err)
			require.True(t, processed)

			processed, err = repo.IsCodeProcessed(ctx, testSessionID, "other")
			require.NoError(t, err)
			require.False(t, processed)
		})
	}
}

func TestEmptySessionIDRejected(t *testing.T) {
	for name, newRepo := range repoFactories(t) {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)
			ctx := context.Background()

			require.Error(t, repo.SaveSession(ctx, "", testData()))
			_, err := repo.GetSession(ctx, "")
			require.Error(t, err)
			require.Error(t, repo.DeleteSession(ctx, ""))
		})
	}
}

func TestSaveSessionCopiesData(t *testing.T) {
	repo := store.NewInMemoryRepo()
	ctx := context.Background()

	data := testData()
	require.NoError(t, repo.SaveSession(ctx, testSessionID, data))

	// Mutating the caller's copy after save must not leak into the store.
	data.ProviderAccessToken = "mutated"

	got, err := repo.GetSession(ctx, testSessionID)
	require.NoError(t, err)
	require.Equal(t, "tok1", got.ProviderAccessToken)
}
