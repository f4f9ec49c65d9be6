package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	pkgerrors "github.com/pkg/errors"

	errs "github.com/corebrain/go-session-service/internal/errors"
)

const (
	// Session records live as long as the longest-lived refresh token the
	// provider hands out; markers are short-lived flow state.
	sessionTTL = 30 * 24 * time.Hour
	markerTTL  = 1 * time.Hour
)

// RedisRepo is a Redis-backed implementation of the Repo interface for
// multi-process deployments. Records pass through the configured Codec on
// the way in and out.
type RedisRepo struct {
	client *redis.Client
	codec  Codec
}

// RedisOption defines a function type to modify the RedisRepo instance.
type RedisOption func(*RedisRepo)

// WithCodec sets the record codec (e.g. at-rest encryption).
func WithCodec(codec Codec) RedisOption {
	return func(r *RedisRepo) {
		r.codec = codec
	}
}

// NewRedisRepo creates a Redis session store.
func NewRedisRepo(client *redis.Client, options ...RedisOption) (*RedisRepo, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	r := &RedisRepo{
		client: client,
		codec:  PlainCodec{},
	}
	for _, opt := range options {
		opt(r)
	}
	return r, nil
}

func dataKey(sessionID string) string   { return fmt.Sprintf("session:%s:data", sessionID) }
func redirectKey(id string) string      { return fmt.Sprintf("session:%s:redirect", id) }
func logoutReturnKey(id string) string  { return fmt.Sprintf("session:%s:logout_return", id) }
func processedCodeKey(id string) string { return fmt.Sprintf("session:%s:processed_code", id) }

// SaveSession stores or updates a session record.
func (r *RedisRepo) SaveSession(ctx context.Context, sessionID string, data *Data) error {
	if sessionID == "" {
		return errors.New("sessionID cannot be empty")
	}
	if data == nil {
		return errors.New("data cannot be nil")
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return pkgerrors.Wrap(err, "[RedisRepo.SaveSession] marshal")
	}
	encoded, err := r.codec.Encode(payload)
	if err != nil {
		return pkgerrors.Wrap(err, "[RedisRepo.SaveSession] encode")
	}
	return r.client.Set(ctx, dataKey(sessionID), encoded, sessionTTL).Err()
}

// GetSession retrieves a session record by ID.
func (r *RedisRepo) GetSession(ctx context.Context, sessionID string) (*Data, error) {
	if sessionID == "" {
		return nil, errors.New("sessionID cannot be empty")
	}

	stored, err := r.client.Get(ctx, dataKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errs.ErrSessionNotFound
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[RedisRepo.GetSession] get")
	}

	payload, err := r.codec.Decode(stored)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[RedisRepo.GetSession] decode")
	}

	var data Data
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, pkgerrors.Wrap(err, "[RedisRepo.GetSession] unmarshal")
	}
	return &data, nil
}

// DeleteSession purges the session record and every marker tied to it.
func (r *RedisRepo) DeleteSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return errors.New("sessionID cannot be empty")
	}
	return r.client.Del(ctx,
		dataKey(sessionID),
		redirectKey(sessionID),
		logoutReturnKey(sessionID),
		processedCodeKey(sessionID),
	).Err()
}

// SetRedirectPath persists the post-login intended destination.
func (r *RedisRepo) SetRedirectPath(ctx context.Context, sessionID, path string) error {
	if sessionID == "" {
		return errors.New("sessionID cannot be empty")
	}
	return r.client.Set(ctx, redirectKey(sessionID), path, markerTTL).Err()
}

// TakeRedirectPath reads and clears the intended destination atomically.
func (r *RedisRepo) TakeRedirectPath(ctx context.Context, sessionID string) (string, error) {
	return r.getDel(ctx, redirectKey(sessionID), sessionID)
}

// SetLogoutReturnPath persists the post-logout round-trip destination.
func (r *RedisRepo) SetLogoutReturnPath(ctx context.Context, sessionID, path string) error {
	if sessionID == "" {
		return errors.New("sessionID cannot be empty")
	}
	return r.client.Set(ctx, logoutReturnKey(sessionID), path, markerTTL).Err()
}

// TakeLogoutReturnPath reads and clears the post-logout destination.
func (r *RedisRepo) TakeLogoutReturnPath(ctx context.Context, sessionID string) (string, error) {
	return r.getDel(ctx, logoutReturnKey(sessionID), sessionID)
}

// MarkCodeProcessed records the last processed authorization code.
func (r *RedisRepo) MarkCodeProcessed(ctx context.Context, sessionID, code string) error {
	if sessionID == "" {
		return errors.New("sessionID cannot be empty")
	}
	if code == "" {
		return errors.New("code cannot be empty")
	}
	return r.client.Set(ctx, processedCodeKey(sessionID), code, markerTTL).Err()
}

// IsCodeProcessed reports whether the code was already processed for this
// session.
func (r *RedisRepo) IsCodeProcessed(ctx context.Context, sessionID, code string) (bool, error) {
	if sessionID == "" || code == "" {
		return false, nil
	}

	stored, err := r.client.Get(ctx, processedCodeKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, pkgerrors.Wrap(err, "[RedisRepo.IsCodeProcessed] get")
	}
	return stored == code, nil
}

func (r *RedisRepo) getDel(ctx context.Context, key, sessionID string) (string, error) {
	if sessionID == "" {
		return "", errors.New("sessionID cannot be empty")
	}

	value, err := r.client.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", pkgerrors.Wrap(err, "[RedisRepo.getDel] "+key)
	}
	return value, nil
}
