package config

import "time"

type SessionConfig interface {
	GetSessionCookieName() string
	GetDefaultProviderTokenExpiry() time.Duration
	GetDefaultServiceTokenExpiry() time.Duration
	GetProcessedCodeCacheSize() int
	GetRedisAddr() string
	GetStoreEncryptionKey() string
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetSessionCookieName() string {
	return GetEnv("SESSION_COOKIE_NAME", "cb_session")
}

// GetDefaultProviderTokenExpiry is used when the token endpoint returns no
// expires_at and the access token carries no exp claim.
func (Session) GetDefaultProviderTokenExpiry() time.Duration {
	return 24 * time.Hour
}

func (Session) GetDefaultServiceTokenExpiry() time.Duration {
	return 1 * time.Hour
}

func (Session) GetProcessedCodeCacheSize() int {
	return 1024
}

// GetRedisAddr returns the Redis address for the durable session store.
// Empty means the in-memory store is used.
func (Session) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "")
}

// GetStoreEncryptionKey returns the base64 encoded 32-byte key used to
// encrypt persisted session records. Empty disables at-rest encryption.
func (Session) GetStoreEncryptionKey() string {
	return GetEnv("SESSION_STORE_KEY", "")
}
