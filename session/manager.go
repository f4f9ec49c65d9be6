package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/corebrain/go-session-service/backend"
	"github.com/corebrain/go-session-service/identity"
	"github.com/corebrain/go-session-service/internal/config"
	errs "github.com/corebrain/go-session-service/internal/errors"
	"github.com/corebrain/go-session-service/session/store"
)

// Deps holds all dependencies for the Manager.
type Deps struct {
	Identity *identity.Facade
	Backend  *backend.Client
	Store    store.Repo
}

// Manager owns the authentication state machine: bootstrap, callback
// handling, token bridging, refresh, and logout. State is persisted in the
// Store; the Manager serializes concurrent callers per session with its own
// lock striping.
type Manager struct {
	identity *identity.Facade
	backend  *backend.Client
	store    store.Repo
	config   config.Config
	logger   zerolog.Logger
	nowTime  func() time.Time

	onDestroy []func(sessionID string)
	onBridge  []func(success bool)

	mu     sync.Mutex
	states map[string]State
	locks  map[string]*sync.Mutex
}

// ManagerOption defines a function type to modify the Manager instance.
type ManagerOption func(*Manager)

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

// WithDestroyHook registers a callback invoked whenever a session is
// purged, so dependent caches (entitlements) are cleared with it.
func WithDestroyHook(hook func(sessionID string)) ManagerOption {
	return func(m *Manager) {
		m.onDestroy = append(m.onDestroy, hook)
	}
}

// WithBridgeHook registers a callback observing every service-token bridge
// attempt, for metrics.
func WithBridgeHook(hook func(success bool)) ManagerOption {
	return func(m *Manager) {
		m.onBridge = append(m.onBridge, hook)
	}
}

// NewManager initializes a new session Manager with required dependencies.
func NewManager(deps Deps, cfg config.Config, logger zerolog.Logger, options ...ManagerOption) (*Manager, error) {
	if deps.Identity == nil {
		return nil, errors.New("[NewManager] Identity facade is required")
	}
	if deps.Backend == nil {
		return nil, errors.New("[NewManager] Backend client is required")
	}
	if deps.Store == nil {
		return nil, errors.New("[NewManager] Store is required")
	}
	if cfg == nil {
		return nil, errors.New("[NewManager] config is required")
	}

	m := &Manager{
		identity: deps.Identity,
		backend:  deps.Backend,
		store:    deps.Store,
		config:   cfg,
		logger:   logger.With().Str("component", "session").Logger(),
		nowTime:  time.Now,
		states:   make(map[string]State),
		locks:    make(map[string]*sync.Mutex),
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// StateOf returns the session's current state in the machine.
func (m *Manager) StateOf(sessionID string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.states[sessionID]; ok {
		return state
	}
	return StateUnauthenticated
}

// Bootstrap runs at session start. It reads the persisted provider token,
// verifies or refreshes it, resolves the user, and reuses or re-bridges the
// service token. Any irrecoverable inconsistency purges the whole session;
// no partial repair. A nil session with nil error means unauthenticated.
func (m *Manager) Bootstrap(ctx context.Context, sessionID string) (*Session, error) {
	unlock := m.lockSession(sessionID)
	defer unlock()

	data, err := m.store.GetSession(ctx, sessionID)
	if errors.Is(err, errs.ErrSessionNotFound) || (err == nil && data.ProviderAccessToken == "") {
		m.setState(sessionID, StateUnauthenticated)
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.Bootstrap] read session")
	}

	m.setState(sessionID, StateAuthenticating)

	now := m.nowTime()
	expired := !data.ProviderTokenExpiry.IsZero() && !now.Before(data.ProviderTokenExpiry)
	verifyErr := errs.ErrMissingOrExpiredToken
	if !expired {
		verifyErr = m.identity.Verify(ctx, data.ProviderAccessToken)
	}

	if verifyErr != nil {
		if data.ProviderRefreshToken == "" {
			m.logger.Info().Str("session_id", sessionID).Msg("provider token unusable and no refresh token, purging")
			return nil, m.purge(ctx, sessionID)
		}
		bundle, err := m.identity.Refresh(ctx, data.ProviderRefreshToken)
		if err != nil {
			m.logger.Info().Str("session_id", sessionID).Msg("refresh failed, purging session")
			return nil, m.purge(ctx, sessionID)
		}
		m.applyBundle(data, bundle)
		if err := m.identity.Verify(ctx, data.ProviderAccessToken); err != nil {
			return nil, m.purge(ctx, sessionID)
		}
	}

	user, err := m.resolveUser(ctx, data.ProviderAccessToken)
	if err != nil {
		return nil, m.purge(ctx, sessionID)
	}
	if err := m.storeUser(data, user); err != nil {
		return nil, errors.Wrap(err, "[Manager.Bootstrap] store user")
	}

	m.setState(sessionID, StateServiceTokenPending)

	if data.ServiceToken == "" || (!data.ServiceTokenExpiry.IsZero() && !now.Before(data.ServiceTokenExpiry)) {
		m.bridgeServiceToken(ctx, data, user)
	}

	if err := m.store.SaveSession(ctx, sessionID, data); err != nil {
		return nil, errors.Wrap(err, "[Manager.Bootstrap] save session")
	}

	m.setState(sessionID, StateReady)
	return sessionFromData(data)
}

// Login persists the intended destination and returns the provider's
// authorization URL. No further local state changes until the callback.
func (m *Manager) Login(ctx context.Context, sessionID, provider, intendedPath string) (string, error) {
	if intendedPath != "" {
		if err := m.store.SetRedirectPath(ctx, sessionID, intendedPath); err != nil {
			return "", errors.Wrap(err, "[Manager.Login] persist redirect path")
		}
	}
	return m.identity.AuthorizationURL(provider), nil
}

// HandleCallback processes the authorization-code callback at most once per
// code, even under re-entrant delivery. It exchanges the code, persists the
// provider tokens with explicit expiry, resolves the user, bridges to a
// service token, and reports success. Navigation is the caller's job via
// ConsumeRedirectPath.
func (m *Manager) HandleCallback(ctx context.Context, sessionID, code string) (bool, error) {
	unlock := m.lockSession(sessionID)
	defer unlock()

	processed, err := m.store.IsCodeProcessed(ctx, sessionID, code)
	if err != nil {
		return false, errors.Wrap(err, "[Manager.HandleCallback] check processed code")
	}
	if processed {
		// Duplicate delivery of a code we already handled. Not an error.
		m.logger.Debug().Str("session_id", sessionID).Msg("callback replay ignored")
		return true, nil
	}

	m.setState(sessionID, StateAuthenticating)

	bundle, err := m.identity.Exchange(ctx, code)
	if errors.Is(err, errs.ErrCodeReplayed) {
		return true, nil
	}
	if err != nil {
		m.setState(sessionID, StateUnauthenticated)
		return false, errors.Wrap(err, "[Manager.HandleCallback] exchange")
	}

	if err := m.store.MarkCodeProcessed(ctx, sessionID, code); err != nil {
		return false, errors.Wrap(err, "[Manager.HandleCallback] mark code processed")
	}

	data := &store.Data{}
	m.applyBundle(data, bundle)
	if err := m.store.SaveSession(ctx, sessionID, data); err != nil {
		return false, errors.Wrap(err, "[Manager.HandleCallback] persist provider tokens")
	}

	user, err := m.resolveUser(ctx, data.ProviderAccessToken)
	if err != nil {
		m.setState(sessionID, StateUnauthenticated)
		if purgeErr := m.purge(ctx, sessionID); purgeErr != nil {
			return false, purgeErr
		}
		return false, errors.Wrap(err, "[Manager.HandleCallback] resolve user")
	}
	if err := m.storeUser(data, user); err != nil {
		return false, errors.Wrap(err, "[Manager.HandleCallback] store user")
	}

	m.setState(sessionID, StateServiceTokenPending)
	m.bridgeServiceToken(ctx, data, user)

	if err := m.store.SaveSession(ctx, sessionID, data); err != nil {
		return false, errors.Wrap(err, "[Manager.HandleCallback] save session")
	}

	m.setState(sessionID, StateReady)
	return true, nil
}

// RememberPath persists the route the user was trying to reach before
// being sent through the login flow.
func (m *Manager) RememberPath(ctx context.Context, sessionID, path string) error {
	if err := m.store.SetRedirectPath(ctx, sessionID, path); err != nil {
		return errors.Wrap(err, "[Manager.RememberPath] persist redirect path")
	}
	return nil
}

// ConsumeRedirectPath reads back and clears the persisted intended
// destination. Read-once.
func (m *Manager) ConsumeRedirectPath(ctx context.Context, sessionID string) string {
	path, err := m.store.TakeRedirectPath(ctx, sessionID)
	if err != nil {
		m.logger.Warn().Err(err).Msg("failed to read redirect path")
		return ""
	}
	return path
}

// RefreshAPIToken re-derives the service token from the current provider
// access token only. It never touches the provider refresh token.
func (m *Manager) RefreshAPIToken(ctx context.Context, sessionID string) error {
	unlock := m.lockSession(sessionID)
	defer unlock()

	data, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return errs.ErrMissingOrExpiredToken
	}
	if data.ProviderAccessToken == "" || (!data.ProviderTokenExpiry.IsZero() && !m.nowTime().Before(data.ProviderTokenExpiry)) {
		return errs.ErrMissingOrExpiredToken
	}

	m.setState(sessionID, StateRefreshing)

	user, err := userFromData(data)
	if err != nil || user == nil {
		m.setState(sessionID, StateReady)
		return errors.Wrap(errs.ErrServiceTokenBridge, "[Manager.RefreshAPIToken] no cached user")
	}

	token, err := m.backend.BridgeToken(ctx, data.ProviderAccessToken, user.AsBackendUser())
	m.notifyBridge(err == nil)
	if err != nil {
		m.setState(sessionID, StateReady)
		return errors.Wrap(err, "[Manager.RefreshAPIToken]")
	}

	data.ServiceToken = token.Token
	data.ServiceTokenExpiry = token.ExpiresAt
	if data.ServiceTokenExpiry.IsZero() {
		data.ServiceTokenExpiry = m.nowTime().Add(m.config.GetDefaultServiceTokenExpiry())
	}
	if err := m.store.SaveSession(ctx, sessionID, data); err != nil {
		return errors.Wrap(err, "[Manager.RefreshAPIToken] save session")
	}

	m.setState(sessionID, StateReady)
	return nil
}

// Logout revokes the tokens remotely (best-effort), purges every persisted
// session key regardless of the outcome, persists the post-logout return
// path for the round trip, and returns the provider's logout URL.
func (m *Manager) Logout(ctx context.Context, sessionID, returnPath string) (string, error) {
	unlock := m.lockSession(sessionID)
	defer unlock()

	m.setState(sessionID, StateLoggingOut)

	if data, err := m.store.GetSession(ctx, sessionID); err == nil {
		m.identity.Logout(ctx, data.ProviderRefreshToken, data.ProviderAccessToken)
	}

	if err := m.purge(ctx, sessionID); err != nil {
		return "", err
	}

	if returnPath == "" {
		returnPath = "/"
	}
	if err := m.store.SetLogoutReturnPath(ctx, sessionID, returnPath); err != nil {
		m.logger.Warn().Err(err).Msg("failed to persist logout return path")
	}

	returnTo := m.config.GetBaseURL() + "/auth/logout/callback"
	return m.identity.LogoutURL(returnTo), nil
}

// CompleteLogout finishes the provider round trip, returning the persisted
// post-logout destination. Read-once; defaults to the root path.
func (m *Manager) CompleteLogout(ctx context.Context, sessionID string) string {
	path, err := m.store.TakeLogoutReturnPath(ctx, sessionID)
	if err != nil || path == "" {
		return "/"
	}
	return path
}

// Current returns the persisted session view without re-verifying it, for
// request-scoped reads after Bootstrap has run.
func (m *Manager) Current(ctx context.Context, sessionID string) (*Session, error) {
	data, err := m.store.GetSession(ctx, sessionID)
	if errors.Is(err, errs.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.Current] read session")
	}
	return sessionFromData(data)
}

// resolveUser turns a provider token into the merged user: profile fetch,
// internal lookup by email, create-on-miss with a generated one-time
// credential. Internal resolution failure falls back to the raw profile
// rather than blocking authentication.
func (m *Manager) resolveUser(ctx context.Context, providerToken string) (*User, error) {
	profile, err := m.identity.UserInfo(ctx, providerToken)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.resolveUser] profile")
	}

	record, err := m.backend.GetUserByEmail(ctx, providerToken, profile.Email)
	if errors.Is(err, errs.ErrNotFound) {
		record, err = m.backend.CreateUser(ctx, providerToken, &backend.NewUser{
			Email:    profile.Email,
			Name:     profile.Name,
			Password: uuid.NewString(),
			Metadata: profile.Metadata,
		})
	}
	if err != nil {
		m.logger.Warn().Err(err).Str("email", profile.Email).Msg("user resolution failed, using provider profile")
		record = nil
	}

	return MergeUser(profile, record), nil
}

// bridgeServiceToken mints a service token bound to the current provider
// token. Failure leaves the session authenticated but degraded.
func (m *Manager) bridgeServiceToken(ctx context.Context, data *store.Data, user *User) {
	token, err := m.backend.BridgeToken(ctx, data.ProviderAccessToken, user.AsBackendUser())
	m.notifyBridge(err == nil)
	if err != nil {
		m.logger.Warn().Err(err).Msg("service token bridge failed, continuing without service token")
		return
	}
	data.ServiceToken = token.Token
	data.ServiceTokenExpiry = token.ExpiresAt
	if data.ServiceTokenExpiry.IsZero() {
		data.ServiceTokenExpiry = m.nowTime().Add(m.config.GetDefaultServiceTokenExpiry())
	}
}

func (m *Manager) notifyBridge(success bool) {
	for _, hook := range m.onBridge {
		hook(success)
	}
}

// purge removes every persisted key for the session and notifies destroy
// hooks. Full removal, never partial repair.
func (m *Manager) purge(ctx context.Context, sessionID string) error {
	if err := m.store.DeleteSession(ctx, sessionID); err != nil {
		return errors.Wrap(err, "[Manager.purge] delete session")
	}
	m.setState(sessionID, StateUnauthenticated)
	for _, hook := range m.onDestroy {
		hook(sessionID)
	}
	return nil
}

func (m *Manager) applyBundle(data *store.Data, bundle *identity.TokenBundle) {
	data.ProviderAccessToken = bundle.AccessToken
	if bundle.RefreshToken != "" {
		data.ProviderRefreshToken = bundle.RefreshToken
	}
	data.ProviderTokenExpiry = bundle.ExpiresAt
	if data.ProviderTokenExpiry.IsZero() {
		data.ProviderTokenExpiry = m.nowTime().Add(m.config.GetDefaultProviderTokenExpiry())
	}
	// A new provider token invalidates any service token derived from the
	// old one.
	data.ServiceToken = ""
	data.ServiceTokenExpiry = time.Time{}
}

func (m *Manager) storeUser(data *store.Data, user *User) error {
	payload, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "marshal user")
	}
	data.User = payload
	return nil
}

func (m *Manager) setState(sessionID string, next State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.states[sessionID]
	if !ok {
		current = StateUnauthenticated
	}
	if current != next && !current.CanTransition(next) {
		m.logger.Warn().
			Str("session_id", sessionID).
			Str("from", string(current)).
			Str("to", string(next)).
			Msg("undefined state transition")
	}
	if next == StateUnauthenticated {
		delete(m.states, sessionID)
		return
	}
	m.states[sessionID] = next
}

// lockSession serializes operations per session.
func (m *Manager) lockSession(sessionID string) func() {
	m.mu.Lock()
	lock, ok := m.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[sessionID] = lock
	}
	m.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func sessionFromData(data *store.Data) (*Session, error) {
	user, err := userFromData(data)
	if err != nil {
		return nil, err
	}
	return &Session{
		ProviderAccessToken:  data.ProviderAccessToken,
		ProviderRefreshToken: data.ProviderRefreshToken,
		ProviderTokenExpiry:  data.ProviderTokenExpiry,
		ServiceToken:         data.ServiceToken,
		ServiceTokenExpiry:   data.ServiceTokenExpiry,
		User:                 user,
	}, nil
}

func userFromData(data *store.Data) (*User, error) {
	if len(data.User) == 0 {
		return nil, nil
	}
	var user User
	if err := json.Unmarshal(data.User, &user); err != nil {
		return nil, errors.Wrap(err, "unmarshal cached user")
	}
	return &user, nil
}
