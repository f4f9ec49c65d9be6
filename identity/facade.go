package identity

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/corebrain/go-session-service/internal/config"
	errs "github.com/corebrain/go-session-service/internal/errors"
)

// Facade wraps the low-level Client with configuration validation and
// uniform logging. Expected failures come back as error values; the facade
// never panics past ordinary HTTP failure modes.
type Facade struct {
	client          *Client
	defaultProvider string
	logger          zerolog.Logger
}

// NewFacade constructs the identity facade. The client secret is validated
// here rather than in the Client so that public-client test setups can still
// construct a bare Client.
func NewFacade(cfg config.IdentityConfig, logger zerolog.Logger, options ...ClientOption) (*Facade, error) {
	if cfg.GetClientSecret() == "" {
		return nil, errors.Wrap(errs.ErrInvalidConfig, "[NewFacade] client secret is required")
	}
	client, err := New(cfg, options...)
	if err != nil {
		return nil, errors.Wrap(err, "[NewFacade] identity client")
	}
	return &Facade{
		client:          client,
		defaultProvider: cfg.GetDefaultProvider(),
		logger:          logger.With().Str("component", "identity").Logger(),
	}, nil
}

// AuthorizationURL builds the provider authorization URL, applying the
// configured default provider when none is requested.
func (f *Facade) AuthorizationURL(provider string) string {
	if provider == "" {
		provider = f.defaultProvider
	}
	u := f.client.BuildAuthorizationURL(provider)
	f.logger.Debug().Str("provider", provider).Msg("built authorization URL")
	return u
}

// Exchange performs the one-time code exchange. A replayed code is reported
// at debug level only; it is an expected duplicate-delivery case.
func (f *Facade) Exchange(ctx context.Context, code string) (*TokenBundle, error) {
	bundle, err := f.client.ExchangeCodeForToken(ctx, code)
	switch {
	case err == nil:
		f.logger.Info().Time("expires_at", bundle.ExpiresAt).Msg("authorization code exchanged")
	case errors.Is(err, errs.ErrCodeReplayed):
		f.logger.Debug().Msg("authorization code replay ignored")
	default:
		f.logger.Warn().Err(err).Msg("authorization code exchange failed")
	}
	return bundle, err
}

// Refresh exchanges a refresh token for a new bundle.
func (f *Facade) Refresh(ctx context.Context, refreshToken string) (*TokenBundle, error) {
	bundle, err := f.client.RefreshToken(ctx, refreshToken)
	if err != nil {
		f.logger.Warn().Err(err).Msg("token refresh failed")
		return nil, err
	}
	f.logger.Info().Time("expires_at", bundle.ExpiresAt).Msg("provider token refreshed")
	return bundle, nil
}

// Verify checks the access token against the provider for this service.
func (f *Facade) Verify(ctx context.Context, accessToken string) error {
	return f.client.VerifyToken(ctx, accessToken)
}

// UserInfo fetches the provider profile for an access token.
func (f *Facade) UserInfo(ctx context.Context, accessToken string) (*Profile, error) {
	profile, err := f.client.GetUserInfo(ctx, accessToken)
	if err != nil {
		f.logger.Warn().Err(err).Msg("profile fetch failed")
		return nil, err
	}
	return profile, nil
}

// LogoutURL builds the provider's logout URL with a return-callback
// parameter.
func (f *Facade) LogoutURL(returnTo string) string {
	return f.client.BuildLogoutURL(returnTo)
}

// Logout revokes tokens remotely, best-effort.
func (f *Facade) Logout(ctx context.Context, refreshToken, accessToken string) bool {
	ok := f.client.Logout(ctx, refreshToken, accessToken)
	if !ok {
		f.logger.Warn().Msg("remote logout failed, clearing local session anyway")
	}
	return ok
}
