package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/corebrain/go-session-service/internal/config"
	errs "github.com/corebrain/go-session-service/internal/errors"
)

const (
	authorizePath   = "/api/auth/authorize"
	tokenPath       = "/api/auth/token"
	serviceAuthPath = "/api/auth/service-auth"
	profilePath     = "/api/users/me/profile"
	logoutPath      = "/api/auth/logout"

	defaultProcessedCodeCacheSize = 1024
)

// TokenBundle is the result of a code exchange or refresh.
// ExpiresAt is zero when the provider supplied no expiry and the access
// token carries no exp claim.
type TokenBundle struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Profile is the identity provider's view of the authenticated user.
type Profile struct {
	ID       string
	Email    string
	Name     string
	Metadata map[string]any
}

// Client is a low-level RPC wrapper over the external identity provider.
// Authorization codes are single-use: concurrent exchange attempts for the
// same code are collapsed into one network call, and a completed code is
// remembered so a later replay never reaches the network.
type Client struct {
	httpClient   *http.Client
	identityURL  string
	clientID     string
	clientSecret string
	serviceID    string
	oauthConfig  oauth2.Config

	exchangeGroup  singleflight.Group
	processedCodes *lru.Cache[string, struct{}]
}

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

// WithHTTPClient sets the underlying HTTP client (primarily for testing).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New initializes a new identity Client from static configuration.
// Malformed configuration is the only construction-time failure.
func New(cfg config.IdentityConfig, options ...ClientOption) (*Client, error) {
	identityURL := cfg.GetIdentityURL()
	if _, err := url.ParseRequestURI(identityURL); err != nil {
		return nil, errors.Wrap(errs.ErrInvalidConfig, "[identity.New] identity URL")
	}
	if cfg.GetClientID() == "" {
		return nil, errors.Wrap(errs.ErrInvalidConfig, "[identity.New] client ID is required")
	}
	if cfg.GetRedirectURI() == "" {
		return nil, errors.Wrap(errs.ErrInvalidConfig, "[identity.New] redirect URI is required")
	}

	cacheSize := defaultProcessedCodeCacheSize
	if s, ok := cfg.(config.SessionConfig); ok && s.GetProcessedCodeCacheSize() > 0 {
		cacheSize = s.GetProcessedCodeCacheSize()
	}
	processedCodes, err := lru.New[string, struct{}](cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "[identity.New] processed code cache")
	}

	c := &Client{
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		identityURL:  identityURL,
		clientID:     cfg.GetClientID(),
		clientSecret: cfg.GetClientSecret(),
		serviceID:    cfg.GetServiceID(),
		oauthConfig: oauth2.Config{
			ClientID:    cfg.GetClientID(),
			RedirectURL: cfg.GetRedirectURI(),
			Endpoint: oauth2.Endpoint{
				AuthURL:  identityURL + authorizePath,
				TokenURL: identityURL + tokenPath,
			},
		},
		processedCodes: processedCodes,
	}

	for _, opt := range options {
		opt(c)
	}

	return c, nil
}

// BuildAuthorizationURL constructs the provider's authorization URL.
// Pure URL construction, no side effects. provider selects an upstream
// social provider and may be empty.
func (c *Client) BuildAuthorizationURL(provider string) string {
	if provider == "" {
		return c.oauthConfig.AuthCodeURL("")
	}
	return c.oauthConfig.AuthCodeURL("", oauth2.SetAuthURLParam("provider", provider))
}

// ExchangeCodeForToken exchanges an authorization code for a token bundle.
// Codes are one-time-use: a repeated exchange for a code that already
// completed returns ErrCodeReplayed without a network call, and concurrent
// attempts for the same code share a single in-flight request.
func (c *Client) ExchangeCodeForToken(ctx context.Context, code string) (*TokenBundle, error) {
	if code == "" {
		return nil, errors.Wrap(errs.ErrInvalidGrant, "[Client.ExchangeCodeForToken] empty code")
	}
	if _, seen := c.processedCodes.Get(code); seen {
		return nil, errs.ErrCodeReplayed
	}

	v, err, _ := c.exchangeGroup.Do(code, func() (any, error) {
		// Re-check under the flight: a caller may have completed the
		// exchange between the fast-path check and Do.
		if _, seen := c.processedCodes.Get(code); seen {
			return nil, errs.ErrCodeReplayed
		}
		bundle, err := c.requestToken(ctx, tokenRequest{
			GrantType:   "authorization_code",
			Code:        code,
			RedirectURI: c.oauthConfig.RedirectURL,
		})
		if err == nil || errors.Is(err, errs.ErrInvalidGrant) {
			// Either we consumed the code or the provider already
			// considers it burned. Both make replays pointless.
			c.processedCodes.Add(code, struct{}{})
		}
		return bundle, err
	})
	if err != nil {
		return nil, err
	}
	return v.(*TokenBundle), nil
}

// RefreshToken exchanges a refresh token for a new bundle. A provider
// rejection means the refresh token is no longer usable and the session
// holding it is terminal.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenBundle, error) {
	if refreshToken == "" {
		return nil, errors.Wrap(errs.ErrRefreshRejected, "[Client.RefreshToken] empty refresh token")
	}
	bundle, err := c.requestToken(ctx, tokenRequest{
		GrantType:    "refresh_token",
		RefreshToken: refreshToken,
	})
	if errors.Is(err, errs.ErrInvalidGrant) {
		return nil, errors.Wrap(errs.ErrRefreshRejected, "[Client.RefreshToken] provider rejected refresh token")
	}
	if err != nil {
		return nil, err
	}
	return bundle, nil
}

// VerifyToken validates an access token with the provider for this service.
// It does not mutate client state.
func (c *Client) VerifyToken(ctx context.Context, accessToken string) error {
	endpoint := fmt.Sprintf("%s%s?service_id=%s", c.identityURL, serviceAuthPath, url.QueryEscape(c.serviceID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return errors.Wrap(err, "[Client.VerifyToken] build request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(errs.ErrNetwork, "[Client.VerifyToken] "+err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errs.ErrTokenNotVerified
	default:
		return errors.Wrapf(errs.ErrNetwork, "[Client.VerifyToken] status %d", resp.StatusCode)
	}
}

// GetUserInfo fetches the provider profile for an access token.
func (c *Client) GetUserInfo(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.identityURL+profilePath, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.GetUserInfo] build request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(errs.ErrNetwork, "[Client.GetUserInfo] "+err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, errs.ErrTokenNotVerified
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Wrapf(errs.ErrProfileFetch, "[Client.GetUserInfo] status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(errs.ErrProfileFetch, "[Client.GetUserInfo] "+err.Error())
	}

	var known struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.Unmarshal(body, &known); err != nil {
		return nil, errors.Wrap(errs.ErrProfileFetch, "[Client.GetUserInfo] decode profile")
	}

	// Keep the raw fields the provider sent beyond the typed ones; they are
	// forwarded on user creation.
	metadata := map[string]any{}
	_ = json.Unmarshal(body, &metadata)
	delete(metadata, "id")
	delete(metadata, "email")
	delete(metadata, "name")

	return &Profile{
		ID:       known.ID,
		Email:    known.Email,
		Name:     known.Name,
		Metadata: metadata,
	}, nil
}

// BuildLogoutURL constructs the provider's interactive logout URL with a
// return-callback parameter, for the logout round trip back to this app.
// Pure URL construction, no side effects.
func (c *Client) BuildLogoutURL(returnTo string) string {
	return fmt.Sprintf("%s%s?returnTo=%s", c.identityURL, logoutPath, url.QueryEscape(returnTo))
}

// Logout revokes the tokens remotely. Best-effort: callers clear local
// session state regardless of the returned value.
func (c *Client) Logout(ctx context.Context, refreshToken, accessToken string) bool {
	endpoint := fmt.Sprintf("%s%s?refresh_token=%s", c.identityURL, logoutPath, url.QueryEscape(refreshToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Code         string `json:"code,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	GrantType    string `json:"grant_type"`
	RedirectURI  string `json:"redirect_uri,omitempty"`
	ServiceID    string `json:"service_id"`
}

type tokenResponse struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	ExpiresAt    json.RawMessage `json:"expires_at"`
}

func (c *Client) requestToken(ctx context.Context, tr tokenRequest) (*TokenBundle, error) {
	tr.ClientID = c.clientID
	tr.ClientSecret = c.clientSecret
	tr.ServiceID = c.serviceID

	payload, err := json.Marshal(tr)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.requestToken] marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.identityURL+tokenPath, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "[Client.requestToken] build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(errs.ErrNetwork, "[Client.requestToken] "+err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil, errors.Wrapf(errs.ErrInvalidGrant, "[Client.requestToken] status %d", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Wrapf(errs.ErrNetwork, "[Client.requestToken] status %d", resp.StatusCode)
	}

	var tokenResp tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, errors.Wrap(errs.ErrNetwork, "[Client.requestToken] decode response")
	}
	if tokenResp.AccessToken == "" {
		return nil, errors.Wrap(errs.ErrInvalidGrant, "[Client.requestToken] empty access token")
	}

	return &TokenBundle{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		ExpiresAt:    resolveExpiry(tokenResp.ExpiresAt, tokenResp.AccessToken),
	}, nil
}

// resolveExpiry parses the provider's expires_at field, which arrives as
// unix seconds or an RFC3339 string. When absent, it falls back to the exp
// claim of the access token itself.
func resolveExpiry(raw json.RawMessage, accessToken string) time.Time {
	if len(raw) > 0 {
		var unix int64
		if err := json.Unmarshal(raw, &unix); err == nil && unix > 0 {
			return time.Unix(unix, 0)
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				return t
			}
			if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
				return time.Unix(unix, 0)
			}
		}
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
