package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/corebrain/go-session-service/internal/config"
	errs "github.com/corebrain/go-session-service/internal/errors"
)

const (
	ssoTokenPath      = "/v1/auth/sso/token"
	usersPath         = "/v1/auth/users"
	subscriptionsPath = "/v1/subscriptions"
)

// User is the internal service's user record.
type User struct {
	ID       string         `json:"id,omitempty"`
	Email    string         `json:"email"`
	Name     string         `json:"name,omitempty"`
	Roles    []string       `json:"roles,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewUser is the payload for creating an internal user from a provider
// profile. Password is a generated one-time credential; the user never
// signs in with it directly.
type NewUser struct {
	Email    string         `json:"email"`
	Name     string         `json:"name,omitempty"`
	Password string         `json:"password"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ServiceToken is the internal access token minted by bridging a verified
// provider identity.
type ServiceToken struct {
	Token     string
	ExpiresAt time.Time
}

// Client is the HTTP client for the internal CoreBrain API.
type Client struct {
	httpClient  *http.Client
	apiEndpoint string
}

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

// WithHTTPClient sets the underlying HTTP client (primarily for testing).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New initializes a new backend Client from static configuration.
func New(cfg config.BackendConfig, options ...ClientOption) (*Client, error) {
	endpoint := cfg.GetAPIEndpoint()
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, errors.Wrap(errs.ErrInvalidConfig, "[backend.New] API endpoint")
	}

	c := &Client{
		httpClient:  &http.Client{Timeout: cfg.GetRequestTimeout()},
		apiEndpoint: endpoint,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// GetUserByEmail resolves an internal user record by email.
// Returns ErrNotFound when no record exists for the address.
func (c *Client) GetUserByEmail(ctx context.Context, providerToken, email string) (*User, error) {
	endpoint := fmt.Sprintf("%s%s/%s/email", c.apiEndpoint, usersPath, url.PathEscape(email))
	var user User
	if err := c.doJSON(ctx, http.MethodGet, endpoint, providerToken, nil, &user); err != nil {
		return nil, errors.Wrap(err, "[Client.GetUserByEmail]")
	}
	return &user, nil
}

// CreateUser creates an internal user record from a provider profile.
func (c *Client) CreateUser(ctx context.Context, providerToken string, newUser *NewUser) (*User, error) {
	var user User
	if err := c.doJSON(ctx, http.MethodPost, c.apiEndpoint+usersPath, providerToken, newUser, &user); err != nil {
		return nil, errors.Wrap(errs.ErrUserResolution, "[Client.CreateUser] "+err.Error())
	}
	return &user, nil
}

// BridgeToken mints a service token from a currently-valid provider access
// token and the resolved user record.
func (c *Client) BridgeToken(ctx context.Context, providerToken string, user *User) (*ServiceToken, error) {
	request := struct {
		UserData *User `json:"user_data"`
	}{UserData: user}

	var response struct {
		AccessToken struct {
			AccessToken string          `json:"access_token"`
			ExpiresAt   json.RawMessage `json:"expires_at"`
		} `json:"access_token"`
	}
	if err := c.doJSON(ctx, http.MethodPost, c.apiEndpoint+ssoTokenPath, providerToken, request, &response); err != nil {
		return nil, errors.Wrap(errs.ErrServiceTokenBridge, "[Client.BridgeToken] "+err.Error())
	}
	if response.AccessToken.AccessToken == "" {
		return nil, errors.Wrap(errs.ErrServiceTokenBridge, "[Client.BridgeToken] empty service token")
	}

	return &ServiceToken{
		Token:     response.AccessToken.AccessToken,
		ExpiresAt: parseTime(response.AccessToken.ExpiresAt),
	}, nil
}

// doJSON performs a bearer-authenticated JSON round trip. Non-2xx responses
// come back as error values in the shared taxonomy, never as panics.
func (c *Client) doJSON(ctx context.Context, method, endpoint, bearerToken string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(errs.ErrNetwork, err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errs.ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errs.ErrMissingOrExpiredToken
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return errors.Wrapf(errs.ErrNetwork, "status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(errs.ErrNetwork, "decode response")
	}
	return nil
}

// parseTime accepts the API's two expiry encodings: unix seconds or an
// RFC3339 string.
func parseTime(raw json.RawMessage) time.Time {
	if len(raw) == 0 {
		return time.Time{}
	}
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
	return time.Time{}
}
