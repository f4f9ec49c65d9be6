package config

type IdentityConfig interface {
	GetIdentityURL() string
	GetClientID() string
	GetClientSecret() string
	GetServiceID() string
	GetRedirectURI() string
	GetDefaultProvider() string
}

type Identity struct{}

var _ IdentityConfig = Identity{}

// GetIdentityURL returns the base URL of the external identity provider.
func (Identity) GetIdentityURL() string {
	return GetEnv("IDENTITY_URL", "https://identity.corebrain.dev")
}

func (Identity) GetClientID() string {
	return GetEnv("IDENTITY_CLIENT_ID", "")
}

func (Identity) GetClientSecret() string {
	return GetEnv("IDENTITY_CLIENT_SECRET", "")
}

// GetServiceID identifies this service to the identity provider when
// exchanging and bridging tokens.
func (Identity) GetServiceID() string {
	return GetEnv("IDENTITY_SERVICE_ID", "corebrain-dashboard")
}

func (i Identity) GetRedirectURI() string {
	return GetEnv("IDENTITY_REDIRECT_URI", EnvVars{}.GetBaseURL()+"/auth/callback")
}

func (Identity) GetDefaultProvider() string {
	return GetEnv("IDENTITY_DEFAULT_PROVIDER", "")
}
