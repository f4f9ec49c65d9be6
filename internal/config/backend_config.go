package config

import "time"

type BackendConfig interface {
	GetAPIEndpoint() string
	GetRequestTimeout() time.Duration
}

type Backend struct{}

var _ BackendConfig = Backend{}

// GetAPIEndpoint returns the base URL of the internal CoreBrain API.
func (Backend) GetAPIEndpoint() string {
	return GetEnv("API_ENDPOINT", "https://api.corebrain.dev")
}

func (Backend) GetRequestTimeout() time.Duration {
	return 15 * time.Second
}
