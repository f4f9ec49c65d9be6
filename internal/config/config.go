package config

type Config interface {
	EnvConfig
	IdentityConfig
	BackendConfig
	SessionConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
}

type mainConfig struct {
	EnvVars
	Identity
	Backend
	Session
}

func New() Config {
	return mainConfig{}
}
