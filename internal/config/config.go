package config

type Config interface {
	EnvConfig
	OAuthConfig
	SessionConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetAPIBaseURL() string
	GetTokenFilePath() string
	GetKeyringService() string
}

type mainConfig struct {
	EnvVars
	OAuth
	Session
}

func New() Config {
	return mainConfig{}
}
