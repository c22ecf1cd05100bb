package config

import "time"

type SessionConfig interface {
	GetRefreshSkew() time.Duration
	GetRefreshCheckInterval() time.Duration
	GetRequestTimeout() time.Duration
}

type Session struct{}

var _ SessionConfig = Session{}

// GetRefreshSkew is the lead time before token expiry at which a proactive
// refresh is triggered.
func (Session) GetRefreshSkew() time.Duration {
	return getDuration("REFRESH_SKEW", 5*time.Minute)
}

func (Session) GetRefreshCheckInterval() time.Duration {
	return getDuration("REFRESH_CHECK_INTERVAL", time.Minute)
}

func (Session) GetRequestTimeout() time.Duration {
	return getDuration("REQUEST_TIMEOUT", 30*time.Second)
}

func getDuration(envVar string, defaultValue time.Duration) time.Duration {
	raw := GetEnv(envVar, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue
	}
	return d
}
