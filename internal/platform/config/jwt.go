package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// JWTConfig points the verifier at the identity provider customers sign in with.
type JWTConfig struct {
	Issuer   string
	Audience string
	JWKSURL  string

	ClockSkew              time.Duration
	JWKSRefreshInterval    time.Duration
	JWKSMinRefreshInterval time.Duration

	HTTPTimeout time.Duration
}

func LoadJWTConfigFromEnv() (JWTConfig, error) {
	cfg := JWTConfig{
		Issuer:                 strings.TrimSpace(os.Getenv("JWT_ISSUER")),
		Audience:               strings.TrimSpace(os.Getenv("JWT_AUDIENCE")),
		JWKSURL:                strings.TrimSpace(os.Getenv("JWT_JWKS_URL")),
		ClockSkew:              30 * time.Second,
		JWKSRefreshInterval:    5 * time.Minute,
		JWKSMinRefreshInterval: 10 * time.Second,
		HTTPTimeout:            5 * time.Second,
	}

	var missing []string
	for _, req := range []struct{ key, val string }{
		{"JWT_ISSUER", cfg.Issuer},
		{"JWT_AUDIENCE", cfg.Audience},
		{"JWT_JWKS_URL", cfg.JWKSURL},
	} {
		if req.val == "" {
			missing = append(missing, req.key)
		}
	}
	if len(missing) > 0 {
		return JWTConfig{}, fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}

	err := overrideDurations(
		durationEnv{"JWT_CLOCK_SKEW", &cfg.ClockSkew},
		durationEnv{"JWT_JWKS_REFRESH_INTERVAL", &cfg.JWKSRefreshInterval},
		durationEnv{"JWT_JWKS_MIN_REFRESH_INTERVAL", &cfg.JWKSMinRefreshInterval},
		durationEnv{"JWT_JWKS_HTTP_TIMEOUT", &cfg.HTTPTimeout},
	)
	if err != nil {
		return JWTConfig{}, err
	}
	return cfg, nil
}

type durationEnv struct {
	key string
	dst *time.Duration
}

// overrideDurations replaces each default whose variable is set. Non-positive
// values are rejected.
func overrideDurations(envs ...durationEnv) error {
	for _, e := range envs {
		v := strings.TrimSpace(os.Getenv(e.key))
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s must be a duration (e.g. %s): %w", e.key, *e.dst, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive (got %s)", e.key, v)
		}
		*e.dst = d
	}
	return nil
}
