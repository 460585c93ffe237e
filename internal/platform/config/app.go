package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

type AuthMode string

const (
	AuthModeJWT AuthMode = "jwt"
	// AuthModeDevHeader trusts X-Debug-Email and friends. Local development only.
	AuthModeDevHeader AuthMode = "dev"
)

type StorageBackend string

const (
	StorageMemory   StorageBackend = "memory"
	StoragePostgres StorageBackend = "postgres"
)

type AuditSink string

const (
	AuditSinkLog      AuditSink = "log"
	AuditSinkPostgres AuditSink = "postgres"
	AuditSinkNATS     AuditSink = "nats"
	AuditSinkAMQP     AuditSink = "amqp"
)

// AppConfig is the process-level configuration for cmd/api.
type AppConfig struct {
	Port string

	AuthMode       AuthMode
	StorageBackend StorageBackend
	DatabaseURL    string

	MediaDir string
	// MediaBaseURL prefixes stored media paths to form the locators clients see.
	MediaBaseURL string

	RedisAddr     string
	RedisPassword string

	AuditSink    AuditSink
	NATSURL      string
	NATSSubject  string
	AMQPURL      string
	AMQPExchange string

	ReconcileTimeout time.Duration
	QueryTimeout     time.Duration

	LogLevel string
	LogFile  string
}

func LoadAppConfigFromEnv() (AppConfig, error) {
	cfg := AppConfig{
		Port:             envOr("PORT", "8080"),
		AuthMode:         AuthMode(strings.ToLower(envOr("AUTH_MODE", string(AuthModeJWT)))),
		StorageBackend:   StorageBackend(strings.ToLower(envOr("STORAGE_BACKEND", string(StorageMemory)))),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		MediaDir:         envOr("MEDIA_DIR", "./data/ride-photos"),
		MediaBaseURL:     envOr("MEDIA_BASE_URL", "/media"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		AuditSink:        AuditSink(strings.ToLower(envOr("AUDIT_SINK", string(AuditSinkLog)))),
		NATSURL:          os.Getenv("NATS_URL"),
		NATSSubject:      envOr("NATS_SUBJECT", "booking.actions"),
		AMQPURL:          os.Getenv("AMQP_URL"),
		AMQPExchange:     envOr("AMQP_EXCHANGE", "booking_actions"),
		ReconcileTimeout: 2 * time.Second,
		QueryTimeout:     3 * time.Second,
		LogLevel:         envOr("LOG_LEVEL", "info"),
		LogFile:          os.Getenv("LOG_FILE"),
	}

	switch cfg.AuthMode {
	case AuthModeJWT, AuthModeDevHeader:
	default:
		return AppConfig{}, fmt.Errorf("AUTH_MODE must be one of jwt, dev (got %q)", cfg.AuthMode)
	}

	switch cfg.StorageBackend {
	case StorageMemory:
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			return AppConfig{}, fmt.Errorf("DATABASE_URL is required when STORAGE_BACKEND=postgres")
		}
	default:
		return AppConfig{}, fmt.Errorf("STORAGE_BACKEND must be one of memory, postgres (got %q)", cfg.StorageBackend)
	}

	switch cfg.AuditSink {
	case AuditSinkLog:
	case AuditSinkPostgres:
		if cfg.StorageBackend != StoragePostgres {
			return AppConfig{}, fmt.Errorf("AUDIT_SINK=postgres requires STORAGE_BACKEND=postgres")
		}
	case AuditSinkNATS:
		if cfg.NATSURL == "" {
			return AppConfig{}, fmt.Errorf("NATS_URL is required when AUDIT_SINK=nats")
		}
	case AuditSinkAMQP:
		if cfg.AMQPURL == "" {
			return AppConfig{}, fmt.Errorf("AMQP_URL is required when AUDIT_SINK=amqp")
		}
	default:
		return AppConfig{}, fmt.Errorf("AUDIT_SINK must be one of log, postgres, nats, amqp (got %q)", cfg.AuditSink)
	}

	err := overrideDurations(
		durationEnv{"RECONCILE_TIMEOUT", &cfg.ReconcileTimeout},
		durationEnv{"RECONCILE_QUERY_TIMEOUT", &cfg.QueryTimeout},
	)
	if err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
