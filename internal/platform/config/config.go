// Package config builds runtime configuration from the environment so main
// stays lean. Every subsystem is optional: with no Postgres, Redis, or Kafka
// configured the service runs entirely in memory, which is what local
// development and the test suite use.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	platformstrings "zenid/pkg/platform/strings"
)

// Config is the full runtime configuration.
type Config struct {
	Server   Server
	Postgres Postgres
	Redis    Redis
	Kafka    Kafka
	Session  Session
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	AdminToken    string
}

// Postgres configures the session and audit stores. An empty DSN selects the
// in-memory stores.
type Postgres struct {
	DSN string
}

// Redis configures the delivery token store. An empty URL selects the
// in-memory store.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka configures the audit event publisher. No brokers means audit events
// stay local.
type Kafka struct {
	Brokers []string
	Topic   string
}

// Session holds pipeline-level defaults.
type Session struct {
	PolicyFile string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:          envOr("ZENID_ADDR", ":8080"),
			JWTSigningKey: envOr("ZENID_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			JWTIssuer:     envOr("ZENID_JWT_ISSUER", "zenid"),
			JWTAudience:   envOr("ZENID_JWT_AUDIENCE", "zenid-api"),
			AdminToken:    os.Getenv("ZENID_ADMIN_TOKEN"),
		},
		Postgres: Postgres{
			DSN: os.Getenv("ZENID_POSTGRES_DSN"),
		},
		Redis: Redis{
			URL:          os.Getenv("ZENID_REDIS_URL"),
			PoolSize:     envInt("ZENID_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("ZENID_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("ZENID_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("ZENID_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("ZENID_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers: splitNonEmpty(os.Getenv("ZENID_KAFKA_BROKERS")),
			Topic:   envOr("ZENID_KAFKA_TOPIC", "zenid.audit.events"),
		},
		Session: Session{
			PolicyFile: os.Getenv("ZENID_POLICY_FILE"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return platformstrings.DedupeAndTrim(strings.Split(s, ","))
}
