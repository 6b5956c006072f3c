package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures everything the server needs from the environment so main
// stays lean. Zero values select the in-memory/dev implementations.
type Config struct {
	Addr        string
	MetricsAddr string

	// PostgresURL selects the postgres stores when set; otherwise the
	// in-memory twins are used (dev and tests).
	PostgresURL string

	// RedisURL selects the Redis-backed challenge store when set.
	RedisURL string

	SMTP SMTP

	// AdminSigningKey signs the capability tokens required by destructive
	// operations (deletes, cancel of an assigned request).
	AdminSigningKey string

	// ChallengeTTL bounds how long an issued verification code stays valid.
	ChallengeTTL time.Duration

	// LowStockThreshold marks inventory records as low on the summary.
	LowStockThreshold int

	// InactiveDonorAfter flags donors with no donation inside the window.
	InactiveDonorAfter time.Duration
}

// SMTP configures the outbound mail transport. Empty Host selects the
// logging sender (codes land in the server log, dev only).
type SMTP struct {
	Host     string
	Port     int
	Sender   string
	Password string
	StartTLS bool
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:               envOr("BLOODLINK_ADDR", ":8080"),
		MetricsAddr:        envOr("BLOODLINK_METRICS_ADDR", ":9090"),
		PostgresURL:        os.Getenv("BLOODLINK_POSTGRES_URL"),
		RedisURL:           os.Getenv("BLOODLINK_REDIS_URL"),
		AdminSigningKey:    envOr("BLOODLINK_ADMIN_SIGNING_KEY", "dev-secret-key-change-in-production"),
		ChallengeTTL:       5 * time.Minute,
		LowStockThreshold:  5,
		InactiveDonorAfter: 180 * 24 * time.Hour,
	}

	if ttl := os.Getenv("BLOODLINK_CHALLENGE_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil && d > 0 {
			cfg.ChallengeTTL = d
		}
	}

	cfg.SMTP = SMTP{
		Host:     os.Getenv("BLOODLINK_SMTP_HOST"),
		Port:     envIntOr("BLOODLINK_SMTP_PORT", 587),
		Sender:   os.Getenv("BLOODLINK_SMTP_SENDER"),
		Password: os.Getenv("BLOODLINK_SMTP_PASSWORD"),
		StartTLS: os.Getenv("BLOODLINK_SMTP_STARTTLS") != "false",
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
