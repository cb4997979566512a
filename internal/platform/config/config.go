package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config groups all runtime configuration. Values come from the environment
// so main stays lean; every external system is optional and the server falls
// back to in-process implementations when a URL is absent.
type Config struct {
	Server   Server
	Postgres Postgres
	Redis    Redis
	Kafka    Kafka
	CheckIn  CheckIn
	Ledger   Ledger
	Reminder Reminder
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr string
}

// Postgres configures the pgx connection pool. An empty URL selects the
// in-memory stores and ledger.
type Postgres struct {
	URL string
}

// Redis configures the broadcast pub/sub client. An empty URL selects the
// in-memory broadcast sink.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka configures the notification producer. Empty brokers select the
// in-memory notification sink.
type Kafka struct {
	Brokers            []string
	NotificationsTopic string
}

// CheckIn configures check-in token signing.
type CheckIn struct {
	SigningKey string
}

// Ledger bounds lock acquisition so a contended event never hangs a request.
type Ledger struct {
	LockTimeout time.Duration
}

// Reminder configures the upcoming-event reminder worker.
type Reminder struct {
	Horizon  time.Duration
	Interval time.Duration
}

// FromEnv builds the configuration from environment variables with
// development defaults.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr: envOr("CAMPUSHUB_ADDR", ":8080"),
		},
		Postgres: Postgres{
			URL: os.Getenv("DATABASE_URL"),
		},
		Redis: Redis{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envIntOr("REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDurationOr("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDurationOr("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDurationOr("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers:            splitNonEmpty(os.Getenv("KAFKA_BROKERS")),
			NotificationsTopic: envOr("KAFKA_NOTIFICATIONS_TOPIC", "campushub.notifications"),
		},
		CheckIn: CheckIn{
			// Override in production.
			SigningKey: envOr("CHECKIN_SIGNING_KEY", "dev-checkin-key-change-in-production"),
		},
		Ledger: Ledger{
			LockTimeout: envDurationOr("LEDGER_LOCK_TIMEOUT", 5*time.Second),
		},
		Reminder: Reminder{
			Horizon:  envDurationOr("REMINDER_HORIZON", 24*time.Hour),
			Interval: envDurationOr("REMINDER_INTERVAL", 5*time.Minute),
		},
	}
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

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
