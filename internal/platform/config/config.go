package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	pstrings "garrison/pkg/platform/strings"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string

	// DebugOTP echoes issued verification codes back in API responses.
	// Never enable outside development.
	DebugOTP bool

	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
}

// RedisConfig holds connection settings for the Redis-backed stores.
// An empty URL means Redis is not configured and in-memory stores are used.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig holds the database connection string. Empty means no
// database is configured.
type PostgresConfig struct {
	DSN string
}

// KafkaConfig holds the audit sink brokers. Empty means audit events stay
// in the primary store only.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// PendingRegistrationTTL bounds how long an unfinished registration is kept
// before the sweeper reclaims it.
var PendingRegistrationTTL = 7 * 24 * time.Hour

// DevJWTSigningKey backs debug deployments that set no key of their own.
// Tokens signed with it are worthless; Validate keeps it out of production.
const DevJWTSigningKey = "dev-secret-key-change-in-production"

// Validate rejects configurations that would be unsafe to run.
func (s Server) Validate() error {
	if s.JWTSigningKey == "" && !s.DebugOTP {
		return errors.New("JWT_SIGNING_KEY is required outside debug mode")
	}
	return nil
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("GARRISON_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	return Server{
		Addr:          addr,
		JWTSigningKey: os.Getenv("JWT_SIGNING_KEY"),
		DebugOTP:      os.Getenv("GARRISON_DEBUG_OTP") == "true",
		Redis:         redisFromEnv(),
		Postgres:      PostgresConfig{DSN: os.Getenv("GARRISON_POSTGRES_DSN")},
		Kafka:         kafkaFromEnv(),
	}
}

func redisFromEnv() RedisConfig {
	return RedisConfig{
		URL:          os.Getenv("GARRISON_REDIS_URL"),
		PoolSize:     envInt("GARRISON_REDIS_POOL_SIZE", 10),
		MinIdleConns: envInt("GARRISON_REDIS_MIN_IDLE", 2),
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

func kafkaFromEnv() KafkaConfig {
	raw := os.Getenv("GARRISON_KAFKA_BROKERS")
	if raw == "" {
		return KafkaConfig{}
	}
	brokers := pstrings.DedupeAndTrim(strings.Split(raw, ","))
	topic := os.Getenv("GARRISON_KAFKA_AUDIT_TOPIC")
	return KafkaConfig{Brokers: brokers, Topic: topic}
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
