package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingSecret is returned by Load when no signing secret is configured.
// The service must not start without one.
var ErrMissingSecret = errors.New("secret key could not be extracted from environment (JWT_SECRET or SECRET_KEY)")

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Env  string
	Port int

	StoreDriver string
	DBURL       string
	SQLitePath  string

	JWTSecret       string
	TokenTTLSeconds int
	BcryptCost      int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RateLimitRequests      int
	RateLimitWindowSeconds int

	NATSURL     string
	NATSSubject string

	OTLPEndpoint string

	CORSAllowedOrigins []string
	MaxBodyBytes       int64

	// proxies whose X-Forwarded-For is believed; empty means none
	TrustedProxies []string

	// optional account created at startup when absent
	SeedUserName string
	SeedEmail    string
	SeedPassword string
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	cfg := Config{
		Env:  getEnv("APP_ENV", "dev"),
		Port: getEnvInt("PORT", 8080),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StoreDriverSQLite)),
		DBURL:       getEnv("DATABASE_URL", buildDBURL()),
		SQLitePath:  getEnv("SQLITE_PATH", "database/data.sqlite"),

		JWTSecret:       getEnv("JWT_SECRET", os.Getenv("SECRET_KEY")),
		TokenTTLSeconds: getEnvInt("TOKEN_TTL_SECONDS", 300),
		BcryptCost:      getEnvInt("BCRYPT_COST", 10),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RateLimitRequests:      getEnvInt("RATE_LIMIT_REQUESTS", 20),
		RateLimitWindowSeconds: getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60),

		NATSURL:     getEnv("NATS_URL", ""),
		NATSSubject: getEnv("NATS_SUBJECT", "identity.user.registered"),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),
		MaxBodyBytes:       int64(getEnvInt("MAX_BODY_BYTES", 1<<20)),
		TrustedProxies:     splitList(getEnv("TRUSTED_PROXIES", "")),

		SeedUserName: getEnv("SEED_USER_NAME", "admin"),
		SeedEmail:    getEnv("SEED_EMAIL", ""),
		SeedPassword: getEnv("SEED_PASSWORD", ""),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return ErrMissingSecret
	}

	if c.TokenTTLSeconds <= 0 {
		return fmt.Errorf("TOKEN_TTL_SECONDS must be positive, got %d", c.TokenTTLSeconds)
	}

	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverSQLite, StoreDriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	return nil
}

func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLSeconds) * time.Second
}

func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "identity")
	pass := getEnv("DB_PASSWORD", "identity")
	name := getEnv("DB_NAME", "identity")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

// WithTimeout bounds a store or startup call.
func WithTimeout(parent context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			return fallback
		}

		return num
	}
	return fallback
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}

	out := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
