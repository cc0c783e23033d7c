package config

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env  string
	Port int

	// Store selects the document store adapter: "mongo" or "memory".
	Store         string
	MongoURI      string
	MongoDatabase string

	JWTSecret         string
	JWTExpiresIn      time.Duration
	JWTCookieExpireIn time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RateLimitMax    int
	RateLimitWindow time.Duration
	MaxBodyBytes    int64
	CORSOrigins     []string
	ListCacheTTL    time.Duration

	MailProvider   string
	MailFrom       string
	SendGridAPIKey string
	MailgunDomain  string
	MailgunAPIKey  string
	MailTimeout    time.Duration

	OtelEnabled  bool
	OtelEndpoint string

	AdminEmail    string
	AdminPassword string
	AdminName     string
}

func Load() Config {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	return Config{
		Env:  getEnv("APP_ENV", "dev"),
		Port: getEnvInt("PORT", 8080),

		Store:         getEnv("STORE", "mongo"),
		MongoURI:      getEnv("MONGODB_URI", "mongodb://127.0.0.1:27017"),
		MongoDatabase: getEnv("MONGODB_DATABASE", "tourhub"),

		JWTSecret:         getEnv("JWT_SECRET", ""),
		JWTExpiresIn:      getEnvDuration("JWT_EXPIRES_IN", 90*24*time.Hour),
		JWTCookieExpireIn: time.Duration(getEnvInt("JWT_COOKIE_EXPIRES_IN_DAYS", 90)) * 24 * time.Hour,

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RateLimitMax:    getEnvInt("RATE_LIMIT_MAX", 100),
		RateLimitWindow: getEnvDuration("RATE_LIMIT_WINDOW", time.Hour),
		MaxBodyBytes:    int64(getEnvInt("MAX_BODY_BYTES", 10*1024)),
		CORSOrigins:     splitList(getEnv("CORS_ORIGINS", "")),
		ListCacheTTL:    getEnvDuration("LIST_CACHE_TTL", 5*time.Second),

		MailProvider:   getEnv("MAIL_PROVIDER", "log"),
		MailFrom:       getEnv("MAIL_FROM", "tourhub <hello@tourhub.io>"),
		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		MailgunDomain:  getEnv("MAILGUN_DOMAIN", ""),
		MailgunAPIKey:  getEnv("MAILGUN_API_KEY", ""),
		MailTimeout:    getEnvDuration("MAIL_TIMEOUT", 5*time.Second),

		OtelEnabled:  getEnvBool("OTEL_ENABLED", false),
		OtelEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		AdminEmail:    strings.ToLower(strings.TrimSpace(getEnv("ADMIN_EMAIL", ""))),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		AdminName:     getEnv("ADMIN_NAME", "Admin"),
	}
}

// IsDev reports whether the process runs in development mode.
func (c Config) IsDev() bool {
	return c.Env == "dev"
}

func (c Config) IsProd() bool {
	return c.Env == "prod" || c.Env == "production"
}

// Validate refuses configurations that would issue forgeable tokens.
func (c Config) Validate() error {
	if c.JWTSecret == "" && !c.IsDev() {
		return errors.New("JWT_SECRET must be set outside dev")
	}
	if c.JWTExpiresIn <= 0 {
		return errors.New("JWT_EXPIRES_IN must be positive")
	}
	switch c.Store {
	case "mongo", "memory":
	default:
		return errors.New("STORE must be mongo or memory")
	}
	switch c.MailProvider {
	case "log", "sendgrid", "mailgun":
	default:
		return errors.New("MAIL_PROVIDER must be log, sendgrid or mailgun")
	}
	return nil
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
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
			slog.Warn("invalid integer env, using fallback", "key", key, "err", err)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return b
	}
	return fallback
}

// getEnvDuration accepts Go durations ("90m") and bare day counts ("90d").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	if days, ok := strings.CutSuffix(v, "d"); ok {
		n, err := strconv.Atoi(days)
		if err == nil {
			return time.Duration(n) * 24 * time.Hour
		}
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration env, using fallback", "key", key, "err", err)
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
