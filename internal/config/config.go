package config

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	Port     int
	LogLevel string

	DBURL       string
	JobsEnabled bool

	RedisURL      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret    string
	JWTAccessTTL time.Duration

	UpstreamBaseURL    string
	UpstreamTimeout    time.Duration
	UpstreamBodyFormat string
	UpstreamRateLimit  float64
	ServiceUsername    string
	ServicePassword    string

	MediaBaseURL string
	MediaProject string
	MediaClient  string
	MediaSecret  string
	MediaKey     string
	MediaTimeout time.Duration

	Timezone     *time.Location
	DraftTTL     time.Duration
	ListCacheTTL time.Duration

	CORSAllowedOrigins []string

	OTLPEndpoint   string
	ServiceName    string
	OTelSampleRate float64

	WorkerConcurrency  int
	WorkerPollInterval time.Duration
	WorkerHealthPort   int

	DryRunDelay time.Duration
	DryRunFail  bool
}

// Load reads the environment. A .env file in the working directory is
// loaded first when present; variables already set win over it.
func Load() Config {
	_ = godotenv.Load()

	mediaClient := getEnv("MEDIA_CLIENT", "ovoz")

	return Config{
		Env:      getEnv("APP_ENV", "dev"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", ""),

		DBURL:       buildDBURL(),
		JobsEnabled: getEnvBool("JOBS_ENABLED", false),

		RedisURL:      getEnv("REDIS_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		JWTSecret:    getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTAccessTTL: time.Duration(getEnvInt("JWT_ACCESS_TTL_MINUTES", 60)) * time.Minute,

		UpstreamBaseURL:    strings.TrimRight(getEnv("UPSTREAM_BASE_URL", "http://localhost:3000"), "/"),
		UpstreamTimeout:    getEnvDuration("UPSTREAM_TIMEOUT", 15*time.Second),
		UpstreamBodyFormat: getEnv("UPSTREAM_BODY_FORMAT", "json"),
		UpstreamRateLimit:  getEnvFloat("UPSTREAM_RATE_LIMIT", 20),
		ServiceUsername:    getEnv("UPSTREAM_SERVICE_USERNAME", ""),
		ServicePassword:    getEnv("UPSTREAM_SERVICE_PASSWORD", ""),

		MediaBaseURL: strings.TrimRight(getEnv("MEDIA_BASE_URL", "https://media-api.main-gate.appx.uz"), "/"),
		MediaProject: getEnv("MEDIA_PROJECT", mediaClient),
		MediaClient:  mediaClient,
		MediaSecret:  getEnv("MEDIA_SECRET", ""),
		MediaKey:     getEnv("MEDIA_KEY", ""),
		MediaTimeout: getEnvDuration("MEDIA_TIMEOUT", 30*time.Second),

		Timezone:     getEnvLocation("DASHBOARD_TIMEZONE", time.UTC),
		DraftTTL:     getEnvDuration("DRAFT_TTL", 2*time.Hour),
		ListCacheTTL: getEnvDuration("LIST_CACHE_TTL", 30*time.Second),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),

		OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:    getEnv("OTEL_SERVICE_NAME", "ovoz-admin"),
		OTelSampleRate: getEnvFloat("OTEL_TRACES_SAMPLER_ARG", 1),

		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", 4),
		WorkerPollInterval: getEnvDuration("WORKER_POLL_INTERVAL", time.Second),
		WorkerHealthPort:   getEnvInt("WORKER_HEALTH_PORT", 8081),

		DryRunDelay: getEnvDuration("NOTIFIER_DRY_RUN_DELAY", 0),
		DryRunFail:  getEnvBool("NOTIFIER_DRY_RUN_FAIL", false),
	}
}

func buildDBURL() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "ovoz")
	pass := getEnv("DB_PASSWORD", "ovoz")
	name := getEnv("DB_NAME", "ovoz")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
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
			slog.Warn("invalid int env, using fallback", "key", key, "value", v)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.ParseFloat(v, 64)
		if err != nil {
			slog.Warn("invalid float env, using fallback", "key", key, "value", v)
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
			slog.Warn("invalid bool env, using fallback", "key", key, "value", v)
			return fallback
		}

		return b
	}
	return fallback
}

// getEnvDuration accepts Go durations ("90s") and bare seconds ("90").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	if d, err := time.ParseDuration(v); err == nil {
		return d
	}

	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}

	slog.Warn("invalid duration env, using fallback", "key", key, "value", v)
	return fallback
}

func getEnvLocation(key string, fallback *time.Location) *time.Location {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	loc, err := time.LoadLocation(v)
	if err != nil {
		slog.Warn("unknown timezone, using fallback", "key", key, "value", v)
		return fallback
	}

	return loc
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}

	return out
}
