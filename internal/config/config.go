package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	CORSAllowedOrigins []string

	LogFormat          string
	LogLevel           string
	MetricsNamespace   string
	MetricsEnabled     bool
	MetricsBucketsMS   string
	TracingEnabled     bool
	TracingExporter    string
	OTLPEndpoint       string
	TracingSampleRatio float64

	SecurityHeadersEnabled  bool
	HSTSEnabled             bool
	SecurityNoStorePrefixes []string
	RequestBodyLimitBytes   int64
	TrustProxyHeaders       bool

	StatementMaxBookings int

	RateLimitEnabled  bool
	RateLimitStore    string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RedisURL          string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		LogFormat:          valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:           valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		MetricsNamespace:   valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "invoicing"),
		MetricsEnabled:     parseBoolDefault(k.String("OBS_ENABLE_PROMETHEUS"), true),
		MetricsBucketsMS:   strings.TrimSpace(k.String("OBS_METRICS_BUCKETS_MS")),
		TracingEnabled:     parseBoolDefault(k.String("OBS_ENABLE_TRACING"), false),
		TracingExporter:    valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
		OTLPEndpoint:       strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
		TracingSampleRatio: parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),

		SecurityHeadersEnabled:  parseBoolDefault(k.String("SECURITY_HEADERS_ENABLED"), true),
		HSTSEnabled:             parseBoolDefault(k.String("SECURITY_HSTS_ENABLED"), false),
		SecurityNoStorePrefixes: splitAndTrim(valueOrDefault(k.String("SECURITY_NO_STORE_PREFIXES"), "/api/v1")),
		RequestBodyLimitBytes:   parseInt64(k.String("REQUEST_BODY_LIMIT_BYTES"), 1<<20),
		TrustProxyHeaders:       parseBoolDefault(k.String("TRUST_PROXY_HEADERS"), false),

		StatementMaxBookings: int(parseInt64(k.String("STATEMENT_MAX_BOOKINGS"), 1000)),

		RateLimitEnabled:  parseBoolDefault(k.String("RATE_LIMIT_ENABLED"), true),
		RateLimitStore:    strings.ToLower(valueOrDefault(k.String("RATE_LIMIT_STORE"), "memory")),
		RateLimitRequests: int(parseInt64(k.String("RATE_LIMIT_REQUESTS"), 120)),
		RateLimitWindow:   parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		RedisURL:          strings.TrimSpace(k.String("REDIS_URL")),

		ReadTimeout:     parseDuration(k.String("SERVER_READ_TIMEOUT"), "15s"),
		WriteTimeout:    parseDuration(k.String("SERVER_WRITE_TIMEOUT"), "15s"),
		ShutdownTimeout: parseDuration(k.String("SERVER_SHUTDOWN_TIMEOUT"), "10s"),
	}

	if cfg.RequestBodyLimitBytes <= 0 {
		return nil, errors.New("REQUEST_BODY_LIMIT_BYTES must be positive")
	}
	if cfg.StatementMaxBookings < 0 {
		return nil, errors.New("STATEMENT_MAX_BOOKINGS must not be negative")
	}
	if cfg.RateLimitEnabled {
		switch cfg.RateLimitStore {
		case "memory":
		case "redis", "sliding":
			if cfg.RedisURL == "" {
				return nil, fmt.Errorf("REDIS_URL is required for RATE_LIMIT_STORE=%s", cfg.RateLimitStore)
			}
		default:
			return nil, fmt.Errorf("unsupported RATE_LIMIT_STORE %q", cfg.RateLimitStore)
		}
		if cfg.RateLimitRequests <= 0 {
			return nil, errors.New("RATE_LIMIT_REQUESTS must be positive")
		}
		if cfg.RateLimitWindow <= 0 {
			return nil, errors.New("RATE_LIMIT_WINDOW must be positive")
		}
	}
	if cfg.TracingSampleRatio < 0 || cfg.TracingSampleRatio > 1 {
		return nil, errors.New("OBS_TRACING_SAMPLING_RATIO must be between 0 and 1")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// AllowedOrigins returns the CORS allowlist, defaulting to every origin.
func (c *Config) AllowedOrigins() []string {
	if len(c.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return c.CORSAllowedOrigins
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseInt64(value string, fallback int64) int64 {
	parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
