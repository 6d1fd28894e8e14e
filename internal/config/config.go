package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	LLM          LLMConfig
	RateLimit    RateLimitConfig
	Worker       WorkerConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	CORSOrigins           []string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level       string
	Development bool
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// NotificationConfig controls outbound copies of stored notifications.
type NotificationConfig struct {
	WebhookURL     string
	WebhookTimeout time.Duration
}

// LLMConfig points the AI assistant at an OpenAI-compatible endpoint.
type LLMConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	MaxTokens      int
	TimeoutSeconds int
}

// Enabled reports whether an API key was configured.
func (l LLMConfig) Enabled() bool {
	return strings.TrimSpace(l.APIKey) != ""
}

// RateLimitConfig bounds request volume.
type RateLimitConfig struct {
	RequestsPerSecond   int
	Burst               int
	AIRequestsPerMinute int
}

// WorkerConfig configures background jobs.
type WorkerConfig struct {
	OverdueScanInterval time.Duration
	OverdueBatchSize    int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	env := getEnv("APP_ENV", "development")

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "tadbeer-helpdesk"),
			Env:                   env,
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			CORSOrigins:           getEnvAsList("CORS_ORIGINS", []string{"http://localhost:5173"}),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: env != "production",
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60*24),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Notification: NotificationConfig{
			WebhookURL:     getEnv("NOTIFY_WEBHOOK_URL", ""),
			WebhookTimeout: time.Duration(getEnvAsInt("NOTIFY_WEBHOOK_TIMEOUT_SECONDS", 5)) * time.Second,
		},
		LLM: LLMConfig{
			BaseURL:        getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
			APIKey:         os.Getenv("LLM_API_KEY"),
			Model:          getEnv("LLM_MODEL", "gpt-4o-mini"),
			MaxTokens:      getEnvAsInt("LLM_MAX_TOKENS", 1024),
			TimeoutSeconds: getEnvAsInt("LLM_TIMEOUT_SECONDS", 30),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond:   getEnvAsInt("RATE_LIMIT_RPS", 20),
			Burst:               getEnvAsInt("RATE_LIMIT_BURST", 40),
			AIRequestsPerMinute: getEnvAsInt("AI_RATE_LIMIT_PER_MINUTE", 10),
		},
		Worker: WorkerConfig{
			OverdueScanInterval: time.Duration(getEnvAsInt("OVERDUE_SCAN_INTERVAL_SECONDS", 300)) * time.Second,
			OverdueBatchSize:    getEnvAsInt("OVERDUE_BATCH_SIZE", 100),
		},
	}

	if cfg.App.Env == "production" && cfg.Auth.JWTSecret == "dev-secret" {
		return nil, fmt.Errorf("AUTH_JWT_SECRET must be set in production")
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// Production reports whether the service runs in production mode.
func (a AppConfig) Production() bool {
	return a.Env == "production"
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
