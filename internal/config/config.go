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
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	AI        AIConfig
	Knowledge KnowledgeConfig
	Webhook   WebhookConfig
	Worker    WorkerConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
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
	Level string
}

// AuthConfig defines edge credential parameters. IngestTokenHash is a
// bcrypt hash of the shared ingest bearer token; IngestToken is the
// plaintext fallback for development setups.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	IngestToken           string
	IngestTokenHash       string
}

// AIConfig controls the completion collaborator and the responder gate.
type AIConfig struct {
	Endpoint            string
	APIKey              string
	Model               string
	MaxTokens           int
	TimeoutSeconds      int
	ConfidenceThreshold float64
	HistoryWindow       int
	AutoRespondChannels map[string]bool
}

// KnowledgeConfig controls the knowledge-search collaborator.
type KnowledgeConfig struct {
	Endpoint            string
	SimilarityThreshold float64
	TopK                int
	TimeoutSeconds      int
	CacheSize           int
	RateLimitPerSecond  float64
	RateLimitBurst      int
}

// WebhookConfig controls outbound webhook dispatch triggers.
type WebhookConfig struct {
	SigningSecret  string
	TimeoutSeconds int
}

// WorkerConfig sizes the background task runner.
type WorkerConfig struct {
	QueueSize   int
	Concurrency int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "relaydesk-core"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			IngestToken:           os.Getenv("INGEST_TOKEN"),
			IngestTokenHash:       os.Getenv("INGEST_TOKEN_HASH"),
		},
		AI: AIConfig{
			Endpoint:            getEnv("AI_ENDPOINT", ""),
			APIKey:              os.Getenv("AI_API_KEY"),
			Model:               getEnv("AI_MODEL", "gpt-4o-mini"),
			MaxTokens:           getEnvAsInt("AI_MAX_TOKENS", 1024),
			TimeoutSeconds:      getEnvAsInt("AI_TIMEOUT_SECONDS", 20),
			ConfidenceThreshold: getEnvAsFloat("AI_CONFIDENCE_THRESHOLD", 0.6),
			HistoryWindow:       getEnvAsInt("AI_HISTORY_WINDOW", 10),
			AutoRespondChannels: parseChannelToggles(getEnv("AI_AUTO_RESPOND_CHANNELS", "widget,sms,slack,email,portal,api")),
		},
		Knowledge: KnowledgeConfig{
			Endpoint:            getEnv("KNOWLEDGE_ENDPOINT", ""),
			SimilarityThreshold: getEnvAsFloat("KNOWLEDGE_SIMILARITY_THRESHOLD", 0.75),
			TopK:                getEnvAsInt("KNOWLEDGE_TOP_K", 3),
			TimeoutSeconds:      getEnvAsInt("KNOWLEDGE_TIMEOUT_SECONDS", 8),
			CacheSize:           getEnvAsInt("KNOWLEDGE_CACHE_SIZE", 256),
			RateLimitPerSecond:  getEnvAsFloat("KNOWLEDGE_RATE_LIMIT_PER_SECOND", 5),
			RateLimitBurst:      getEnvAsInt("KNOWLEDGE_RATE_LIMIT_BURST", 10),
		},
		Webhook: WebhookConfig{
			SigningSecret:  os.Getenv("WEBHOOK_SIGNING_SECRET"),
			TimeoutSeconds: getEnvAsInt("WEBHOOK_TIMEOUT_SECONDS", 10),
		},
		Worker: WorkerConfig{
			QueueSize:   getEnvAsInt("WORKER_QUEUE_SIZE", 256),
			Concurrency: getEnvAsInt("WORKER_CONCURRENCY", 4),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the completion call deadline.
func (c AIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// AutoRespond reports whether the AI gate may reply on the given channel.
func (c AIConfig) AutoRespond(channel string) bool {
	return c.AutoRespondChannels[channel]
}

// Timeout returns the knowledge-search deadline.
func (k KnowledgeConfig) Timeout() time.Duration {
	return time.Duration(k.TimeoutSeconds) * time.Second
}

// Timeout returns the per-dispatch webhook deadline.
func (w WebhookConfig) Timeout() time.Duration {
	return time.Duration(w.TimeoutSeconds) * time.Second
}

func parseChannelToggles(raw string) map[string]bool {
	toggles := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		channel := strings.TrimSpace(strings.ToLower(part))
		if channel != "" {
			toggles[channel] = true
		}
	}
	return toggles
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

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
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
