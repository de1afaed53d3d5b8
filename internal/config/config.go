// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends.
const (
	StorageSQLite = "sqlite"
	StorageAzure  = "azure"
	StorageNone   = "none"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string

	DevMode            bool
	DebugCookies       bool
	DebugQueries       bool
	IncludeChatHistory bool

	AgentAPIURL     string
	ClientAPIURL    string
	ClientAPIURLDev string
	FallbackToken   string // JWT_TOKEN, lowest-priority token source

	HTTPTimeout        time.Duration
	SessionTTL         time.Duration
	MaxRequestBodySize int64

	RateLimit RateLimitConfig
	Storage   StorageConfig
	Cache     CacheConfig
}

// RateLimitConfig controls per-session chat throttling.
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// StorageConfig selects and configures transcript persistence.
type StorageConfig struct {
	Backend               string
	DBPath                string
	AzureConnectionString string
	BlobContainer         string
	TableName             string
	QueryLogEnabled       bool
}

// CacheConfig controls client profile caching.
type CacheConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	ProfileTTL    time.Duration
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// FromEnv reads configuration from environment variables without validating it.
// Tools that need only part of the configuration use it directly.
func FromEnv() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),

		DevMode:            getEnvBool("DEV_MODE", false),
		DebugCookies:       getEnvBool("DEBUG_COOKIES", false),
		DebugQueries:       getEnvBool("DEBUG_QUERIES", false),
		IncludeChatHistory: getEnvBool("INCLUDE_CHAT_HISTORY", true),

		AgentAPIURL:     strings.TrimRight(getEnv("AGENT_API_URL", ""), "/"),
		ClientAPIURL:    strings.TrimRight(getEnv("CLIENT_API_URL", ""), "/"),
		ClientAPIURLDev: strings.TrimRight(getEnv("CLIENT_API_URL_DEV", ""), "/"),
		FallbackToken:   getEnv("JWT_TOKEN", ""),

		HTTPTimeout:        getEnvDuration("HTTP_TIMEOUT", 60*time.Second),
		SessionTTL:         getEnvDuration("SESSION_TTL", 2*time.Hour),
		MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_BYTES", 1<<20)),

		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 20),
			Burst:             getEnvInt("RATE_LIMIT_BURST", 5),
		},
		Storage: StorageConfig{
			Backend:               strings.ToLower(getEnv("STORAGE_BACKEND", StorageSQLite)),
			DBPath:                getEnv("DB_PATH", "./data/chats.db"),
			AzureConnectionString: getEnv("AZURE_STORAGE_CONNECTION_STRING", ""),
			BlobContainer:         getEnv("AZURE_BLOB_CONTAINER_NAME", "agustogpt-chats"),
			TableName:             getEnv("AZURE_TABLE_NAME", "AgustoGPTChats"),
			QueryLogEnabled:       getEnvBool("QUERY_LOG_ENABLED", false),
		},
		Cache: CacheConfig{
			RedisAddr:     getEnv("REDIS_ADDR", ""),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			ProfileTTL:    getEnvDuration("PROFILE_CACHE_TTL", 15*time.Minute),
		},
	}
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.AgentAPIURL == "" {
		return fmt.Errorf("AGENT_API_URL cannot be empty")
	}
	if c.ClientAPIBase() == "" {
		if c.DevMode {
			return fmt.Errorf("CLIENT_API_URL_DEV cannot be empty when DEV_MODE is set")
		}
		return fmt.Errorf("CLIENT_API_URL cannot be empty")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be > 0")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_BYTES must be > 0")
	}
	if c.RateLimit.RequestsPerMinute <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE and RATE_LIMIT_BURST must be > 0")
	}
	switch c.Storage.Backend {
	case StorageSQLite:
		if c.Storage.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case StorageAzure:
		if c.Storage.BlobContainer == "" || c.Storage.TableName == "" {
			return fmt.Errorf("AZURE_BLOB_CONTAINER_NAME and AZURE_TABLE_NAME cannot be empty")
		}
	case StorageNone:
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}
	return nil
}

// ClientAPIBase returns the client-details API base URL for the active environment.
func (c *Config) ClientAPIBase() string {
	if c.DevMode {
		return c.ClientAPIURLDev
	}
	return c.ClientAPIURL
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.DevMode ||
		c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origins for the front-end.
func (c *Config) AllowedOrigins() []string {
	if c.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{strings.TrimRight(c.FrontendURL, "/")}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go duration strings ("90s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
