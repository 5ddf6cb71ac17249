// Package config loads runtime settings from the environment and the sources
// file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/deusflow/animenews/internal/news"
)

// Store backends.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type Config struct {
	// Telegram settings
	TelegramToken  string
	TelegramChatID string

	// Sources
	SourcesConfigPath string
	Sources           []news.Source
	AllowKeywords     []string
	DenyKeywords      []string
	Overrides         []news.Override

	// Poll loop
	PollInterval     time.Duration
	PostDelay        time.Duration
	BootstrapItems   int // items published on a source's first run
	MaxItemsPerCycle int
	CaptionMaxRunes  int

	// Marker store
	StoreBackend  string
	StorePath     string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string

	// HTTP
	RequestTimeout time.Duration
	RetryAttempts  int
	RetryDelay     time.Duration
	UserAgent      string

	// Media
	MediaDir          string
	YtDlpPath         string
	AniListURL        string
	TrailerCacheTTL   time.Duration
	MaxTrailerLookups int // per day, 0 = unlimited

	// Gemini settings
	GeminiAPIKey      string
	MaxGeminiRequests int // per day, 0 = unlimited

	// App settings
	Debug                bool
	EnableHTTPMonitoring bool
	MonitoringPort       string
}

// Load reads .env (when present), the environment and the sources file.
func Load() (*Config, error) {
	// A missing .env is normal in containers.
	_ = godotenv.Load()

	cfg := FromEnv()

	sf, err := LoadSources(cfg.SourcesConfigPath)
	if err != nil {
		return nil, err
	}
	cfg.Sources = sf.Sources
	cfg.AllowKeywords = sf.Allow
	cfg.DenyKeywords = sf.Deny
	cfg.Overrides = sf.Overrides

	return cfg, cfg.Validate()
}

// FromEnv reads every setting except the sources file.
func FromEnv() *Config {
	return &Config{
		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		TelegramChatID: os.Getenv("TELEGRAM_CHAT_ID"),
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),

		SourcesConfigPath: getEnvOrDefault("SOURCES_CONFIG_PATH", "configs/sources.yaml"),
		PollInterval:      getEnvDurationOrDefault("POLL_INTERVAL", 10*time.Minute),
		PostDelay:         getEnvDurationOrDefault("POST_DELAY", 3*time.Second),
		BootstrapItems:    getEnvIntOrDefault("BOOTSTRAP_ITEMS", 1),
		MaxItemsPerCycle:  getEnvIntOrDefault("MAX_ITEMS_PER_CYCLE", 5),
		CaptionMaxRunes:   getEnvIntOrDefault("CAPTION_MAX_RUNES", 1000),

		StoreBackend: strings.ToLower(getEnvOrDefault("STORE_BACKEND", BackendFile)),
		StorePath:    getEnvOrDefault("STORE_PATH", "data/markers.json"),
		RedisAddr:    getEnvOrDefault("REDIS_ADDR", "localhost:6379"),

		RequestTimeout: getEnvDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		RetryAttempts:  getEnvIntOrDefault("RETRY_ATTEMPTS", 3),
		RetryDelay:     getEnvDurationOrDefault("RETRY_DELAY", 2*time.Second),
		UserAgent:      getEnvOrDefault("USER_AGENT", "Mozilla/5.0 (compatible; animenews/1.0)"),

		MediaDir:          getEnvOrDefault("MEDIA_DIR", os.TempDir()),
		YtDlpPath:         getEnvOrDefault("YTDLP_PATH", "yt-dlp"),
		AniListURL:        getEnvOrDefault("ANILIST_URL", "https://graphql.anilist.co"),
		TrailerCacheTTL:   getEnvDurationOrDefault("TRAILER_CACHE_TTL", 24*time.Hour),
		MaxTrailerLookups: getEnvIntOrDefault("MAX_TRAILER_LOOKUPS", 200),

		MaxGeminiRequests: getEnvIntOrDefault("MAX_GEMINI_REQUESTS", 20),

		Debug:                os.Getenv("DEBUG") == "true",
		EnableHTTPMonitoring: os.Getenv("ENABLE_HTTP_MONITORING") == "true",
		MonitoringPort:       getEnvOrDefault("MONITORING_PORT", "8080"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDurationOrDefault accepts Go durations ("90s") or plain seconds ("90").
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// Validate checks settings every command needs.
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return errors.New("no sources configured")
	}
	if c.PollInterval <= 0 {
		return errors.New("POLL_INTERVAL must be positive")
	}
	if c.BootstrapItems < 0 {
		return errors.New("BOOTSTRAP_ITEMS must not be negative")
	}
	if c.MaxItemsPerCycle < 1 {
		return errors.New("MAX_ITEMS_PER_CYCLE must be at least 1")
	}
	if c.CaptionMaxRunes < 1 || c.CaptionMaxRunes > 1024 {
		return errors.New("CAPTION_MAX_RUNES must be between 1 and 1024")
	}
	if c.RetryAttempts < 1 {
		return errors.New("RETRY_ATTEMPTS must be at least 1")
	}

	switch c.StoreBackend {
	case BackendFile, BackendSQLite:
		if c.StorePath == "" {
			return fmt.Errorf("STORE_PATH is required for the %s backend", c.StoreBackend)
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required for the redis backend")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be one of file, sqlite, postgres, redis; got %q", c.StoreBackend)
	}
	return nil
}

// ValidatePublishing checks the settings needed to post to the channel.
func (c *Config) ValidatePublishing() error {
	if c.TelegramToken == "" {
		return errors.New("TELEGRAM_TOKEN is required")
	}
	if c.TelegramChatID == "" {
		return errors.New("TELEGRAM_CHAT_ID is required")
	}
	return nil
}
