package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"regexp"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	AppEnv          string
	Debug           bool
	Version         string
	BotToken        string
	RulesLink       string
	DefaultChatID   int64
	FileLimitBytes  int64
	RedisURL        string
	SentryDSN       string
	MongoDBURI      string
	MongoDBDatabase string
	DefaultLanguage string
}

const (
	defaultRulesLink   = "https://t.me/your_chat/42"
	defaultChatID      = int64(-1002824956071)
	defaultFileLimitMB = 45
)

// LoadConfig loads configuration from environment variables.
// It attempts to load a .env file if present but prioritizes
// actual environment variables set in the system (e.g., by Docker).
func LoadConfig() (*Config, error) {
	// Load .env file if it exists (useful for development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	debug, _ := strconv.ParseBool(getEnv("DEBUG", "false"))

	chatID := defaultChatID
	if chatIDStr := getEnv("DEFAULT_CHAT_ID", ""); chatIDStr != "" {
		parsed, err := strconv.ParseInt(chatIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid DEFAULT_CHAT_ID: %w", err)
		}
		chatID = parsed
	}

	limitMB := defaultFileLimitMB
	if limitStr := getEnv("BOT_FILE_LIMIT_MB", ""); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("invalid BOT_FILE_LIMIT_MB: %q", limitStr)
		}
		limitMB = parsed
	}

	redisURL, err := buildRedisURL()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AppEnv:          getEnv("APP_ENV", "development"),
		Debug:           debug,
		Version:         getEnv("VERSION", "dev"),
		BotToken:        getEnv("TELEGRAM_BOT_TOKEN", ""),
		RulesLink:       getEnv("RULES_LINK", defaultRulesLink),
		DefaultChatID:   chatID,
		FileLimitBytes:  int64(limitMB) * 1024 * 1024,
		RedisURL:        redisURL,
		SentryDSN:       getEnv("SENTRY_DSN", ""),
		MongoDBURI:      getEnv("MONGODB_URI", ""),
		MongoDBDatabase: getEnv("MONGODB_DATABASE", ""),
		DefaultLanguage: getEnv("DEFAULT_LANGUAGE", "ru"),
	}

	// Basic validation for essential variables
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if cfg.SentryDSN == "" {
		log.Println("Warning: SENTRY_DSN is not set. Error tracking disabled.")
	}
	if cfg.MongoDBURI == "" {
		return nil, fmt.Errorf("MONGODB_URI is required")
	}
	if cfg.MongoDBDatabase == "" {
		return nil, fmt.Errorf("MONGODB_DATABASE is required")
	}

	log.Printf("Using Redis: %s", MaskRedisURL(cfg.RedisURL))

	return cfg, nil
}

// buildRedisURL resolves the Redis connection string: REDIS_URL wins,
// otherwise the URL is assembled from REDIS_HOST/REDIS_PORT/REDIS_PASSWORD.
func buildRedisURL() (string, error) {
	if raw := getEnv("REDIS_URL", ""); raw != "" {
		return raw, nil
	}

	host := getEnv("REDIS_HOST", "")
	if host == "" {
		return "", fmt.Errorf("redis connection is not configured: set REDIS_URL or REDIS_HOST/REDIS_PORT/REDIS_PASSWORD")
	}
	port := getEnv("REDIS_PORT", "6379")
	if password := getEnv("REDIS_PASSWORD", ""); password != "" {
		return fmt.Sprintf("redis://default:%s@%s:%s", url.QueryEscape(password), host, port), nil
	}
	return fmt.Sprintf("redis://%s:%s", host, port), nil
}

var redisCredentials = regexp.MustCompile(`://([^:@/]+):([^@]+)@`)

// MaskRedisURL hides the password part of a Redis URL for logging.
func MaskRedisURL(rawURL string) string {
	return redisCredentials.ReplaceAllString(rawURL, "://$1:*****@")
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
