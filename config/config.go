package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Platform names the chat front-end to run
type Platform string

const (
	PlatformDiscord  Platform = "discord"
	PlatformTelegram Platform = "telegram"
)

// Config holds all the configuration for the application
type Config struct {
	Platform      Platform
	DiscordToken  string
	DiscordAppID  string
	TelegramToken string
	Debug         bool
	LogLevel      slog.Level

	Store StoreConfig

	// HTTPAddr enables the status server when non-empty
	HTTPAddr string
	// HTTPAPIKey enables the /api routes, which require it in X-API-Key
	HTTPAPIKey string

	// CategoryTemplate is an optional YAML file overriding the built-in
	// categories used by setup and new categories
	CategoryTemplate string
}

// StoreConfig selects and configures the document store
type StoreConfig struct {
	Driver      string
	DataDir     string
	DBPath      string
	DatabaseURL string
	RedisAddr   string
	RedisPass   string
	S3Bucket    string
	S3Prefix    string
	AWSRegion   string
}

// Load loads the configuration from a .env file (if present) and environment variables
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Platform:         Platform(strings.ToLower(getenv("PLATFORM", string(PlatformDiscord)))),
		DiscordToken:     os.Getenv("DISCORD_TOKEN"),
		DiscordAppID:     os.Getenv("DISCORD_APP_ID"),
		TelegramToken:    os.Getenv("TELEGRAM_TOKEN"),
		Debug:            os.Getenv("DEBUG") == "true",
		HTTPAddr:         os.Getenv("HTTP_ADDR"),
		HTTPAPIKey:       os.Getenv("HTTP_API_KEY"),
		CategoryTemplate: os.Getenv("CATEGORY_TEMPLATE"),
		Store: StoreConfig{
			Driver:      strings.ToLower(getenv("STORE_DRIVER", "file")),
			DataDir:     getenv("DATA_DIR", "./data"),
			DBPath:      getenv("DB_PATH", "./data/intake.db"),
			DatabaseURL: os.Getenv("DATABASE_URL"),
			RedisAddr:   getenv("REDIS_ADDR", "localhost:6379"),
			RedisPass:   os.Getenv("REDIS_PASS"),
			S3Bucket:    os.Getenv("S3_BUCKET"),
			S3Prefix:    getenv("S3_PREFIX", "intake"),
			AWSRegion:   os.Getenv("AWS_REGION"),
		},
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getenv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	switch cfg.Platform {
	case PlatformDiscord:
		if cfg.DiscordToken == "" {
			return nil, errors.New("DISCORD_TOKEN environment variable is required")
		}
	case PlatformTelegram:
		if cfg.TelegramToken == "" {
			return nil, errors.New("TELEGRAM_TOKEN environment variable is required")
		}
	default:
		return nil, fmt.Errorf("unknown PLATFORM %q", cfg.Platform)
	}

	switch cfg.Store.Driver {
	case "file", "sqlite", "memory", "redis":
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required for the postgres store")
		}
	case "s3":
		if cfg.Store.S3Bucket == "" {
			return nil, errors.New("S3_BUCKET is required for the s3 store")
		}
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.Store.Driver)
	}

	return cfg, nil
}

// getenv returns the named environment variable, or fallback if it is unset or empty
func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
