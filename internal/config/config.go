package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Env           string
	HTTPAddr      string
	APIBaseURL    string
	APITimeout    time.Duration
	SessionSecret string
	SessionTTL    time.Duration
	RedisURL      string
	GeoIPEndpoint string
	Logging       LoggingConfig
}

type LoggingConfig struct {
	Level  string
	Format string
	File   string
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:           getenv("APP_ENV", "dev"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		APIBaseURL:    os.Getenv("EVENTS_API_URL"),
		APITimeout:    getenvDuration("EVENTS_API_TIMEOUT", 15*time.Second),
		SessionSecret: os.Getenv("SESSION_SECRET"),
		SessionTTL:    getenvDuration("SESSION_TTL", 2*time.Hour),
		RedisURL:      os.Getenv("REDIS_URL"),
		GeoIPEndpoint: getenv("GEOIP_ENDPOINT", ""),
		Logging: LoggingConfig{
			Level:  getenv("LOG_LEVEL", "info"),
			Format: getenv("LOG_FORMAT", "text"),
			File:   os.Getenv("LOG_FILE"),
		},
	}

	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("EVENTS_API_URL is required")
	}
	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
		return parsed
	}
	if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return def
}
