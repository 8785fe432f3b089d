// Package config loads runtime settings from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	PostgresDSN string
	RedisAddr   string
	Port        string
	WorkerID    string

	PollInterval       time.Duration
	RefreshAllInterval time.Duration
	AlertSweepInterval time.Duration
	AlertSweepWindow   time.Duration
	MaxRetries         int

	DeveloperWebhookURL string
	ClientWebhookURL    string
	ManagerWebhookURL   string

	SendgridAPIKey string
	EmailFrom      string
	EmailFromName  string
	EmailTo        string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; missing files are not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		Port:        getEnv("PORT", "8080"),
		WorkerID:    getEnv("WORKER_ID", fmt.Sprintf("worker-%d", time.Now().Unix())),

		PollInterval:       getDuration("POLL_INTERVAL", time.Second),
		RefreshAllInterval: getDuration("REFRESH_ALL_INTERVAL", 15*time.Minute),
		AlertSweepInterval: getDuration("ALERT_SWEEP_INTERVAL", time.Hour),
		AlertSweepWindow:   getDuration("ALERT_SWEEP_WINDOW", 24*time.Hour),
		MaxRetries:         getInt("MAX_RETRIES", 3),

		DeveloperWebhookURL: os.Getenv("DEVELOPER_WEBHOOK_URL"),
		ClientWebhookURL:    os.Getenv("CLIENT_WEBHOOK_URL"),
		ManagerWebhookURL:   os.Getenv("MANAGER_WEBHOOK_URL"),

		SendgridAPIKey: os.Getenv("SENDGRID_API_KEY"),
		EmailFrom:      os.Getenv("EMAIL_FROM"),
		EmailFromName:  getEnv("EMAIL_FROM_NAME", "Botwatch"),
		EmailTo:        os.Getenv("EMAIL_TO"),
	}

	if cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}

	return d
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}

	return n
}
