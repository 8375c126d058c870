package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port          string
	SessionSecret string
	CookieSecure  bool

	// Database
	DatabasePath string

	// Seed admin account
	AdminEmail    string
	AdminPassword string

	// Content generation
	LMBaseURL string
	LMAPIKey  string
	LMModel   string

	// Publishing
	ImageBaseURL   string
	MaxImageWidth  int
	HTTPTimeout    time.Duration
	ReconcileAfter time.Duration

	// Batch reports
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
	NotifyEmail  string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: ignoring .env: %v", err)
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		SessionSecret:  getEnv("SESSION_SECRET", ""),
		CookieSecure:   getEnvAsBool("COOKIE_SECURE", false),
		DatabasePath:   getEnv("SQLITE_DB", "sitequill.db"),
		AdminEmail:     getEnv("ADMIN_EMAIL", ""),
		AdminPassword:  getEnv("ADMIN_PASSWORD", ""),
		LMBaseURL:      getEnv("LM_BASE_URL", "https://api.openai.com"),
		LMAPIKey:       getEnv("LM_API_KEY", ""),
		LMModel:        getEnv("LM_MODEL", "gpt-4o-mini"),
		ImageBaseURL:   getEnv("IMAGE_BASE_URL", "https://blog-images.stackstaging.com"),
		MaxImageWidth:  getEnvAsInt("MAX_IMAGE_WIDTH", 1200),
		HTTPTimeout:    time.Duration(getEnvAsInt("HTTP_TIMEOUT_SECONDS", 120)) * time.Second,
		ReconcileAfter: time.Duration(getEnvAsInt("RECONCILE_AFTER_MINUTES", 15)) * time.Minute,
		SMTPHost:       getEnv("SMTP_HOST", ""),
		SMTPPort:       getEnv("SMTP_PORT", "587"),
		SMTPUser:       getEnv("SMTP_USER", ""),
		SMTPPassword:   getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:       getEnv("SMTP_FROM", ""),
		NotifyEmail:    getEnv("NOTIFY_EMAIL", ""),
	}

	// Validate required fields
	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}
	if (cfg.AdminEmail == "") != (cfg.AdminPassword == "") {
		return nil, fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	if cfg.MaxImageWidth <= 0 {
		return nil, fmt.Errorf("MAX_IMAGE_WIDTH must be positive")
	}

	return cfg, nil
}

// MailEnabled reports whether batch reports can be sent.
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != "" && c.NotifyEmail != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
