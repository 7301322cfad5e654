package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port              string
	RequestsPerMinute int
	LogLevel          string
	LogFormat         string

	// Storage
	StoreBackend   string
	SQLiteDBPath   string
	MemorySeedFile string

	// Sessions
	JWTSecret      string
	SessionTTL     time.Duration
	ControllerIdle time.Duration
	MaxControllers int

	// Display
	CurrencySymbol string
	CurrencyLocale string

	// AI and voice
	GeminiAPIKey  string
	GeminiModel   string
	BlandAPIKey   string
	BlandEndpoint string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets audit mirror
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Worker
	AccrualInterval time.Duration
	MirrorTimeout   time.Duration
}

var validBackends = []string{"memory", "sqlite"}

func Load() *Config {
	return &Config{
		Port:              getEnv("PORT", "8081"),
		RequestsPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "text"),

		StoreBackend:   getEnv("STORE_BACKEND", "memory"),
		SQLiteDBPath:   getEnv("SQLITE_DB_PATH", "./data/fintrack.db"),
		MemorySeedFile: getEnv("MEMORY_SEED_FILE", ""),

		JWTSecret:      getEnv("JWT_SECRET", ""),
		SessionTTL:     getEnvDuration("SESSION_TTL", 24*time.Hour),
		ControllerIdle: getEnvDuration("CONTROLLER_IDLE", 30*time.Minute),
		MaxControllers: getEnvInt("MAX_CONTROLLERS", 1000),

		CurrencySymbol: getEnv("CURRENCY_SYMBOL", "₹"),
		CurrencyLocale: getEnv("CURRENCY_LOCALE", "en-IN"),

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		BlandAPIKey:   getEnv("BLAND_API_KEY", ""),
		BlandEndpoint: getEnv("BLAND_ENDPOINT", "https://api.bland.ai/v1/calls"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "fintrack"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "transaction_events"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Audit"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		AccrualInterval: getEnvDuration("ACCRUAL_INTERVAL", time.Hour),
		MirrorTimeout:   getEnvDuration("MIRROR_TIMEOUT", 15*time.Second),
	}
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RequestsPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RequestsPerMinute))
	}

	if !slices.Contains(validBackends, c.StoreBackend) {
		errors = append(errors, fmt.Sprintf("invalid store backend '%s': must be one of %v", c.StoreBackend, validBackends))
	}

	if c.StoreBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.StoreBackend == "memory" && c.MemorySeedFile != "" {
		if _, err := os.Stat(c.MemorySeedFile); err != nil {
			errors = append(errors, fmt.Sprintf("memory seed file not readable: %v", err))
		}
	}

	if len(c.JWTSecret) < 16 {
		errors = append(errors, "JWT_SECRET must be at least 16 characters")
	}
	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.MaxControllers < 1 {
		errors = append(errors, fmt.Sprintf("invalid controller limit %d: must be at least 1", c.MaxControllers))
	}

	if c.BlandEndpoint != "" {
		if u, err := url.Parse(c.BlandEndpoint); err != nil || (u.Scheme != "https" && u.Scheme != "http") {
			errors = append(errors, fmt.Sprintf("invalid BLAND_ENDPOINT '%s': must be an http(s) URL", c.BlandEndpoint))
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	if c.AccrualInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid accrual interval %v: must be at least 1 second", c.AccrualInterval))
	} else if c.AccrualInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid accrual interval %v: must be at most 24 hours", c.AccrualInterval))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// SheetsEnabled reports whether the audit mirror should write to Google.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
