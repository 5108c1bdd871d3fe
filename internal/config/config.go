package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Storage
	DataBackend  string
	SQLiteDBPath string

	// AMQP; an empty URL keeps fan-out process local
	AMQPURL          string
	AMQPExchange     string
	AMQPJournalQueue string

	// Google Sheets payment journal
	GoogleSpreadsheetID string
	GoogleJournalSheet  string

	// Notifications and sessions
	NotificationRetention time.Duration
	DispatchBuffer        int
	DueSoonWindow         time.Duration

	// Worker
	SweepInterval time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/fintrack.db"),

		AMQPURL:          getEnv("AMQP_URL", ""),
		AMQPExchange:     getEnv("AMQP_EXCHANGE", "fintrack"),
		AMQPJournalQueue: getEnv("AMQP_JOURNAL_QUEUE", "fintrack_journal"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleJournalSheet:  getEnv("GOOGLE_JOURNAL_SHEET", "Payments"),

		NotificationRetention: getEnvDuration("NOTIFICATION_RETENTION", 30*24*time.Hour),
		DispatchBuffer:        getEnvInt("DISPATCH_BUFFER", 16),
		DueSoonWindow:         getEnvDuration("DUE_SOON_WINDOW", 72*time.Hour),

		SweepInterval: getEnvDuration("SWEEP_INTERVAL", time.Hour),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// AMQPEnabled reports whether cross-process fan-out and the ledger event
// stream are configured.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// JournalEnabled reports whether payments are mirrored to Google Sheets.
func (c *Config) JournalEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{"memory", "sqlite"}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}
	if c.DataBackend == "sqlite" && c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
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
		if c.AMQPJournalQueue == "" {
			errors = append(errors, "AMQP journal queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleSpreadsheetID != "" && strings.TrimSpace(c.GoogleJournalSheet) == "" {
		errors = append(errors, "Google journal sheet name is required when a spreadsheet ID is set")
	}

	if c.NotificationRetention < time.Hour {
		errors = append(errors, fmt.Sprintf("invalid notification retention %v: must be at least 1 hour", c.NotificationRetention))
	}
	if c.DispatchBuffer < 1 {
		errors = append(errors, fmt.Sprintf("invalid dispatch buffer %d: must be at least 1", c.DispatchBuffer))
	} else if c.DispatchBuffer > 4096 {
		errors = append(errors, fmt.Sprintf("invalid dispatch buffer %d: must be at most 4096", c.DispatchBuffer))
	}
	if c.DueSoonWindow <= 0 {
		errors = append(errors, fmt.Sprintf("invalid due soon window %v: must be positive", c.DueSoonWindow))
	}

	if c.SweepInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sweep interval %v: must be at least 1 second", c.SweepInterval))
	} else if c.SweepInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sweep interval %v: must be at most 24 hours", c.SweepInterval))
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
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
