package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	// HTTP server
	Port string

	// Local blob tier
	SQLiteDBPath string

	// Remote tier (optional). Empty RemoteDatabaseURL means local-only mode.
	RemoteDatabaseURL string
	RemoteEmail       string
	RemotePassword    string
	// RemoteCompanyID pre-selects a company when the user belongs to several.
	RemoteCompanyID string

	// AMQP change notifier (optional)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// MirrorQueueSize bounds pending remote writes; only the newest snapshot
	// matters, so a small buffer suffices.
	MirrorQueueSize int
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8081"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/eltimer.db"),

		RemoteDatabaseURL: getEnv("REMOTE_DATABASE_URL", ""),
		RemoteEmail:       getEnv("REMOTE_EMAIL", ""),
		RemotePassword:    getEnv("REMOTE_PASSWORD", ""),
		RemoteCompanyID:   getEnv("REMOTE_COMPANY_ID", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "eltimer"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "state_saved"),

		MirrorQueueSize: getEnvInt("MIRROR_QUEUE_SIZE", 4),
	}
}

// RemoteEnabled reports whether a remote mirror is configured.
func (c *Config) RemoteEnabled() bool {
	return c.RemoteDatabaseURL != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errs = append(errs, "SQLite database path cannot be empty")
	} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
			}
		}
	}

	if c.RemoteDatabaseURL != "" {
		if parsed, err := url.Parse(c.RemoteDatabaseURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid remote database URL '%s': %v", c.RemoteDatabaseURL, err))
		} else if parsed.Scheme != "postgres" && parsed.Scheme != "postgresql" {
			errs = append(errs, fmt.Sprintf("invalid remote database URL scheme '%s': must be 'postgres'", parsed.Scheme))
		}
		if c.RemoteEmail == "" || c.RemotePassword == "" {
			errs = append(errs, "REMOTE_EMAIL and REMOTE_PASSWORD are required when a remote database is configured")
		}
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.MirrorQueueSize < 1 {
		errs = append(errs, fmt.Sprintf("invalid mirror queue size %d: must be at least 1", c.MirrorQueueSize))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
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
