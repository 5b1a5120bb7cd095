package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Transports accepted by TRANSPORT.
const (
	TransportConnector = "connector"
	TransportWebsocket = "websocket"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default, so a bare environment runs against a
// local SQLite file with anonymous connector credentials.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Store. A postgres:// URL selects PostgreSQL, anything else is a SQLite file path.
	StoreLocation     string
	DBMaxConns        int32
	DBMinConns        int32
	SQLiteBusyTimeout time.Duration

	// Scheduler
	TickInterval   time.Duration
	ReminderPrefix string

	// Delivery host
	Transport        string
	AppID            string
	AppPassword      string
	TenantID         string
	ConnectorTimeout time.Duration

	// Rate limiting: maximum sends per second per destination channel
	RateLimit int

	// Zone used to render due times back to the caller
	LocalTZ string
}

func Load() (*Config, error) {
	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", getEnv("PORT", "3978")),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		StoreLocation:     getEnv("REMINDERS_DB", "reminders.db"),
		DBMaxConns:        int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:        int32(getInt("DB_MIN_CONNS", 1)),
		SQLiteBusyTimeout: getDuration("SQLITE_BUSY_TIMEOUT", 2*time.Second),

		TickInterval:   getDuration("TICK_INTERVAL", 10*time.Second),
		ReminderPrefix: getEnv("REMINDER_PREFIX", "⏰ Reminder: "),

		Transport:        strings.ToLower(getEnv("TRANSPORT", TransportConnector)),
		AppID:            os.Getenv("MICROSOFT_APP_ID"),
		AppPassword:      os.Getenv("MICROSOFT_APP_PASSWORD"),
		TenantID:         os.Getenv("MICROSOFT_TENANT_ID"),
		ConnectorTimeout: getDuration("CONNECTOR_TIMEOUT", 10*time.Second),

		RateLimit: getInt("RATE_LIMIT_PER_CHANNEL", 20),

		LocalTZ: getEnv("LOCAL_TZ", "UTC"),
	}, nil
}

// IsPostgres reports whether StoreLocation names a PostgreSQL database.
func (c *Config) IsPostgres() bool {
	return strings.HasPrefix(c.StoreLocation, "postgres://") ||
		strings.HasPrefix(c.StoreLocation, "postgresql://")
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return defaultVal
}
