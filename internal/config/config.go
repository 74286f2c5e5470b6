// Package config loads flbt settings from the environment.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// History backends.
const (
	HistorySQLite    = "sqlite"
	HistorySurrealDB = "surrealdb"
	HistoryNone      = "none"
)

// Config holds all configuration values.
type Config struct {
	// Remote job service
	ServerURL  string
	APIProfile string

	// Orchestration
	PollInterval   time.Duration
	RequestTimeout time.Duration
	FetchTimeout   time.Duration
	DestDir        string

	// Logging
	LogFile  string
	LogLevel slog.Level

	// History journal
	HistoryBackend string
	HistoryPath    string

	// SurrealDB connection
	SurrealDBURL        string
	SurrealDBNamespace  string
	SurrealDBDatabase   string
	SurrealDBUser       string
	SurrealDBPass       string
	SurrealDBAuthLevel  string
	SurrealDBMaxRetries int

	// NATS event publishing, disabled when NATSURL is empty
	NATSURL     string
	NATSSubject string

	// flbt-web
	WebPort string
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		ServerURL:  strings.TrimSuffix(getEnv("FLBT_SERVER_URL", "http://localhost:8000"), "/"),
		APIProfile: getEnv("FLBT_API_PROFILE", "task"),

		PollInterval:   getDuration("FLBT_POLL_INTERVAL", 2*time.Second),
		RequestTimeout: getDuration("FLBT_REQUEST_TIMEOUT", 30*time.Second),
		FetchTimeout:   getDuration("FLBT_FETCH_TIMEOUT", 60*time.Second),
		DestDir:        getEnv("FLBT_DEST_DIR", "downloads"),

		LogFile:  getEnv("FLBT_LOG_FILE", "/tmp/flbt.log"),
		LogLevel: parseLogLevel(getEnv("FLBT_LOG_LEVEL", "INFO")),

		HistoryBackend: strings.ToLower(getEnv("FLBT_HISTORY_BACKEND", HistorySQLite)),
		HistoryPath:    expandHome(getEnv("FLBT_HISTORY_PATH", "~/.flbt/history.db")),

		SurrealDBURL:        getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace:  getEnv("SURREALDB_NAMESPACE", "flbt"),
		SurrealDBDatabase:   getEnv("SURREALDB_DATABASE", "history"),
		SurrealDBUser:       getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:       getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel:  getEnv("SURREALDB_AUTH_LEVEL", "root"),
		SurrealDBMaxRetries: getInt("SURREALDB_MAX_RETRIES", 10),

		NATSURL:     getEnv("FLBT_NATS_URL", ""),
		NATSSubject: getEnv("FLBT_NATS_SUBJECT", "flbt.jobs"),

		WebPort: getEnv("FLBT_WEB_PORT", "8585"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getInt parses a positive integer, falling back to defaultVal otherwise.
func getInt(key string, defaultVal int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}

// getDuration parses a Go duration, falling back to defaultVal when unset,
// malformed or not positive.
func getDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
