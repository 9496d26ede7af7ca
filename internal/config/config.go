package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	Port     string
	LogLevel slog.Level

	Storage StorageConfig
	Email   EmailConfig

	// ReminderDaysBefore is how many days ahead of the filing deadline the
	// nightly trigger sends reminders.
	ReminderDaysBefore int
}

// StorageConfig locates the Azure storage services.
type StorageConfig struct {
	TableServiceURL string
	ProfilesTable   string
	SnapshotsTable  string

	BlobServiceURL  string
	UploadContainer string

	QueueServiceURL string
	ImportQueue     string
}

// EmailConfig configures Azure Communication Services email.
type EmailConfig struct {
	Endpoint string
	Sender   string
}

// Enabled reports whether email sending is configured.
func (e EmailConfig) Enabled() bool {
	return e.Endpoint != "" && e.Sender != ""
}

// Load loads configuration from environment variables and a local .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:     getenv("FUNCTIONS_CUSTOMHANDLER_PORT", "8080"),
		LogLevel: parseLevel(getenv("LOG_LEVEL", "info")),
		Storage: StorageConfig{
			TableServiceURL: strings.TrimSpace(getenv("TABLE_SERVICE_URL", "")),
			ProfilesTable:   getenv("PROFILES_TABLE", "profiles"),
			SnapshotsTable:  getenv("SNAPSHOTS_TABLE", "taxsnapshots"),
			BlobServiceURL:  strings.TrimSpace(getenv("BLOB_SERVICE_URL", "")),
			UploadContainer: getenv("UPLOAD_CONTAINER", "easytax-uploads"),
			QueueServiceURL: strings.TrimSpace(getenv("QUEUE_SERVICE_URL", "")),
			ImportQueue:     getenv("IMPORT_QUEUE", "income-import"),
		},
		Email: EmailConfig{
			Endpoint: strings.TrimSpace(getenv("COMMUNICATION_SERVICES_ENDPOINT", "")),
			Sender:   strings.TrimSpace(getenv("SENDER_EMAIL", "")),
		},
		ReminderDaysBefore: getenvInt("REMINDER_DAYS_BEFORE", 7),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
