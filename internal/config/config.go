package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingCredentials is returned by Validate when the portal account is not configured.
var ErrMissingCredentials = errors.New("config: PORTAL_USERNAME and PORTAL_PASSWORD must be set")

// Config holds application configuration
type Config struct {
	Env      string
	LogLevel string

	// Portal account. Kept apart from any notification transport secret.
	PortalUsername string
	PortalPassword string

	// Portal endpoints
	LoginBaseURL string
	AppBaseURL   string
	APIBaseURL   string
	UILocale     string
	AppVersion   string
	DeviceName   string
	HTTPTimeout  time.Duration

	// Poll schedule
	PollCycles   int
	PollInterval time.Duration
	RegionID     int
	JobsFile     string
	ExcludeToday bool

	// Reminder ledger
	LedgerBackend   string
	LedgerPath      string
	LedgerThreshold int
	RedisAddr       string
	RedisPassword   string
	RedisTLS        bool
	RedisLedgerKey  string
	DatabaseURL     string
	LedgerBucket    string
	LedgerObjectKey string
	LedgerTable     string
	LedgerItemID    string

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Status server; empty disables it
	StatusAddr string

	// Notifications
	NotificationChannel string
	NotificationTitle   string
	TelegramBotToken    string
	TelegramChatID      string
	PushoverToken       string
	PushoverUser        string
	PushbulletToken     string
	GotifyURL           string
	GotifyToken         string
	SendGridAPIKey      string
	SendGridFromEmail   string
	SendGridFromName    string
	NotifyEmailTo       string
	SESFromEmail        string
	SESFromName         string
	SESConfigurationSet string
	NotifyQueueURL      string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		PortalUsername: strings.TrimSpace(firstEnv("PORTAL_USERNAME", "MEDICOVER_USER")),
		PortalPassword: firstEnv("PORTAL_PASSWORD", "MEDICOVER_PASS"),

		LoginBaseURL: strings.TrimRight(getEnv("PORTAL_LOGIN_URL", "https://login-online24.medicover.pl"), "/"),
		AppBaseURL:   strings.TrimRight(getEnv("PORTAL_APP_URL", "https://online24.medicover.pl"), "/"),
		APIBaseURL:   strings.TrimRight(getEnv("PORTAL_API_URL", "https://api-gateway-online24.medicover.pl"), "/"),
		UILocale:     getEnv("PORTAL_UI_LOCALE", "pl"),
		AppVersion:   getEnv("PORTAL_APP_VERSION", "3.4.0-beta.1.0"),
		DeviceName:   getEnv("PORTAL_DEVICE_NAME", "Chrome"),
		HTTPTimeout:  getEnvAsDuration("PORTAL_HTTP_TIMEOUT", 30*time.Second),

		PollCycles:   getEnvAsInt("POLL_CYCLES", 4),
		PollInterval: getEnvAsDuration("POLL_INTERVAL", 60*time.Second),
		RegionID:     getEnvAsInt("REGION_ID", 202),
		JobsFile:     getEnv("JOBS_FILE", "/app/shared/params.csv"),
		ExcludeToday: getEnvAsBool("EXCLUDE_TODAY", false),

		LedgerBackend:   strings.ToLower(strings.TrimSpace(getEnv("LEDGER_BACKEND", "file"))),
		LedgerPath:      getEnv("LEDGER_PATH", "/app/shared/doctor_data.json"),
		LedgerThreshold: getEnvAsInt("LEDGER_THRESHOLD", 3),
		RedisAddr:       getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisTLS:        getEnvAsBool("REDIS_TLS", false),
		RedisLedgerKey:  getEnv("REDIS_LEDGER_KEY", "slotwatch:ledger"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		LedgerBucket:    getEnv("LEDGER_BUCKET", ""),
		LedgerObjectKey: getEnv("LEDGER_OBJECT_KEY", "slotwatch/doctor_data.json"),
		LedgerTable:     getEnv("LEDGER_TABLE", ""),
		LedgerItemID:    getEnv("LEDGER_ITEM_ID", "default"),

		AWSRegion:           getEnv("AWS_REGION", "eu-central-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		StatusAddr: getEnv("STATUS_ADDR", ""),

		NotificationChannel: strings.ToLower(strings.TrimSpace(getEnv("NOTIFICATION_CHANNEL", "telegram"))),
		NotificationTitle:   getEnv("NOTIFICATION_TITLE", "New appointments"),
		TelegramBotToken:    getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:      getEnv("TELEGRAM_CHAT_ID", ""),
		PushoverToken:       getEnv("PUSHOVER_TOKEN", ""),
		PushoverUser:        getEnv("PUSHOVER_USER", ""),
		PushbulletToken:     getEnv("PUSHBULLET_TOKEN", ""),
		GotifyURL:           strings.TrimRight(getEnv("GOTIFY_URL", ""), "/"),
		GotifyToken:         getEnv("GOTIFY_TOKEN", ""),
		SendGridAPIKey:      getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail:   getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:    getEnv("SENDGRID_FROM_NAME", "Slot Watch"),
		NotifyEmailTo:       getEnv("NOTIFY_EMAIL_TO", ""),
		SESFromEmail:        getEnv("SES_FROM_EMAIL", ""),
		SESFromName:         getEnv("SES_FROM_NAME", "Slot Watch"),
		SESConfigurationSet: getEnv("SES_CONFIGURATION_SET", ""),
		NotifyQueueURL:      getEnv("NOTIFY_QUEUE_URL", ""),
	}
}

// LoadDotEnv loads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

// Validate reports configuration that makes a poll run impossible.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.PortalUsername) == "" || strings.TrimSpace(c.PortalPassword) == "" {
		return ErrMissingCredentials
	}
	switch c.LedgerBackend {
	case "file", "redis", "postgres", "s3", "dynamodb":
	default:
		return fmt.Errorf("config: unknown LEDGER_BACKEND %q", c.LedgerBackend)
	}
	if c.LedgerBackend == "postgres" && c.DatabaseURL == "" {
		return errors.New("config: LEDGER_BACKEND=postgres requires DATABASE_URL")
	}
	if c.LedgerBackend == "s3" && c.LedgerBucket == "" {
		return errors.New("config: LEDGER_BACKEND=s3 requires LEDGER_BUCKET")
	}
	if c.LedgerBackend == "dynamodb" && c.LedgerTable == "" {
		return errors.New("config: LEDGER_BACKEND=dynamodb requires LEDGER_TABLE")
	}
	if c.PollCycles < 1 {
		return fmt.Errorf("config: POLL_CYCLES must be positive, got %d", c.PollCycles)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// firstEnv returns the first variable among keys that is not blank, as set.
func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
