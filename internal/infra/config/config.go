package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseURL      string
	AutoMigrate      bool
	LogLevel         string
	Environment      string
	CronSpecWeekly   string
	NotesBatchSize   int
	RunTimeout       time.Duration
	OutputDir        string
	TemplatesDir     string
	TracksConfigPath string
	TherapistName    string

	GeminiAPIKey  string
	GeminiModel   string
	GeminiTimeout time.Duration

	// Reports are only logged unless both are set.
	TelegramToken     string
	ManagerTelegramID int64
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	if cfg.AutoMigrate, err = envBool("AUTO_MIGRATE", false); err != nil {
		return nil, err
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	cfg.CronSpecWeekly = envString("CRON_SPEC_WEEKLY_NOTES", "0 18 * * 5") // Default: Friday 18:00

	batch := envString("NOTES_BATCH_SIZE", "15")
	cfg.NotesBatchSize, err = strconv.Atoi(batch)
	if err != nil || cfg.NotesBatchSize <= 0 {
		return nil, fmt.Errorf("invalid NOTES_BATCH_SIZE %q: must be a positive integer", batch)
	}

	if cfg.RunTimeout, err = envDuration("RUN_TIMEOUT", 30*time.Minute); err != nil {
		return nil, err
	}

	cfg.OutputDir = envString("OUTPUT_DIR", "./output")
	cfg.TemplatesDir = envString("TEMPLATES_DIR", "./templates")
	cfg.TracksConfigPath = os.Getenv("TRACKS_CONFIG_PATH")
	cfg.TherapistName = strings.TrimSpace(os.Getenv("THERAPIST_NAME"))

	cfg.GeminiAPIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	cfg.GeminiModel = envString("GEMINI_MODEL", "gemini-1.5-flash")
	if cfg.GeminiTimeout, err = envDuration("GEMINI_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if managerIDStr := os.Getenv("MANAGER_TELEGRAM_ID"); managerIDStr != "" {
		cfg.ManagerTelegramID, err = strconv.ParseInt(managerIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid MANAGER_TELEGRAM_ID: %w", err)
		}
	}

	return cfg, nil
}

// ReportsEnabled reports whether run reports can be delivered over Telegram.
func (c *AppConfig) ReportsEnabled() bool {
	return c.TelegramToken != "" && c.ManagerTelegramID != 0
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive duration", key, v)
	}
	return d, nil
}

func envBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
