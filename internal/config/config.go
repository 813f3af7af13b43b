// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// DefaultGeminiModel is the generation model used when GEMINI_MODEL is unset.
const DefaultGeminiModel = "gemini-2.5-flash"

// Static errors for configuration validation.
var (
	// ErrInvalidPollInterval is returned when FILE_POLL_INTERVAL is not positive
	// or exceeds FILE_POLL_TIMEOUT.
	ErrInvalidPollInterval = errors.New("config: FILE_POLL_INTERVAL must be positive and not exceed FILE_POLL_TIMEOUT")
	// ErrInvalidTimeout is returned when one of the timeouts is not positive.
	ErrInvalidTimeout = errors.New("config: timeouts must be positive")
	// ErrInvalidPort is returned when PORT is outside the valid TCP range.
	ErrInvalidPort = errors.New("config: PORT must be between 1 and 65535")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port           int      `env:"PORT, default=8080" json:"port"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS, default=*" json:"allowed_origins"`

	// Gemini settings. An empty key leaves the AI backend unavailable.
	GeminiAPIKey      string `env:"GEMINI_API_KEY" json:"-"` // Masked in JSON
	GeminiModel       string `env:"GEMINI_MODEL, default=gemini-2.5-flash" json:"gemini_model"`
	DeleteRemoteFiles bool   `env:"DELETE_REMOTE_FILES, default=true" json:"delete_remote_files"`

	// Storage settings
	TempDir string `env:"TEMP_DIR, default=/tmp/interview-feedback" json:"temp_dir"`

	// Media tooling
	FFmpegPath  string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath string `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`

	// Timing settings
	ExtractionTimeout time.Duration `env:"EXTRACTION_TIMEOUT, default=30s" json:"extraction_timeout"`
	FilePollInterval  time.Duration `env:"FILE_POLL_INTERVAL, default=2s" json:"file_poll_interval"`
	FilePollTimeout   time.Duration `env:"FILE_POLL_TIMEOUT, default=30s" json:"file_poll_timeout"`
	AnalysisTimeout   time.Duration `env:"ANALYSIS_TIMEOUT, default=3m" json:"analysis_timeout"`

	// Optional S3 recording archive
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	S3Prefix           string `env:"S3_PREFIX, default=recordings/" json:"s3_prefix,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// GeminiEnabled reports whether an API key for the AI backend is configured.
func (c *Config) GeminiEnabled() bool {
	return strings.TrimSpace(c.GeminiAPIKey) != ""
}

// Load reads configuration from environment variables using go-envconfig
// and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if cfg.GeminiModel == "" {
		cfg.GeminiModel = DefaultGeminiModel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the loaded values are usable together.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return ErrInvalidPort
	}
	if c.ExtractionTimeout <= 0 || c.FilePollTimeout <= 0 || c.AnalysisTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.FilePollInterval <= 0 || c.FilePollInterval > c.FilePollTimeout {
		return ErrInvalidPollInterval
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, GeminiEnabled: %t, GeminiModel: %s, TempDir: %s, ExtractionTimeout: %s, FilePollInterval: %s, FilePollTimeout: %s, AnalysisTimeout: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.GeminiEnabled(),
		c.GeminiModel,
		c.TempDir,
		c.ExtractionTimeout,
		c.FilePollInterval,
		c.FilePollTimeout,
		c.AnalysisTimeout,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
