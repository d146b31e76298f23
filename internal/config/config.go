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

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrOpenAIAPIKeyRequired is returned when OPENAI_API_KEY is not set.
	ErrOpenAIAPIKeyRequired = errors.New("config: OPENAI_API_KEY is required")
	// ErrInvalidConfig is returned when a value is out of range.
	ErrInvalidConfig = errors.New("config: invalid configuration")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port" validate:"min=1,max=65535"`

	// OpenAI settings
	OpenAIAPIKey          string `env:"OPENAI_API_KEY, required" json:"-"` // Masked in JSON
	OpenAIBaseURL         string `env:"OPENAI_BASE_URL, default=https://api.openai.com/v1" json:"openai_base_url" validate:"required,url"`
	OpenAIProject         string `env:"OPENAI_PROJECT" json:"openai_project,omitempty"`
	AudioModel            string `env:"OPENAI_AUDIO_MODEL, default=gpt-4o-transcribe" json:"audio_model" validate:"required"`
	TextModel             string `env:"OPENAI_TEXT_MODEL, default=gpt-5-mini" json:"text_model" validate:"required"`
	VideoModel            string `env:"OPENAI_VIDEO_MODEL, default=sora-2" json:"video_model" validate:"required"`
	RequestTimeoutSecond  int    `env:"OPENAI_REQUEST_TIMEOUT_SECONDS, default=120" json:"request_timeout_seconds" validate:"gt=0"`
	DownloadTimeoutSecond int    `env:"OPENAI_DOWNLOAD_TIMEOUT_SECONDS, default=1800" json:"download_timeout_seconds" validate:"gt=0"`

	// Storage settings
	VideoDir string `env:"DREAM_VIDEO_DIR, default=generated-videos" json:"video_dir" validate:"required"`
	TempDir  string `env:"TEMP_DIR, default=/tmp/dreamvisualizer" json:"temp_dir"`

	// Video generation settings
	SkipVideoGeneration  bool          `env:"SKIP_VIDEO_GENERATION, default=false" json:"skip_video_generation"`
	VideoPollInterval    time.Duration `env:"VIDEO_POLL_INTERVAL, default=10s" json:"video_poll_interval" validate:"gt=0"`
	VideoPollMaxAttempts int           `env:"VIDEO_POLL_MAX_ATTEMPTS, default=48" json:"video_poll_max_attempts" validate:"gt=0"`

	// Optional S3 mirror settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
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

// RequestTimeout returns the per-request timeout for OpenAI calls.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSecond) * time.Second
}

// DownloadTimeout returns the per-attempt limit for artifact downloads.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.DownloadTimeoutSecond) * time.Second
}

// Load reads configuration from environment variables using go-envconfig
// and validates it.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		if strings.Contains(err.Error(), "OPENAI_API_KEY") {
			return nil, ErrOpenAIAPIKeyRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var configValidator = validator.New()

// Validate checks that all required configuration is present and in range.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.OpenAIAPIKey) == "" {
		return ErrOpenAIAPIKeyRequired
	}
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, OpenAIBaseURL: %s, AudioModel: %s, TextModel: %s, VideoModel: %s, VideoDir: %s, TempDir: %s, SkipVideoGeneration: %t, VideoPollInterval: %s, VideoPollMaxAttempts: %d, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.OpenAIBaseURL,
		c.AudioModel,
		c.TextModel,
		c.VideoModel,
		c.VideoDir,
		c.TempDir,
		c.SkipVideoGeneration,
		c.VideoPollInterval,
		c.VideoPollMaxAttempts,
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
