package config

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnvVars = []string{
	"PORT", "OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_PROJECT",
	"OPENAI_AUDIO_MODEL", "OPENAI_TEXT_MODEL", "OPENAI_VIDEO_MODEL",
	"OPENAI_REQUEST_TIMEOUT_SECONDS", "OPENAI_DOWNLOAD_TIMEOUT_SECONDS", "DREAM_VIDEO_DIR", "TEMP_DIR",
	"SKIP_VIDEO_GENERATION", "VIDEO_POLL_INTERVAL", "VIDEO_POLL_MAX_ATTEMPTS",
	"S3_BUCKET", "S3_REGION", "S3_ENDPOINT", "AWS_ACCESS_KEY_ID",
	"AWS_SECRET_ACCESS_KEY", "LOG_FORMAT", "LOG_LEVEL",
}

// clearEnv unsets every config variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnvVars {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoad_RequiresAPIKey(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOpenAIAPIKeyRequired)
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "sk-test", cfg.OpenAIAPIKey)
	assert.Equal(t, "https://api.openai.com/v1", cfg.OpenAIBaseURL)
	assert.Equal(t, "gpt-4o-transcribe", cfg.AudioModel)
	assert.Equal(t, "gpt-5-mini", cfg.TextModel)
	assert.Equal(t, "sora-2", cfg.VideoModel)
	assert.Equal(t, 120*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 30*time.Minute, cfg.DownloadTimeout())
	assert.Equal(t, "generated-videos", cfg.VideoDir)
	assert.Equal(t, "/tmp/dreamvisualizer", cfg.TempDir)
	assert.False(t, cfg.SkipVideoGeneration)
	assert.Equal(t, 10*time.Second, cfg.VideoPollInterval)
	assert.Equal(t, 48, cfg.VideoPollMaxAttempts)
	assert.False(t, cfg.S3Enabled())
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-custom")
	t.Setenv("OPENAI_BASE_URL", "https://proxy.example.com/v1")
	t.Setenv("OPENAI_PROJECT", "proj_1")
	t.Setenv("OPENAI_VIDEO_MODEL", "sora-2-pro")
	t.Setenv("PORT", "3000")
	t.Setenv("DREAM_VIDEO_DIR", "/data/videos")
	t.Setenv("SKIP_VIDEO_GENERATION", "true")
	t.Setenv("VIDEO_POLL_INTERVAL", "2s")
	t.Setenv("VIDEO_POLL_MAX_ATTEMPTS", "10")
	t.Setenv("S3_BUCKET", "my-bucket")
	t.Setenv("S3_REGION", "us-east-1")
	t.Setenv("AWS_ACCESS_KEY_ID", "access-key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret-key")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "https://proxy.example.com/v1", cfg.OpenAIBaseURL)
	assert.Equal(t, "proj_1", cfg.OpenAIProject)
	assert.Equal(t, "sora-2-pro", cfg.VideoModel)
	assert.Equal(t, "/data/videos", cfg.VideoDir)
	assert.True(t, cfg.SkipVideoGeneration)
	assert.Equal(t, 2*time.Second, cfg.VideoPollInterval)
	assert.Equal(t, 10, cfg.VideoPollMaxAttempts)
	assert.True(t, cfg.S3Enabled())
	assert.Equal(t, "access-key", cfg.AWSAccessKeyID)
	assert.Equal(t, "secret-key", cfg.AWSSecretAccessKey)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric port", "PORT", "not-a-number"},
		{"bad duration", "VIDEO_POLL_INTERVAL", "soon"},
		{"zero attempts", "VIDEO_POLL_MAX_ATTEMPTS", "0"},
		{"port out of range", "PORT", "70000"},
		{"bad base url", "OPENAI_BASE_URL", "not a url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("OPENAI_API_KEY", "sk-test")
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestConfig_S3Enabled(t *testing.T) {
	tests := []struct {
		name     string
		bucket   string
		region   string
		expected bool
	}{
		{"both set", "bucket", "region", true},
		{"only bucket", "bucket", "", false},
		{"only region", "", "region", false},
		{"neither set", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				S3Bucket: tt.bucket,
				S3Region: tt.region,
			}
			assert.Equal(t, tt.expected, cfg.S3Enabled())
		})
	}
}

func TestConfig_String(t *testing.T) {
	cfg := &Config{
		Port:               8080,
		OpenAIAPIKey:       "sk-secret",
		AWSSecretAccessKey: "aws-secret",
		VideoModel:         "sora-2",
		VideoDir:           "/tmp/videos",
		LogFormat:          "json",
		LogLevel:           "info",
	}

	str := cfg.String()

	assert.Contains(t, str, "8080")
	assert.Contains(t, str, "sora-2")
	assert.Contains(t, str, "/tmp/videos")

	assert.NotContains(t, str, "sk-secret")
	assert.NotContains(t, str, "aws-secret")
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:                  8080,
			OpenAIAPIKey:          "sk",
			OpenAIBaseURL:         "https://api.openai.com/v1",
			AudioModel:            "a",
			TextModel:             "t",
			VideoModel:            "v",
			RequestTimeoutSecond:  30,
			DownloadTimeoutSecond: 600,
			VideoDir:              "videos",
			VideoPollInterval:     time.Second,
			VideoPollMaxAttempts:  1,
		}
	}

	assert.NoError(t, valid().Validate())

	missingKey := valid()
	missingKey.OpenAIAPIKey = "  "
	assert.ErrorIs(t, missingKey.Validate(), ErrOpenAIAPIKeyRequired)

	noDir := valid()
	noDir.VideoDir = ""
	assert.ErrorIs(t, noDir.Validate(), ErrInvalidConfig)

	noInterval := valid()
	noInterval.VideoPollInterval = 0
	assert.ErrorIs(t, noInterval.Validate(), ErrInvalidConfig)
}

func TestConfig_NewLogger(t *testing.T) {
	for _, format := range []string{"json", "text", ""} {
		cfg := &Config{LogFormat: format, LogLevel: "debug"}
		logger := cfg.NewLogger()
		require.NotNil(t, logger)
		assert.True(t, logger.Enabled(t.Context(), slog.LevelDebug))
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}
