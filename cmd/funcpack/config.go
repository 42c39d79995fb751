package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/artpar/funcpack/internal/publish"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration. The build manifest
// (funcpack.yaml) is separate: config tunes how builds run, the manifest
// says what to build.
type Config struct {
	Docker  DockerConfig  `mapstructure:"docker"`
	Build   BuildConfig   `mapstructure:"build"`
	Journal JournalConfig `mapstructure:"journal"`
	Publish PublishConfig `mapstructure:"publish"`
	Log     LogConfig     `mapstructure:"log"`
}

// DockerConfig holds Docker client configuration.
type DockerConfig struct {
	Host string `mapstructure:"host"`
}

// BuildConfig tunes the build pipeline.
type BuildConfig struct {
	// StagingDir is where dependencies and the handler are assembled,
	// relative to the working directory.
	StagingDir string `mapstructure:"staging_dir"`

	// Timeout bounds the in-container dependency install.
	Timeout time.Duration `mapstructure:"timeout"`

	// StrictVerify makes a missing required file fail the build instead
	// of only logging it.
	StrictVerify bool `mapstructure:"strict_verify"`
}

// JournalConfig holds build history configuration.
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

// PublishConfig holds S3 publish configuration.
type PublishConfig struct {
	Bucket          string `mapstructure:"bucket"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// publishConfig converts to the publisher's config type.
func (c PublishConfig) publishConfig() publish.Config {
	return publish.Config{
		Bucket:          c.Bucket,
		KeyPrefix:       c.KeyPrefix,
		Region:          c.Region,
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
	}
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("docker.host", "")
	v.SetDefault("build.staging_dir", "package")
	v.SetDefault("build.timeout", "10m")
	v.SetDefault("build.strict_verify", true)
	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.dsn", ".funcpack/builds.db")
	v.SetDefault("publish.bucket", "")
	v.SetDefault("publish.key_prefix", "")
	v.SetDefault("publish.region", "us-east-1")
	v.SetDefault("publish.access_key_id", "")
	v.SetDefault("publish.secret_access_key", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Only return error if file was explicitly specified and is invalid
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			// File not found is OK, we'll use defaults
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("FUNCPACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
