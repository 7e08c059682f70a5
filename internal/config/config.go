// Package config provides configuration management for recordarr using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort        = 8080
	defaultServerTimeout     = 30 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
	defaultProbeTimeout      = time.Second
	defaultEndpointIdleTTL   = 10 * time.Minute
	defaultHeartbeatInterval = 30 * time.Second
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Prober     ProberConfig     `mapstructure:"prober"`
	Transcoder TranscoderConfig `mapstructure:"transcoder"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StorageConfig holds on-disk layout configuration: where the persistence
// documents, recording files, and per-recording logs live.
type StorageConfig struct {
	DataDir        string `mapstructure:"data_dir"`
	RecordingsFile string `mapstructure:"recordings_file"`
	StreamsFile    string `mapstructure:"streams_file"`
	SettingsFile   string `mapstructure:"settings_file"`
	OutputDir      string `mapstructure:"output_dir"`
	LogsDir        string `mapstructure:"logs_dir"`
}

// RecordingsPath returns the absolute-ish path of the recordings document.
func (s StorageConfig) RecordingsPath() string { return s.docPath(s.RecordingsFile) }

// StreamsPath returns the path of the saved-streams document.
func (s StorageConfig) StreamsPath() string { return s.docPath(s.StreamsFile) }

// SettingsPath returns the path of the settings document.
func (s StorageConfig) SettingsPath() string { return s.docPath(s.SettingsFile) }

func (s StorageConfig) docPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.DataDir, name)
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// ProberConfig holds RTSP liveness prober configuration.
type ProberConfig struct {
	// Pooled selects the connection-pooled CSeq-demultiplexed prober.
	// When false a simpler one-connection-per-probe prober is used.
	Pooled bool `mapstructure:"pooled"`
	// DefaultTimeout bounds a single probe when the caller supplies none.
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
	// EndpointIdleTTL evicts a pooled endpoint socket after this idle time.
	EndpointIdleTTL time.Duration `mapstructure:"endpoint_idle_ttl"`
	// HeartbeatEnabled turns on periodic OPTIONS keepalives per endpoint.
	HeartbeatEnabled bool `mapstructure:"heartbeat_enabled"`
	// HeartbeatInterval is the keepalive period when heartbeat is enabled.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
}

// TranscoderConfig carries environment-level overrides for the persisted
// settings document. Empty values mean "no override".
type TranscoderConfig struct {
	BinaryPath   string `mapstructure:"binary_path"`
	OutputFormat string `mapstructure:"output_format"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with RECORDARR_ and use underscores for
// nesting. Example: RECORDARR_STORAGE_OUTPUT_DIR=/srv/recordings.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/recordarr")
		v.AddConfigPath("$HOME/.recordarr")
	}

	v.SetEnvPrefix("RECORDARR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - defaults and env vars apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)

	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.recordings_file", "recordings.json")
	v.SetDefault("storage.streams_file", "streams.json")
	v.SetDefault("storage.settings_file", "settings.json")
	v.SetDefault("storage.output_dir", "./recordings")
	v.SetDefault("storage.logs_dir", "./logs")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	v.SetDefault("prober.pooled", true)
	v.SetDefault("prober.default_timeout", defaultProbeTimeout)
	v.SetDefault("prober.endpoint_idle_ttl", defaultEndpointIdleTTL)
	v.SetDefault("prober.heartbeat_enabled", false)
	v.SetDefault("prober.heartbeat_interval", defaultHeartbeatInterval)

	v.SetDefault("transcoder.binary_path", "")
	v.SetDefault("transcoder.output_format", "")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required")
	}
	if c.Storage.OutputDir == "" {
		return fmt.Errorf("storage.output_dir is required")
	}
	if c.Storage.LogsDir == "" {
		return fmt.Errorf("storage.logs_dir is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Prober.DefaultTimeout <= 0 {
		return fmt.Errorf("prober.default_timeout must be positive")
	}
	if c.Prober.EndpointIdleTTL <= 0 {
		return fmt.Errorf("prober.endpoint_idle_ttl must be positive")
	}
	if c.Prober.HeartbeatEnabled && c.Prober.HeartbeatInterval <= 0 {
		return fmt.Errorf("prober.heartbeat_interval must be positive when heartbeat is enabled")
	}

	return nil
}
