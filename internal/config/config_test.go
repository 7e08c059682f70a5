package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err) // explicit path must exist

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "./data", cfg.Storage.DataDir)
	assert.Equal(t, "recordings.json", cfg.Storage.RecordingsFile)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Prober.Pooled)
	assert.Equal(t, time.Second, cfg.Prober.DefaultTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Prober.EndpointIdleTTL)
	assert.False(t, cfg.Prober.HeartbeatEnabled)
	assert.Empty(t, cfg.Transcoder.BinaryPath)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
server:
  port: 9090
storage:
  output_dir: /srv/recordings
prober:
  heartbeat_enabled: true
  heartbeat_interval: 45s
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0640))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/srv/recordings", cfg.Storage.OutputDir)
	assert.True(t, cfg.Prober.HeartbeatEnabled)
	assert.Equal(t, 45*time.Second, cfg.Prober.HeartbeatInterval)
	// Untouched keys keep their defaults.
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0640))

	t.Setenv("RECORDARR_SERVER_PORT", "7070")
	t.Setenv("RECORDARR_STORAGE_OUTPUT_DIR", "/mnt/archive")
	t.Setenv("RECORDARR_TRANSCODER_BINARY_PATH", "/opt/ffmpeg/bin/ffmpeg")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "/mnt/archive", cfg.Storage.OutputDir)
	assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", cfg.Transcoder.BinaryPath)
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Storage.OutputDir = ""
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Logging.Level = "verbose"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Prober.DefaultTimeout = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Prober.HeartbeatEnabled = true
	cfg.Prober.HeartbeatInterval = 0
	assert.Error(t, cfg.Validate())
}

func TestDocPaths(t *testing.T) {
	s := StorageConfig{
		DataDir:        "/var/lib/recordarr",
		RecordingsFile: "recordings.json",
		StreamsFile:    "streams.json",
		SettingsFile:   "/etc/recordarr/settings.json",
	}
	assert.Equal(t, "/var/lib/recordarr/recordings.json", s.RecordingsPath())
	assert.Equal(t, "/var/lib/recordarr/streams.json", s.StreamsPath())
	// Absolute file paths bypass the data dir.
	assert.Equal(t, "/etc/recordarr/settings.json", s.SettingsPath())
}
