package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing recordarr configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the effective configuration",
	Long: `Dump the effective configuration values in YAML format.

This shows every configuration option after applying defaults, the config
file, environment variables, and CLI flags. Redirect the output to create a
configuration template:

  recordarr config dump > config.yaml

Environment variables use the RECORDARR_ prefix and underscores for
nesting. Example: storage.output_dir -> RECORDARR_STORAGE_OUTPUT_DIR`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

func runConfigDump(cmd *cobra.Command, args []string) error {
	cfg, err := unmarshalConfig()
	if err != nil {
		return err
	}

	out := map[string]any{
		"server": map[string]any{
			"host":             cfg.Server.Host,
			"port":             cfg.Server.Port,
			"read_timeout":     cfg.Server.ReadTimeout.String(),
			"write_timeout":    cfg.Server.WriteTimeout.String(),
			"shutdown_timeout": cfg.Server.ShutdownTimeout.String(),
		},
		"storage": map[string]any{
			"data_dir":        cfg.Storage.DataDir,
			"recordings_file": cfg.Storage.RecordingsFile,
			"streams_file":    cfg.Storage.StreamsFile,
			"settings_file":   cfg.Storage.SettingsFile,
			"output_dir":      cfg.Storage.OutputDir,
			"logs_dir":        cfg.Storage.LogsDir,
		},
		"logging": map[string]any{
			"level":       cfg.Logging.Level,
			"format":      cfg.Logging.Format,
			"add_source":  cfg.Logging.AddSource,
			"time_format": cfg.Logging.TimeFormat,
		},
		"prober": map[string]any{
			"pooled":             cfg.Prober.Pooled,
			"default_timeout":    cfg.Prober.DefaultTimeout.String(),
			"endpoint_idle_ttl":  cfg.Prober.EndpointIdleTTL.String(),
			"heartbeat_enabled":  cfg.Prober.HeartbeatEnabled,
			"heartbeat_interval": cfg.Prober.HeartbeatInterval.String(),
		},
		"transcoder": map[string]any{
			"binary_path":   cfg.Transcoder.BinaryPath,
			"output_format": cfg.Transcoder.OutputFormat,
		},
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	fmt.Print(string(data))
	return nil
}
