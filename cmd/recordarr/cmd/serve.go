package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/recordarr/recordarr/internal/config"
	internalhttp "github.com/recordarr/recordarr/internal/http"
	"github.com/recordarr/recordarr/internal/service"
	"github.com/recordarr/recordarr/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the recordarr server",
	Long: `Start the recordarr HTTP server and recording supervisor.

The server provides:
- REST API for managing recordings, saved streams, and settings
- Health check endpoint with system metrics
- OpenAPI documentation at /docs

On startup, supervision resumes for every recording left unfinished by a
previous run.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("data-dir", "./data", "Directory for persistence documents")
	serveCmd.Flags().String("output-dir", "./recordings", "Directory for recording output files")
	serveCmd.Flags().String("logs-dir", "./logs", "Directory for per-recording capture logs")

	mustBindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	mustBindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	mustBindPFlag("storage.data_dir", serveCmd.Flags().Lookup("data-dir"))
	mustBindPFlag("storage.output_dir", serveCmd.Flags().Lookup("output-dir"))
	mustBindPFlag("storage.logs_dir", serveCmd.Flags().Lookup("logs-dir"))
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	cfg, err := unmarshalConfig()
	if err != nil {
		return err
	}

	for _, dir := range []string{cfg.Storage.DataDir, cfg.Storage.OutputDir, cfg.Storage.LogsDir} {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	svcs := service.New(cfg, logger)
	if err := svcs.Start(); err != nil {
		return fmt.Errorf("starting services: %w", err)
	}
	defer svcs.Shutdown()

	server := internalhttp.NewServer(cfg, svcs, logger, version.Version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	logger.Info("starting recordarr server",
		slog.String("host", cfg.Server.Host),
		slog.Int("port", cfg.Server.Port),
		slog.String("version", version.Version),
	)

	return server.ListenAndServe(ctx)
}

// unmarshalConfig decodes the global viper state, already populated by
// initConfig, into a validated Config.
func unmarshalConfig() (*config.Config, error) {
	var cfg config.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}
