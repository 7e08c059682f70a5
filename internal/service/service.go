package service

import (
	"log/slog"

	"github.com/recordarr/recordarr/internal/config"
	"github.com/recordarr/recordarr/internal/custodian"
	"github.com/recordarr/recordarr/internal/ffmpeg"
	"github.com/recordarr/recordarr/internal/models"
	"github.com/recordarr/recordarr/internal/rtsp"
	"github.com/recordarr/recordarr/internal/store"
	"github.com/recordarr/recordarr/internal/supervisor"
)

// Services bundles the whole command surface with its shared collaborators.
type Services struct {
	Recordings *RecordingService
	Streams    *StreamService
	Settings   *SettingsService
	Storage    *StorageService
	Probe      *ProbeService
	Custodian  *custodian.Custodian

	recordings *store.RecordingStore
	prober     rtsp.Prober
	logger     *slog.Logger
}

// New wires stores, prober, runner, custodian, and services from the
// configuration. Nothing is scheduled until Start.
func New(cfg *config.Config, logger *slog.Logger) *Services {
	if logger == nil {
		logger = slog.Default()
	}
	recStore := store.NewRecordingStore(cfg.Storage.RecordingsPath()).WithLogger(logger)
	streamStore := store.NewStreamStore(cfg.Storage.StreamsPath()).WithLogger(logger)
	settingsStore := store.NewSettingsStore(cfg.Storage.SettingsPath()).WithLogger(logger)

	settingsSvc := NewSettingsService(settingsStore, cfg.Transcoder)
	prober := rtsp.NewProber(cfg.Prober, logger)
	runner := ffmpeg.NewRunner().WithLogger(logger)
	cust := custodian.New(recStore, settingsSvc).WithLogger(logger)

	deps := supervisor.Deps{
		Store:    recStore,
		Settings: settingsSvc,
		Prober:   prober,
		Runner:   runner,
		LogsDir:  cfg.Storage.LogsDir,
		Logger:   logger,
		OnComplete: func(*models.Recording) {
			cust.NotifyCompleted()
		},
	}
	registry := supervisor.NewRegistry()

	return &Services{
		Recordings: NewRecordingService(recStore, registry, deps),
		Streams:    NewStreamService(streamStore),
		Settings:   settingsSvc,
		Storage:    NewStorageService(cust, settingsSvc),
		Probe:      NewProbeService(prober),
		Custodian:  cust,

		recordings: recStore,
		prober:     prober,
		logger:     logger,
	}
}

// Start resumes supervision of unfinished recordings and arms the custodian
// schedule.
func (s *Services) Start() error {
	if err := s.Recordings.Recover(); err != nil {
		return err
	}
	return s.Custodian.Start()
}

// Shutdown stops the schedules, flushes cached persistence updates, and
// closes pooled prober sockets. Running supervisors are left to the process
// exit; their terminal writes are durable on their own.
func (s *Services) Shutdown() {
	s.Custodian.Stop()
	if err := s.recordings.Flush(); err != nil {
		s.logger.Error("flushing recordings document", slog.String("error", err.Error()))
	}
	if pooled, ok := s.prober.(*rtsp.PooledProber); ok {
		pooled.Close()
	}
}
