package service

import (
	"github.com/recordarr/recordarr/internal/config"
	"github.com/recordarr/recordarr/internal/models"
	"github.com/recordarr/recordarr/internal/store"
)

// SettingsService exposes the settings document with environment-level
// overrides applied on read. Overrides never reach the persisted document;
// they mask it for the running process.
type SettingsService struct {
	store     *store.SettingsStore
	overrides config.TranscoderConfig
}

// NewSettingsService creates the settings command surface.
func NewSettingsService(st *store.SettingsStore, overrides config.TranscoderConfig) *SettingsService {
	return &SettingsService{store: st, overrides: overrides}
}

// Get returns the effective settings: the persisted document merged with
// defaults, masked by any environment overrides.
func (s *SettingsService) Get() models.Settings {
	settings := s.store.Get()
	if s.overrides.BinaryPath != "" {
		settings.TranscoderPath = s.overrides.BinaryPath
	}
	if s.overrides.OutputFormat != "" {
		settings.OutputFormat = s.overrides.OutputFormat
	}
	return settings
}

// Update applies a patch to the persisted document and returns the new
// effective settings.
func (s *SettingsService) Update(patch models.SettingsPatch) (models.Settings, error) {
	if _, err := s.store.Update(patch); err != nil {
		return s.Get(), err
	}
	return s.Get(), nil
}
