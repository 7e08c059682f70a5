package service

import (
	"github.com/recordarr/recordarr/internal/custodian"
)

// StorageService exposes storage accounting and on-demand cleanup.
type StorageService struct {
	custodian *custodian.Custodian
	settings  *SettingsService
}

// NewStorageService creates the storage command surface.
func NewStorageService(c *custodian.Custodian, settings *SettingsService) *StorageService {
	return &StorageService{custodian: c, settings: settings}
}

// StorageStats describes current archive usage against the configured cap.
type StorageStats struct {
	UsedGB         float64 `json:"usedGb"`
	MaxGB          float64 `json:"maxGb"`
	Percentage     float64 `json:"percentage"`
	AutoDeleteDays int     `json:"autoDeleteDays"`
}

// Stats computes current usage. Percentage is zero when the cap is
// unlimited.
func (s *StorageService) Stats() StorageStats {
	settings := s.settings.Get()
	used := s.custodian.UsedStorage().Gigabytes()
	stats := StorageStats{
		UsedGB:         used,
		MaxGB:          settings.MaxStorageGB,
		AutoDeleteDays: settings.AutoDeleteAfterDays,
	}
	if settings.MaxStorageGB > 0 {
		stats.Percentage = used / settings.MaxStorageGB * 100
	}
	return stats
}

// Cleanup triggers one custodian sweep and returns its result.
func (s *StorageService) Cleanup() custodian.Result {
	return s.custodian.Sweep()
}
