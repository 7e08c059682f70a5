package store

import (
	"log/slog"
	"sync"

	"github.com/recordarr/recordarr/internal/models"
)

// SettingsStore owns the settings document. The document on disk may be
// sparse; it is loaded as a patch and merged over the defaults, so a missing
// or corrupt file yields the defaults.
type SettingsStore struct {
	mu     sync.RWMutex
	path   string
	logger *slog.Logger

	loaded bool
	cache  models.Settings
}

// NewSettingsStore creates a store backed by the document at path.
func NewSettingsStore(path string) *SettingsStore {
	return &SettingsStore{path: path, logger: slog.Default()}
}

// WithLogger sets a custom logger.
func (s *SettingsStore) WithLogger(logger *slog.Logger) *SettingsStore {
	s.logger = logger
	return s
}

func (s *SettingsStore) ensureLoaded() {
	if s.loaded {
		return
	}
	var patch models.SettingsPatch
	if _, err := readDocument(s.path, &patch, s.logger); err != nil {
		s.logger.Error("loading settings document", slog.String("error", err.Error()))
	}
	s.cache = patch.ApplyTo(models.DefaultSettings())
	s.loaded = true
}

// Get returns the current settings merged with defaults.
func (s *SettingsStore) Get() models.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	return s.cache
}

// Update applies a patch to the current settings, validates the result, and
// writes the full document durably.
func (s *SettingsStore) Update(patch models.SettingsPatch) (models.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	next := patch.ApplyTo(s.cache)
	if err := next.Validate(); err != nil {
		return s.cache, err
	}

	if err := writeDocumentAtomic(s.path, next); err != nil {
		s.logger.Error("writing settings document", slog.String("error", err.Error()))
		return s.cache, err
	}
	s.cache = next
	return next, nil
}
