package store

import (
	"log/slog"
	"sync"

	"github.com/recordarr/recordarr/internal/models"
)

// RecordingStore owns the recordings document. All mutation goes through its
// mutex so the read-mutate-write sequence is serialized per document.
type RecordingStore struct {
	mu     sync.RWMutex
	path   string
	logger *slog.Logger

	loaded bool
	cache  []*models.Recording
	dirty  bool // cache has updates not yet written to disk
}

// NewRecordingStore creates a store backed by the document at path.
func NewRecordingStore(path string) *RecordingStore {
	return &RecordingStore{path: path, logger: slog.Default()}
}

// WithLogger sets a custom logger.
func (s *RecordingStore) WithLogger(logger *slog.Logger) *RecordingStore {
	s.logger = logger
	return s
}

// ensureLoaded populates the cache from disk on first use. Caller holds mu.
func (s *RecordingStore) ensureLoaded() {
	if s.loaded {
		return
	}
	var recs []*models.Recording
	if _, err := readDocument(s.path, &recs, s.logger); err != nil {
		s.logger.Error("loading recordings document", slog.String("error", err.Error()))
	}
	s.cache = recs
	s.loaded = true
}

// List returns a copy of every recording.
func (s *RecordingStore) List() []*models.Recording {
	s.mu.Lock()
	s.ensureLoaded()
	out := make([]*models.Recording, len(s.cache))
	for i, r := range s.cache {
		out[i] = r.Clone()
	}
	s.mu.Unlock()
	return out
}

// Get returns the recording with the given id, or models.ErrNotFound.
func (s *RecordingStore) Get(id models.ULID) (*models.Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	for _, r := range s.cache {
		if r.ID == id {
			return r.Clone(), nil
		}
	}
	return nil, models.ErrNotFound
}

// Create appends a recording and writes the document durably.
func (s *RecordingStore) Create(rec *models.Recording) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	s.cache = append(s.cache, rec.Clone())
	return s.flushLocked()
}

// Update replaces the stored recording with the same id. When durable is
// false only the cache is touched (progress hot path); the change reaches
// disk on the next durable write.
func (s *RecordingStore) Update(rec *models.Recording, durable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	for i, r := range s.cache {
		if r.ID == rec.ID {
			s.cache[i] = rec.Clone()
			if !durable {
				s.dirty = true
				return nil
			}
			return s.flushLocked()
		}
	}
	return models.ErrNotFound
}

// Delete removes the recording with the given id and writes durably.
func (s *RecordingStore) Delete(id models.ULID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	for i, r := range s.cache {
		if r.ID == id {
			s.cache = append(s.cache[:i], s.cache[i+1:]...)
			return s.flushLocked()
		}
	}
	return models.ErrNotFound
}

// Flush writes the cached document to disk if it has pending updates.
func (s *RecordingStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	if !s.dirty {
		return nil
	}
	return s.flushLocked()
}

// flushLocked writes the whole cached document. Caller holds mu.
func (s *RecordingStore) flushLocked() error {
	doc := s.cache
	if doc == nil {
		doc = []*models.Recording{}
	}
	if err := writeDocumentAtomic(s.path, doc); err != nil {
		s.logger.Error("writing recordings document", slog.String("error", err.Error()))
		return err
	}
	s.dirty = false
	return nil
}
