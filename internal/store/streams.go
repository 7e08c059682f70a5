package store

import (
	"log/slog"
	"sync"

	"github.com/recordarr/recordarr/internal/models"
)

// StreamStore owns the saved-streams document.
type StreamStore struct {
	mu     sync.RWMutex
	path   string
	logger *slog.Logger

	loaded bool
	cache  []*models.SavedStream
}

// NewStreamStore creates a store backed by the document at path.
func NewStreamStore(path string) *StreamStore {
	return &StreamStore{path: path, logger: slog.Default()}
}

// WithLogger sets a custom logger.
func (s *StreamStore) WithLogger(logger *slog.Logger) *StreamStore {
	s.logger = logger
	return s
}

func (s *StreamStore) ensureLoaded() {
	if s.loaded {
		return
	}
	var streams []*models.SavedStream
	if _, err := readDocument(s.path, &streams, s.logger); err != nil {
		s.logger.Error("loading streams document", slog.String("error", err.Error()))
	}
	s.cache = streams
	s.loaded = true
}

// List returns a copy of every saved stream.
func (s *StreamStore) List() []*models.SavedStream {
	s.mu.Lock()
	s.ensureLoaded()
	out := make([]*models.SavedStream, len(s.cache))
	for i, st := range s.cache {
		c := *st
		out[i] = &c
	}
	s.mu.Unlock()
	return out
}

// Get returns the saved stream with the given id, or models.ErrNotFound.
func (s *StreamStore) Get(id models.ULID) (*models.SavedStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	for _, st := range s.cache {
		if st.ID == id {
			c := *st
			return &c, nil
		}
	}
	return nil, models.ErrNotFound
}

// Create appends a saved stream and writes durably.
func (s *StreamStore) Create(stream *models.SavedStream) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	c := *stream
	s.cache = append(s.cache, &c)
	return s.flushLocked()
}

// Update replaces the stored stream with the same id and writes durably.
func (s *StreamStore) Update(stream *models.SavedStream) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	for i, st := range s.cache {
		if st.ID == stream.ID {
			c := *stream
			s.cache[i] = &c
			return s.flushLocked()
		}
	}
	return models.ErrNotFound
}

// Delete removes the stream with the given id and writes durably.
func (s *StreamStore) Delete(id models.ULID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	for i, st := range s.cache {
		if st.ID == id {
			s.cache = append(s.cache[:i], s.cache[i+1:]...)
			return s.flushLocked()
		}
	}
	return models.ErrNotFound
}

func (s *StreamStore) flushLocked() error {
	doc := s.cache
	if doc == nil {
		doc = []*models.SavedStream{}
	}
	if err := writeDocumentAtomic(s.path, doc); err != nil {
		s.logger.Error("writing streams document", slog.String("error", err.Error()))
		return err
	}
	return nil
}
