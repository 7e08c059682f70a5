package service

import (
	"time"

	"github.com/recordarr/recordarr/internal/models"
	"github.com/recordarr/recordarr/internal/store"
)

// StreamService owns saved-stream CRUD. Saved streams are pure metadata;
// nothing here touches the supervisor.
type StreamService struct {
	store *store.StreamStore
}

// NewStreamService creates the saved-stream command surface.
func NewStreamService(st *store.StreamStore) *StreamService {
	return &StreamService{store: st}
}

// CreateStreamInput is the payload for Create.
type CreateStreamInput struct {
	Name        string
	RTSPURL     string
	Description string
	Favorite    bool
}

// UpdateStreamInput is the partial payload for Update.
type UpdateStreamInput struct {
	Name        *string
	RTSPURL     *string
	Description *string
	Favorite    *bool
}

// List returns every saved stream.
func (s *StreamService) List() []*models.SavedStream {
	return s.store.List()
}

// Get returns one saved stream.
func (s *StreamService) Get(id models.ULID) (*models.SavedStream, error) {
	return s.store.Get(id)
}

// Create validates and stores a new saved stream.
func (s *StreamService) Create(input CreateStreamInput) (*models.SavedStream, error) {
	now := time.Now()
	stream := &models.SavedStream{
		ID:          models.NewULID(),
		Name:        input.Name,
		RTSPURL:     input.RTSPURL,
		Description: input.Description,
		Favorite:    input.Favorite,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := stream.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Create(stream); err != nil {
		return nil, err
	}
	return stream, nil
}

// Update overlays the non-nil input fields and stores the result.
func (s *StreamService) Update(id models.ULID, input UpdateStreamInput) (*models.SavedStream, error) {
	stream, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		stream.Name = *input.Name
	}
	if input.RTSPURL != nil {
		stream.RTSPURL = *input.RTSPURL
	}
	if input.Description != nil {
		stream.Description = *input.Description
	}
	if input.Favorite != nil {
		stream.Favorite = *input.Favorite
	}
	stream.UpdatedAt = time.Now()
	if err := stream.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Update(stream); err != nil {
		return nil, err
	}
	return stream, nil
}

// Delete removes a saved stream.
func (s *StreamService) Delete(id models.ULID) error {
	return s.store.Delete(id)
}
