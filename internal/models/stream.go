package models

import (
	"strings"
	"time"
)

// SavedStream is a reusable name+URL record used by clients when constructing
// a recording. It has no lifecycle interaction with the supervisor.
type SavedStream struct {
	ID          ULID      `json:"id"`
	Name        string    `json:"name"`
	RTSPURL     string    `json:"rtspUrl"`
	Description string    `json:"description,omitempty"`
	Favorite    bool      `json:"favorite,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Validate checks the structural invariants of a saved stream.
func (s *SavedStream) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrNameRequired
	}
	if s.RTSPURL == "" {
		return ErrURLRequired
	}
	if !strings.HasPrefix(s.RTSPURL, "rtsp://") {
		return ErrInvalidRTSPURL
	}
	return nil
}
