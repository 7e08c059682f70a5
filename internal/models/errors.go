package models

import (
	"errors"
	"fmt"
)

// ErrValidation represents a validation error with field and message.
type ErrValidation struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ErrValidation) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// IsValidation reports whether err is (or wraps) a validation error.
func IsValidation(err error) bool {
	var ve ErrValidation
	return errors.As(err, &ve)
}

// Common errors shared across services and the command surface.
var (
	// ErrNotFound indicates an identity lookup miss.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates an operation not permitted in the current status,
	// such as starting an already-started recording or updating a completed one.
	ErrConflict = errors.New("operation conflicts with current status")

	// ErrNameRequired indicates a required name field is empty.
	ErrNameRequired = ErrValidation{Field: "name", Message: "name is required"}

	// ErrURLRequired indicates a required URL field is empty.
	ErrURLRequired = ErrValidation{Field: "rtspUrl", Message: "rtsp url is required"}

	// ErrInvalidRTSPURL indicates a URL that does not use the rtsp:// scheme.
	ErrInvalidRTSPURL = ErrValidation{Field: "rtspUrl", Message: "url must begin with rtsp://"}

	// ErrInvalidDuration indicates a non-positive capture duration.
	ErrInvalidDuration = ErrValidation{Field: "duration", Message: "duration must be positive"}

	// ErrStartTimeRequired indicates a missing or unparseable start time.
	ErrStartTimeRequired = ErrValidation{Field: "startTime", Message: "start time is required"}
)
