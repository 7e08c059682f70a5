// Package handlers provides the HTTP API handlers for recordarr.
package handlers

import (
	"errors"
	"fmt"

	"github.com/danielgtaylor/huma/v2"

	"github.com/recordarr/recordarr/internal/models"
)

// serviceError maps command-surface errors onto HTTP status errors:
// validation 422, conflict 409, lookup miss 404, anything else 500.
func serviceError(err error, subject string) error {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return huma.Error404NotFound(fmt.Sprintf("%s not found", subject))
	case errors.Is(err, models.ErrConflict):
		return huma.Error409Conflict(fmt.Sprintf("%s: %s", subject, err.Error()))
	case models.IsValidation(err):
		return huma.Error422UnprocessableEntity(err.Error())
	default:
		return huma.Error500InternalServerError(fmt.Sprintf("%s operation failed", subject), err)
	}
}

// parseID parses a path ULID, answering 400 on malformed input.
func parseID(raw string) (models.ULID, error) {
	id, err := models.ParseULID(raw)
	if err != nil {
		return models.ULID{}, huma.Error400BadRequest("invalid ID format", err)
	}
	return id, nil
}
