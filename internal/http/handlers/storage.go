package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/recordarr/recordarr/internal/custodian"
	"github.com/recordarr/recordarr/internal/service"
)

// StorageHandler handles storage accounting and cleanup endpoints.
type StorageHandler struct {
	storage *service.StorageService
}

// NewStorageHandler creates a new storage handler.
func NewStorageHandler(storage *service.StorageService) *StorageHandler {
	return &StorageHandler{storage: storage}
}

// Register registers the storage routes with the API.
func (h *StorageHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getStorageStats",
		Method:      "GET",
		Path:        "/api/v1/storage/stats",
		Summary:     "Storage statistics",
		Description: "Returns archive usage against the configured cap",
		Tags:        []string{"Storage"},
	}, h.Stats)

	huma.Register(api, huma.Operation{
		OperationID: "runStorageCleanup",
		Method:      "POST",
		Path:        "/api/v1/storage/cleanup",
		Summary:     "Run cleanup sweep",
		Description: "Triggers one retention and quota sweep immediately",
		Tags:        []string{"Storage"},
	}, h.Cleanup)
}

// StorageStatsInput is the input for storage statistics.
type StorageStatsInput struct{}

// StorageStatsOutput is the output for storage statistics.
type StorageStatsOutput struct {
	Body service.StorageStats
}

// Stats returns current archive usage.
func (h *StorageHandler) Stats(ctx context.Context, input *StorageStatsInput) (*StorageStatsOutput, error) {
	return &StorageStatsOutput{Body: h.storage.Stats()}, nil
}

// StorageCleanupInput is the input for the cleanup sweep.
type StorageCleanupInput struct{}

// StorageCleanupOutput is the output for the cleanup sweep.
type StorageCleanupOutput struct {
	Body custodian.Result
}

// Cleanup runs one sweep and returns its result.
func (h *StorageHandler) Cleanup(ctx context.Context, input *StorageCleanupInput) (*StorageCleanupOutput, error) {
	return &StorageCleanupOutput{Body: h.storage.Cleanup()}, nil
}
