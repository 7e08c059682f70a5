package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/recordarr/recordarr/internal/models"
	"github.com/recordarr/recordarr/internal/service"
)

// SettingsHandler handles settings API endpoints.
type SettingsHandler struct {
	settings *service.SettingsService
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(settings *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// Register registers the settings routes with the API.
func (h *SettingsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getSettings",
		Method:      "GET",
		Path:        "/api/v1/settings",
		Summary:     "Get settings",
		Description: "Returns the effective settings document",
		Tags:        []string{"Settings"},
	}, h.GetSettings)

	huma.Register(api, huma.Operation{
		OperationID: "updateSettings",
		Method:      "PUT",
		Path:        "/api/v1/settings",
		Summary:     "Update settings",
		Description: "Applies a partial update to the settings document",
		Tags:        []string{"Settings"},
	}, h.UpdateSettings)
}

// GetSettingsInput is the input for getting settings.
type GetSettingsInput struct{}

// GetSettingsOutput is the output for getting settings.
type GetSettingsOutput struct {
	Body models.Settings
}

// GetSettings returns the effective settings.
func (h *SettingsHandler) GetSettings(ctx context.Context, input *GetSettingsInput) (*GetSettingsOutput, error) {
	return &GetSettingsOutput{Body: h.settings.Get()}, nil
}

// UpdateSettingsInput is the input for updating settings. Absent fields are
// left unchanged.
type UpdateSettingsInput struct {
	Body models.SettingsPatch
}

// UpdateSettingsOutput is the output for updating settings.
type UpdateSettingsOutput struct {
	Body models.Settings
}

// UpdateSettings applies a partial settings update.
func (h *SettingsHandler) UpdateSettings(ctx context.Context, input *UpdateSettingsInput) (*UpdateSettingsOutput, error) {
	settings, err := h.settings.Update(input.Body)
	if err != nil {
		return nil, serviceError(err, "settings")
	}
	return &UpdateSettingsOutput{Body: settings}, nil
}
