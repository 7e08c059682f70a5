package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/recordarr/recordarr/internal/models"
	"github.com/recordarr/recordarr/internal/service"
)

// RecordingHandler handles recording API endpoints.
type RecordingHandler struct {
	recordings *service.RecordingService
}

// NewRecordingHandler creates a new recording handler.
func NewRecordingHandler(recordings *service.RecordingService) *RecordingHandler {
	return &RecordingHandler{recordings: recordings}
}

// Register registers the recording routes with the API.
func (h *RecordingHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listRecordings",
		Method:      "GET",
		Path:        "/api/v1/recordings",
		Summary:     "List recordings",
		Description: "Returns all recordings with their derived status",
		Tags:        []string{"Recordings"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getRecordingStats",
		Method:      "GET",
		Path:        "/api/v1/recordings/stats",
		Summary:     "Recording statistics",
		Description: "Returns recording counts per status",
		Tags:        []string{"Recordings"},
	}, h.Stats)

	huma.Register(api, huma.Operation{
		OperationID: "getRecording",
		Method:      "GET",
		Path:        "/api/v1/recordings/{id}",
		Summary:     "Get recording",
		Description: "Returns a recording by ID",
		Tags:        []string{"Recordings"},
	}, h.GetByID)

	huma.Register(api, huma.Operation{
		OperationID: "createRecording",
		Method:      "POST",
		Path:        "/api/v1/recordings",
		Summary:     "Create recording",
		Description: "Schedules a new recording",
		Tags:        []string{"Recordings"},
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "updateRecording",
		Method:      "PUT",
		Path:        "/api/v1/recordings/{id}",
		Summary:     "Update recording",
		Description: "Updates a recording that has not started yet",
		Tags:        []string{"Recordings"},
	}, h.Update)

	huma.Register(api, huma.Operation{
		OperationID: "deleteRecording",
		Method:      "DELETE",
		Path:        "/api/v1/recordings/{id}",
		Summary:     "Delete recording",
		Description: "Cancels any running capture, deletes the output file, and removes the recording",
		Tags:        []string{"Recordings"},
	}, h.Delete)

	huma.Register(api, huma.Operation{
		OperationID: "startRecording",
		Method:      "POST",
		Path:        "/api/v1/recordings/{id}/start",
		Summary:     "Start recording now",
		Description: "Moves a scheduled recording into starting immediately",
		Tags:        []string{"Recordings"},
	}, h.Start)

	huma.Register(api, huma.Operation{
		OperationID: "stopRecording",
		Method:      "POST",
		Path:        "/api/v1/recordings/{id}/stop",
		Summary:     "Stop recording",
		Description: "Cancels a recording that has not finished yet",
		Tags:        []string{"Recordings"},
	}, h.Stop)

	huma.Register(api, huma.Operation{
		OperationID: "setRecordingProbeMode",
		Method:      "PUT",
		Path:        "/api/v1/recordings/{id}/probe-mode",
		Summary:     "Set probe mode",
		Description: "Toggles whether the liveness probe gate is bypassed for this recording",
		Tags:        []string{"Recordings"},
	}, h.SetProbeMode)
}

// ListRecordingsInput is the input for listing recordings.
type ListRecordingsInput struct{}

// ListRecordingsOutput is the output for listing recordings.
type ListRecordingsOutput struct {
	Body struct {
		Recordings []models.View `json:"recordings"`
	}
}

// List returns all recordings.
func (h *RecordingHandler) List(ctx context.Context, input *ListRecordingsInput) (*ListRecordingsOutput, error) {
	resp := &ListRecordingsOutput{}
	resp.Body.Recordings = h.recordings.List()
	return resp, nil
}

// RecordingStatsInput is the input for recording statistics.
type RecordingStatsInput struct{}

// RecordingStatsOutput is the output for recording statistics.
type RecordingStatsOutput struct {
	Body service.RecordingStats
}

// Stats returns recording counts per status.
func (h *RecordingHandler) Stats(ctx context.Context, input *RecordingStatsInput) (*RecordingStatsOutput, error) {
	return &RecordingStatsOutput{Body: h.recordings.Stats()}, nil
}

// GetRecordingInput is the input for getting a recording.
type GetRecordingInput struct {
	ID string `path:"id" doc:"Recording ID (ULID)"`
}

// GetRecordingOutput is the output for getting a recording.
type GetRecordingOutput struct {
	Body models.View
}

// GetByID returns a recording by ID.
func (h *RecordingHandler) GetByID(ctx context.Context, input *GetRecordingInput) (*GetRecordingOutput, error) {
	id, err := parseID(input.ID)
	if err != nil {
		return nil, err
	}
	view, err := h.recordings.Get(id)
	if err != nil {
		return nil, serviceError(err, "recording")
	}
	return &GetRecordingOutput{Body: view}, nil
}

// CreateRecordingInput is the input for creating a recording.
type CreateRecordingInput struct {
	Body struct {
		Name      string    `json:"name" doc:"Recording name" minLength:"1" maxLength:"255"`
		RTSPURL   string    `json:"rtspUrl" doc:"RTSP source URL" minLength:"1" maxLength:"2048"`
		StartTime time.Time `json:"startTime" doc:"Scheduled start time"`
		Duration  int       `json:"duration,omitempty" doc:"Capture duration in seconds; 0 selects the configured default" minimum:"0"`
	}
}

// CreateRecordingOutput is the output for creating a recording.
type CreateRecordingOutput struct {
	Body models.View
}

// Create schedules a new recording.
func (h *RecordingHandler) Create(ctx context.Context, input *CreateRecordingInput) (*CreateRecordingOutput, error) {
	view, err := h.recordings.Create(service.CreateRecordingInput{
		Name:      input.Body.Name,
		RTSPURL:   input.Body.RTSPURL,
		StartTime: input.Body.StartTime,
		Duration:  input.Body.Duration,
	})
	if err != nil {
		return nil, serviceError(err, "recording")
	}
	return &CreateRecordingOutput{Body: view}, nil
}

// UpdateRecordingInput is the input for updating a recording.
type UpdateRecordingInput struct {
	ID   string `path:"id" doc:"Recording ID (ULID)"`
	Body struct {
		Name      *string    `json:"name,omitempty"`
		RTSPURL   *string    `json:"rtspUrl,omitempty"`
		StartTime *time.Time `json:"startTime,omitempty"`
		Duration  *int       `json:"duration,omitempty"`
	}
}

// UpdateRecordingOutput is the output for updating a recording.
type UpdateRecordingOutput struct {
	Body models.View
}

// Update modifies a still-scheduled recording.
func (h *RecordingHandler) Update(ctx context.Context, input *UpdateRecordingInput) (*UpdateRecordingOutput, error) {
	id, err := parseID(input.ID)
	if err != nil {
		return nil, err
	}
	view, err := h.recordings.Update(id, service.UpdateRecordingInput{
		Name:      input.Body.Name,
		RTSPURL:   input.Body.RTSPURL,
		StartTime: input.Body.StartTime,
		Duration:  input.Body.Duration,
	})
	if err != nil {
		return nil, serviceError(err, "recording")
	}
	return &UpdateRecordingOutput{Body: view}, nil
}

// DeleteRecordingInput is the input for deleting a recording.
type DeleteRecordingInput struct {
	ID string `path:"id" doc:"Recording ID (ULID)"`
}

// DeleteRecordingOutput is the output for deleting a recording.
type DeleteRecordingOutput struct {
	Body struct {
		Deleted bool `json:"deleted"`
	}
}

// Delete removes a recording and its output file.
func (h *RecordingHandler) Delete(ctx context.Context, input *DeleteRecordingInput) (*DeleteRecordingOutput, error) {
	id, err := parseID(input.ID)
	if err != nil {
		return nil, err
	}
	if err := h.recordings.Delete(id); err != nil {
		return nil, serviceError(err, "recording")
	}
	resp := &DeleteRecordingOutput{}
	resp.Body.Deleted = true
	return resp, nil
}

// RecordingActionInput is the input for start and stop actions.
type RecordingActionInput struct {
	ID string `path:"id" doc:"Recording ID (ULID)"`
}

// RecordingActionOutput is the output for start and stop actions.
type RecordingActionOutput struct {
	Body models.View
}

// Start moves a scheduled recording into starting immediately.
func (h *RecordingHandler) Start(ctx context.Context, input *RecordingActionInput) (*RecordingActionOutput, error) {
	id, err := parseID(input.ID)
	if err != nil {
		return nil, err
	}
	if err := h.recordings.Start(id); err != nil {
		return nil, serviceError(err, "recording")
	}
	view, err := h.recordings.Get(id)
	if err != nil {
		return nil, serviceError(err, "recording")
	}
	return &RecordingActionOutput{Body: view}, nil
}

// Stop cancels a recording that has not finished yet.
func (h *RecordingHandler) Stop(ctx context.Context, input *RecordingActionInput) (*RecordingActionOutput, error) {
	id, err := parseID(input.ID)
	if err != nil {
		return nil, err
	}
	if err := h.recordings.Stop(id); err != nil {
		return nil, serviceError(err, "recording")
	}
	view, err := h.recordings.Get(id)
	if err != nil {
		return nil, serviceError(err, "recording")
	}
	return &RecordingActionOutput{Body: view}, nil
}

// SetProbeModeInput is the input for toggling the probe gate.
type SetProbeModeInput struct {
	ID   string `path:"id" doc:"Recording ID (ULID)"`
	Body struct {
		IgnoreProbe bool `json:"ignoreProbe" doc:"When true the liveness probe gate is bypassed"`
	}
}

// SetProbeModeOutput is the output for toggling the probe gate.
type SetProbeModeOutput struct {
	Body models.View
}

// SetProbeMode toggles the recording's ignore-probe flag.
func (h *RecordingHandler) SetProbeMode(ctx context.Context, input *SetProbeModeInput) (*SetProbeModeOutput, error) {
	id, err := parseID(input.ID)
	if err != nil {
		return nil, err
	}
	if err := h.recordings.SetIgnoreProbe(id, input.Body.IgnoreProbe); err != nil {
		return nil, serviceError(err, "recording")
	}
	view, err := h.recordings.Get(id)
	if err != nil {
		return nil, serviceError(err, "recording")
	}
	return &SetProbeModeOutput{Body: view}, nil
}
