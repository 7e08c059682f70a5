package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/recordarr/recordarr/internal/models"
	"github.com/recordarr/recordarr/internal/service"
)

// StreamHandler handles saved-stream API endpoints.
type StreamHandler struct {
	streams *service.StreamService
}

// NewStreamHandler creates a new saved-stream handler.
func NewStreamHandler(streams *service.StreamService) *StreamHandler {
	return &StreamHandler{streams: streams}
}

// Register registers the saved-stream routes with the API.
func (h *StreamHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listStreams",
		Method:      "GET",
		Path:        "/api/v1/streams",
		Summary:     "List saved streams",
		Description: "Returns all saved RTSP streams",
		Tags:        []string{"Streams"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getStream",
		Method:      "GET",
		Path:        "/api/v1/streams/{id}",
		Summary:     "Get saved stream",
		Description: "Returns a saved stream by ID",
		Tags:        []string{"Streams"},
	}, h.GetByID)

	huma.Register(api, huma.Operation{
		OperationID: "createStream",
		Method:      "POST",
		Path:        "/api/v1/streams",
		Summary:     "Create saved stream",
		Description: "Saves an RTSP stream for reuse when composing recordings",
		Tags:        []string{"Streams"},
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "updateStream",
		Method:      "PUT",
		Path:        "/api/v1/streams/{id}",
		Summary:     "Update saved stream",
		Description: "Updates an existing saved stream",
		Tags:        []string{"Streams"},
	}, h.Update)

	huma.Register(api, huma.Operation{
		OperationID: "deleteStream",
		Method:      "DELETE",
		Path:        "/api/v1/streams/{id}",
		Summary:     "Delete saved stream",
		Description: "Deletes a saved stream",
		Tags:        []string{"Streams"},
	}, h.Delete)
}

// ListStreamsInput is the input for listing saved streams.
type ListStreamsInput struct{}

// ListStreamsOutput is the output for listing saved streams.
type ListStreamsOutput struct {
	Body struct {
		Streams []*models.SavedStream `json:"streams"`
	}
}

// List returns all saved streams.
func (h *StreamHandler) List(ctx context.Context, input *ListStreamsInput) (*ListStreamsOutput, error) {
	resp := &ListStreamsOutput{}
	resp.Body.Streams = h.streams.List()
	return resp, nil
}

// GetStreamInput is the input for getting a saved stream.
type GetStreamInput struct {
	ID string `path:"id" doc:"Stream ID (ULID)"`
}

// GetStreamOutput is the output for getting a saved stream.
type GetStreamOutput struct {
	Body models.SavedStream
}

// GetByID returns a saved stream by ID.
func (h *StreamHandler) GetByID(ctx context.Context, input *GetStreamInput) (*GetStreamOutput, error) {
	id, err := parseID(input.ID)
	if err != nil {
		return nil, err
	}
	stream, err := h.streams.Get(id)
	if err != nil {
		return nil, serviceError(err, "stream")
	}
	return &GetStreamOutput{Body: *stream}, nil
}

// CreateStreamInput is the input for creating a saved stream.
type CreateStreamInput struct {
	Body struct {
		Name        string `json:"name" doc:"Stream name" minLength:"1" maxLength:"255"`
		RTSPURL     string `json:"rtspUrl" doc:"RTSP source URL" minLength:"1" maxLength:"2048"`
		Description string `json:"description,omitempty" maxLength:"1024"`
		Favorite    bool   `json:"favorite,omitempty"`
	}
}

// CreateStreamOutput is the output for creating a saved stream.
type CreateStreamOutput struct {
	Body models.SavedStream
}

// Create saves a new stream.
func (h *StreamHandler) Create(ctx context.Context, input *CreateStreamInput) (*CreateStreamOutput, error) {
	stream, err := h.streams.Create(service.CreateStreamInput{
		Name:        input.Body.Name,
		RTSPURL:     input.Body.RTSPURL,
		Description: input.Body.Description,
		Favorite:    input.Body.Favorite,
	})
	if err != nil {
		return nil, serviceError(err, "stream")
	}
	return &CreateStreamOutput{Body: *stream}, nil
}

// UpdateStreamInput is the input for updating a saved stream.
type UpdateStreamInput struct {
	ID   string `path:"id" doc:"Stream ID (ULID)"`
	Body struct {
		Name        *string `json:"name,omitempty"`
		RTSPURL     *string `json:"rtspUrl,omitempty"`
		Description *string `json:"description,omitempty"`
		Favorite    *bool   `json:"favorite,omitempty"`
	}
}

// UpdateStreamOutput is the output for updating a saved stream.
type UpdateStreamOutput struct {
	Body models.SavedStream
}

// Update overlays the provided fields on a saved stream.
func (h *StreamHandler) Update(ctx context.Context, input *UpdateStreamInput) (*UpdateStreamOutput, error) {
	id, err := parseID(input.ID)
	if err != nil {
		return nil, err
	}
	stream, err := h.streams.Update(id, service.UpdateStreamInput{
		Name:        input.Body.Name,
		RTSPURL:     input.Body.RTSPURL,
		Description: input.Body.Description,
		Favorite:    input.Body.Favorite,
	})
	if err != nil {
		return nil, serviceError(err, "stream")
	}
	return &UpdateStreamOutput{Body: *stream}, nil
}

// DeleteStreamInput is the input for deleting a saved stream.
type DeleteStreamInput struct {
	ID string `path:"id" doc:"Stream ID (ULID)"`
}

// DeleteStreamOutput is the output for deleting a saved stream.
type DeleteStreamOutput struct {
	Body struct {
		Deleted bool `json:"deleted"`
	}
}

// Delete removes a saved stream.
func (h *StreamHandler) Delete(ctx context.Context, input *DeleteStreamInput) (*DeleteStreamOutput, error) {
	id, err := parseID(input.ID)
	if err != nil {
		return nil, err
	}
	if err := h.streams.Delete(id); err != nil {
		return nil, serviceError(err, "stream")
	}
	resp := &DeleteStreamOutput{}
	resp.Body.Deleted = true
	return resp, nil
}
