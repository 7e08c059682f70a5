package handlers

import (
	"context"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/recordarr/recordarr/internal/service"
)

// ProbeHandler handles on-demand RTSP liveness probes.
type ProbeHandler struct {
	probe *service.ProbeService
}

// NewProbeHandler creates a new probe handler.
func NewProbeHandler(probe *service.ProbeService) *ProbeHandler {
	return &ProbeHandler{probe: probe}
}

// Register registers the probe routes with the API.
func (h *ProbeHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "probeStream",
		Method:      "POST",
		Path:        "/api/v1/probe",
		Summary:     "Probe an RTSP URL",
		Description: "Checks whether an RTSP source answers a DESCRIBE request",
		Tags:        []string{"Probe"},
	}, h.Probe)
}

// ProbeInput is the input for an on-demand probe.
type ProbeInput struct {
	Body struct {
		URL string `json:"url" doc:"RTSP URL to probe" minLength:"1" maxLength:"2048"`
	}
}

// ProbeOutput is the output for an on-demand probe.
type ProbeOutput struct {
	Body service.ProbeResult
}

// Probe checks one RTSP URL.
func (h *ProbeHandler) Probe(ctx context.Context, input *ProbeInput) (*ProbeOutput, error) {
	if !strings.HasPrefix(input.Body.URL, "rtsp://") {
		return nil, huma.Error422UnprocessableEntity("url must begin with rtsp://")
	}
	return &ProbeOutput{Body: h.probe.Probe(ctx, input.Body.URL)}, nil
}
