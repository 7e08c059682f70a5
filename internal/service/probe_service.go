package service

import (
	"context"
	"time"

	"github.com/recordarr/recordarr/internal/rtsp"
)

// ProbeService answers on-demand liveness probes for clients composing a
// recording.
type ProbeService struct {
	prober rtsp.Prober
}

// NewProbeService creates the probe command surface.
func NewProbeService(prober rtsp.Prober) *ProbeService {
	return &ProbeService{prober: prober}
}

// ProbeResult is the outcome of one on-demand probe.
type ProbeResult struct {
	URL       string       `json:"url"`
	Outcome   rtsp.Outcome `json:"outcome"`
	Live      bool         `json:"live"`
	CheckedAt time.Time    `json:"checkedAt"`
}

// Probe checks a URL with the prober's default timeout.
func (s *ProbeService) Probe(ctx context.Context, rawURL string) ProbeResult {
	outcome := s.prober.Probe(ctx, rawURL, 0)
	return ProbeResult{
		URL:       rawURL,
		Outcome:   outcome,
		Live:      outcome.Live(),
		CheckedAt: time.Now(),
	}
}
