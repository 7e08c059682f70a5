// Package rtsp implements the liveness prober: a minimal RTSP/1.0 client
// that answers "is this URL serving media right now?" by issuing DESCRIBE
// and classifying the response.
//
// Two strategies implement the same contract. The default pooled prober
// multiplexes many concurrent probes onto one TCP socket per endpoint and
// demultiplexes responses by CSeq; the serial prober opens one connection
// per probe and is kept as a feature-flag fallback.
package rtsp

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultPort is the RTSP default port used when the URL carries none.
const DefaultPort = "554"

// Outcome classifies a single probe.
type Outcome string

const (
	// OutcomeLive means the endpoint answered DESCRIBE with a 2xx status.
	OutcomeLive Outcome = "live"
	// OutcomeNotFound means the endpoint answered 404.
	OutcomeNotFound Outcome = "not_found"
	// OutcomeInvalid means the response was not an RTSP response, or the URL
	// itself is not a probeable rtsp:// URL.
	OutcomeInvalid Outcome = "invalid"
	// OutcomeTimeout means no matching response arrived within the caller's
	// timeout.
	OutcomeTimeout Outcome = "timeout"
	// OutcomeError covers any other valid RTSP status and transport failures.
	OutcomeError Outcome = "error"
)

// Live is a convenience predicate.
func (o Outcome) Live() bool { return o == OutcomeLive }

// Prober answers liveness probes with bounded latency.
type Prober interface {
	// Probe issues a DESCRIBE for rawURL and classifies the response. The
	// timeout bounds the whole probe; zero selects the prober's default.
	Probe(ctx context.Context, rawURL string, timeout time.Duration) Outcome
}

// classifyStatus maps a parsed response to an outcome.
func classifyStatus(resp *response) Outcome {
	if !resp.valid {
		return OutcomeInvalid
	}
	switch {
	case resp.statusCode >= 200 && resp.statusCode < 300:
		return OutcomeLive
	case resp.statusCode == 404:
		return OutcomeNotFound
	default:
		return OutcomeError
	}
}

// endpointAddr derives the (hostname, port) dial address for an RTSP URL.
func endpointAddr(u *url.URL) string {
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = DefaultPort
	}
	return fmt.Sprintf("%s:%s", host, port)
}

// parseProbeURL validates that rawURL is a probeable rtsp:// URL.
func parseProbeURL(rawURL string) (*url.URL, error) {
	if !strings.HasPrefix(rawURL, "rtsp://") {
		return nil, fmt.Errorf("not an rtsp url: %s", rawURL)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing rtsp url: %w", err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("rtsp url has no host: %s", rawURL)
	}
	return u, nil
}

// describeRequest serializes one DESCRIBE request.
func describeRequest(rawURL string, cseq int) []byte {
	return []byte(fmt.Sprintf("DESCRIBE %s RTSP/1.0\r\nCSeq: %d\r\n\r\n", rawURL, cseq))
}

// optionsRequest serializes one OPTIONS request, used by the heartbeat.
func optionsRequest(rawURL string, cseq int) []byte {
	return []byte(fmt.Sprintf("OPTIONS %s RTSP/1.0\r\nCSeq: %d\r\n\r\n", rawURL, cseq))
}
