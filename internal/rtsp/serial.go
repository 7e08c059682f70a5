package rtsp

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/recordarr/recordarr/internal/config"
)

// SerialProber opens a fresh connection for every probe and serializes probes
// per endpoint. It trades connection churn for simplicity and is kept behind
// the prober.pooled flag as a fallback for servers that misbehave on shared
// connections.
type SerialProber struct {
	cfg    config.ProberConfig
	logger *slog.Logger

	locks sync.Map // endpoint addr -> *sync.Mutex
}

// NewSerialProber creates a serial prober.
func NewSerialProber(cfg config.ProberConfig) *SerialProber {
	return &SerialProber{cfg: cfg, logger: slog.Default()}
}

// WithLogger sets a custom logger.
func (p *SerialProber) WithLogger(logger *slog.Logger) *SerialProber {
	p.logger = logger
	return p
}

// Probe implements Prober.
func (p *SerialProber) Probe(ctx context.Context, rawURL string, timeout time.Duration) Outcome {
	if timeout <= 0 {
		timeout = p.cfg.DefaultTimeout
	}
	u, err := parseProbeURL(rawURL)
	if err != nil {
		p.logger.Debug("unprobeable url", slog.String("error", err.Error()))
		return OutcomeInvalid
	}
	addr := endpointAddr(u)

	lock, _ := p.locks.LoadOrStore(addr, &sync.Mutex{})
	mu := lock.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	deadline := time.Now().Add(timeout)
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		if isTimeout(err) {
			return OutcomeTimeout
		}
		p.logger.Debug("dialing endpoint failed",
			slog.String("endpoint", addr),
			slog.String("error", err.Error()))
		return OutcomeError
	}
	defer conn.Close()
	conn.SetDeadline(deadline)

	if _, err := conn.Write(describeRequest(rawURL, 1)); err != nil {
		if isTimeout(err) {
			return OutcomeTimeout
		}
		return OutcomeError
	}

	parser := &responseParser{}
	buf := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			parser.feed(buf[:n])
			if resp, ok := parser.next(); ok {
				return classifyStatus(resp)
			}
		}
		if err != nil {
			if isTimeout(err) {
				return OutcomeTimeout
			}
			return OutcomeError
		}
		if ctx.Err() != nil {
			return OutcomeError
		}
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, os.ErrDeadlineExceeded)
}
