package rtsp

import (
	"context"
	"log/slog"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/recordarr/recordarr/internal/config"
)

// PooledProber keeps one endpoint connection per RTSP host:port and fans
// concurrent probes onto it. Endpoints idle past the configured TTL are
// evicted and their sockets closed; the next probe redials.
type PooledProber struct {
	cfg    config.ProberConfig
	logger *slog.Logger

	mu        sync.Mutex
	endpoints *gocache.Cache
}

// NewPooledProber creates a pooled prober.
func NewPooledProber(cfg config.ProberConfig) *PooledProber {
	p := &PooledProber{
		cfg:    cfg,
		logger: slog.Default(),
	}
	cleanup := cfg.EndpointIdleTTL / 2
	if cleanup > time.Minute {
		cleanup = time.Minute
	}
	p.endpoints = gocache.New(cfg.EndpointIdleTTL, cleanup)
	p.endpoints.OnEvicted(func(addr string, v any) {
		p.logger.Debug("evicting idle endpoint", slog.String("endpoint", addr))
		v.(*endpoint).fail()
	})
	return p
}

// WithLogger sets a custom logger.
func (p *PooledProber) WithLogger(logger *slog.Logger) *PooledProber {
	p.logger = logger
	return p
}

// Probe implements Prober.
func (p *PooledProber) Probe(ctx context.Context, rawURL string, timeout time.Duration) Outcome {
	if timeout <= 0 {
		timeout = p.cfg.DefaultTimeout
	}
	u, err := parseProbeURL(rawURL)
	if err != nil {
		p.logger.Debug("unprobeable url", slog.String("error", err.Error()))
		return OutcomeInvalid
	}

	e, err := p.acquire(endpointAddr(u), timeout)
	if err != nil {
		p.logger.Debug("dialing endpoint failed",
			slog.String("endpoint", endpointAddr(u)),
			slog.String("error", err.Error()))
		return OutcomeError
	}
	return e.probe(rawURL, timeout, ctx.Done())
}

// acquire returns the live endpoint for addr, dialing if the pool holds none.
// Every use refreshes the idle TTL.
func (p *PooledProber) acquire(addr string, dialTimeout time.Duration) (*endpoint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if v, ok := p.endpoints.Get(addr); ok {
		e := v.(*endpoint)
		e.mu.Lock()
		closed := e.closed
		e.mu.Unlock()
		if !closed {
			p.endpoints.Set(addr, e, gocache.DefaultExpiration)
			return e, nil
		}
		p.endpoints.Delete(addr)
	}

	e, err := dialEndpoint(addr, dialTimeout, p.logger)
	if err != nil {
		return nil, err
	}
	if p.cfg.HeartbeatEnabled {
		e.startHeartbeat(p.cfg.HeartbeatInterval)
	}
	p.endpoints.Set(addr, e, gocache.DefaultExpiration)
	return e, nil
}

// Close tears down every pooled endpoint. In-flight probes resolve to errors.
func (p *PooledProber) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for addr, item := range p.endpoints.Items() {
		item.Object.(*endpoint).fail()
		p.endpoints.Delete(addr)
	}
}

// NewProber builds the configured prober strategy.
func NewProber(cfg config.ProberConfig, logger *slog.Logger) Prober {
	if cfg.Pooled {
		return NewPooledProber(cfg).WithLogger(logger)
	}
	return NewSerialProber(cfg).WithLogger(logger)
}
