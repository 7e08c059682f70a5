package rtsp

import (
	"log/slog"
	"net"
	"sync"
	"time"
)

const readBufferSize = 4096

// endpoint is one pooled TCP connection to an RTSP host:port. Many probes
// share it concurrently; each registers a channel under its CSeq before the
// request hits the wire, and the read loop routes responses back by CSeq.
//
// CSeq assignment, channel registration, and the socket write happen under
// one lock so requests leave the socket in CSeq order and a response can
// never arrive before its waiter is registered.
type endpoint struct {
	addr   string
	conn   net.Conn
	logger *slog.Logger

	mu      sync.Mutex
	cseq    int
	pending map[int]chan Outcome
	closed  bool

	heartbeatStop chan struct{}
	heartbeatOnce sync.Once
}

// dialEndpoint opens a connection to addr and starts its read loop.
func dialEndpoint(addr string, dialTimeout time.Duration, logger *slog.Logger) (*endpoint, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, err
	}
	e := &endpoint{
		addr:          addr,
		conn:          conn,
		logger:        logger,
		pending:       make(map[int]chan Outcome),
		heartbeatStop: make(chan struct{}),
	}
	go e.readLoop()
	return e, nil
}

// register assigns the next CSeq, records the waiter channel, and writes the
// request, all under the lock.
func (e *endpoint) register(build func(cseq int) []byte) (cseq int, ch chan Outcome, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, nil, false
	}
	e.cseq++
	cseq = e.cseq
	ch = make(chan Outcome, 1)
	e.pending[cseq] = ch
	if _, err := e.conn.Write(build(cseq)); err != nil {
		delete(e.pending, cseq)
		e.logger.Debug("endpoint write failed",
			slog.String("endpoint", e.addr),
			slog.String("error", err.Error()))
		go e.fail()
		return 0, nil, false
	}
	return cseq, ch, true
}

// unregister drops a waiter that gave up, so a late response is discarded.
func (e *endpoint) unregister(cseq int) {
	e.mu.Lock()
	delete(e.pending, cseq)
	e.mu.Unlock()
}

// probe sends a DESCRIBE and waits for its routed outcome.
func (e *endpoint) probe(rawURL string, timeout time.Duration, done <-chan struct{}) Outcome {
	cseq, ch, ok := e.register(func(cseq int) []byte {
		return describeRequest(rawURL, cseq)
	})
	if !ok {
		return OutcomeError
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case outcome := <-ch:
		return outcome
	case <-timer.C:
		e.unregister(cseq)
		return OutcomeTimeout
	case <-done:
		e.unregister(cseq)
		return OutcomeError
	}
}

// readLoop feeds the connection into the parser and routes each framed
// response to the waiter registered under its CSeq. Responses with no waiter
// are discarded.
func (e *endpoint) readLoop() {
	parser := &responseParser{}
	buf := make([]byte, readBufferSize)
	for {
		n, err := e.conn.Read(buf)
		if n > 0 {
			parser.feed(buf[:n])
			for {
				resp, ok := parser.next()
				if !ok {
					break
				}
				e.dispatch(resp)
				if !resp.valid {
					e.fail()
					return
				}
			}
		}
		if err != nil {
			e.fail()
			return
		}
	}
}

// dispatch routes one response to its waiter.
func (e *endpoint) dispatch(resp *response) {
	outcome := classifyStatus(resp)
	e.mu.Lock()
	ch, ok := e.pending[resp.cseq]
	if ok {
		delete(e.pending, resp.cseq)
	}
	e.mu.Unlock()
	if !ok {
		e.logger.Debug("discarding unmatched response",
			slog.String("endpoint", e.addr),
			slog.Int("cseq", resp.cseq),
			slog.Int("status", resp.statusCode))
		return
	}
	ch <- outcome
}

// startHeartbeat sends a periodic OPTIONS so NAT and server idle timers do
// not silently drop the pooled connection. Responses travel the normal demux
// path; their outcome is ignored.
func (e *endpoint) startHeartbeat(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-e.heartbeatStop:
				return
			case <-ticker.C:
				cseq, ch, ok := e.register(func(cseq int) []byte {
					return optionsRequest("*", cseq)
				})
				if !ok {
					return
				}
				select {
				case <-ch:
				case <-time.After(interval):
					e.unregister(cseq)
				case <-e.heartbeatStop:
					e.unregister(cseq)
					return
				}
			}
		}
	}()
}

// fail tears the endpoint down: the socket closes and every in-flight probe
// resolves to an error. Safe to call more than once.
func (e *endpoint) fail() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	waiters := e.pending
	e.pending = make(map[int]chan Outcome)
	e.mu.Unlock()

	e.heartbeatOnce.Do(func() { close(e.heartbeatStop) })
	e.conn.Close()
	for _, ch := range waiters {
		ch <- OutcomeError
	}
}

// pendingCount reports in-flight probes, used by the pool's idle accounting.
func (e *endpoint) pendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}
