package rtsp

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recordarr/recordarr/internal/config"
)

func testProberConfig() config.ProberConfig {
	return config.ProberConfig{
		Pooled:          true,
		DefaultTimeout:  time.Second,
		EndpointIdleTTL: 10 * time.Minute,
	}
}

// fakeServer is a scriptable in-process RTSP server.
type fakeServer struct {
	ln      net.Listener
	accepts atomic.Int32
}

func newFakeServer(t *testing.T, handle func(conn net.Conn)) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &fakeServer{ln: ln}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			s.accepts.Add(1)
			go handle(conn)
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *fakeServer) url(path string) string {
	return "rtsp://" + s.ln.Addr().String() + path
}

type fakeRequest struct {
	method string
	target string
	cseq   int
}

func readRequest(br *bufio.Reader) (fakeRequest, error) {
	var req fakeRequest
	line, err := br.ReadString('\n')
	if err != nil {
		return req, err
	}
	fields := strings.Fields(line)
	if len(fields) >= 2 {
		req.method = fields[0]
		req.target = fields[1]
	}
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return req, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			return req, nil
		}
		if name, value, ok := strings.Cut(line, ":"); ok {
			if strings.EqualFold(strings.TrimSpace(name), "cseq") {
				req.cseq, _ = strconv.Atoi(strings.TrimSpace(value))
			}
		}
	}
}

func rtspReply(cseq, status int, body string) []byte {
	reason := "OK"
	if status != 200 {
		reason = "Not OK"
	}
	msg := fmt.Sprintf("RTSP/1.0 %d %s\r\nCSeq: %d\r\n", status, reason, cseq)
	if body != "" {
		msg += fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body)
	} else {
		msg += "\r\n"
	}
	return []byte(msg)
}

const sampleSDP = "v=0\r\no=- 0 0 IN IP4 127.0.0.1\r\ns=cam\r\n"

// replyByPath answers each DESCRIBE with a status keyed on the URL path.
func replyByPath(statuses map[string]int) func(conn net.Conn) {
	return func(conn net.Conn) {
		defer conn.Close()
		br := bufio.NewReader(conn)
		for {
			req, err := readRequest(br)
			if err != nil {
				return
			}
			status := 200
			for path, s := range statuses {
				if strings.HasSuffix(req.target, path) {
					status = s
				}
			}
			body := ""
			if status == 200 {
				body = sampleSDP
			}
			conn.Write(rtspReply(req.cseq, status, body))
		}
	}
}

func TestParseStatusLine(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		valid bool
		code  int
	}{
		{"ok", "RTSP/1.0 200 OK", true, 200},
		{"not found", "RTSP/1.0 404 Stream Not Found", true, 404},
		{"server error", "RTSP/1.0 503 Service Unavailable", true, 503},
		{"http not rtsp", "HTTP/1.1 200 OK", false, 0},
		{"garbage", "ICY 200 OK", false, 0},
		{"non numeric", "RTSP/1.0 abc OK", false, 0},
		{"out of range", "RTSP/1.0 999 Nope", false, 0},
		{"short", "RTSP/1.0", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid, code := parseStatusLine(tt.line)
			assert.Equal(t, tt.valid, valid)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestResponseParserFragmentedDelivery(t *testing.T) {
	raw := rtspReply(7, 200, sampleSDP)
	p := &responseParser{}

	// Feed one byte at a time; the response must pop exactly once, complete.
	var got *response
	for _, b := range raw {
		p.feed([]byte{b})
		if resp, ok := p.next(); ok {
			require.Nil(t, got, "response popped twice")
			got = resp
		}
	}
	require.NotNil(t, got)
	assert.True(t, got.valid)
	assert.Equal(t, 200, got.statusCode)
	assert.Equal(t, 7, got.cseq)
	assert.True(t, got.hasSDP())
	assert.Equal(t, sampleSDP, string(got.body))
}

func TestResponseParserPipelined(t *testing.T) {
	p := &responseParser{}
	p.feed(rtspReply(1, 404, ""))
	p.feed(rtspReply(2, 200, sampleSDP))

	first, ok := p.next()
	require.True(t, ok)
	assert.Equal(t, 1, first.cseq)
	assert.Equal(t, 404, first.statusCode)
	assert.Empty(t, first.body)

	second, ok := p.next()
	require.True(t, ok)
	assert.Equal(t, 2, second.cseq)
	assert.True(t, second.hasSDP())

	_, ok = p.next()
	assert.False(t, ok)
}

func TestResponseParserUnframedSDP(t *testing.T) {
	// No Content-Length; the SDP trails the headers and is consumed whole.
	p := &responseParser{}
	p.feed([]byte("RTSP/1.0 200 OK\r\nCSeq: 3\r\n\r\n" + sampleSDP))
	resp, ok := p.next()
	require.True(t, ok)
	assert.Equal(t, sampleSDP, string(resp.body))
}

func TestResponseParserNoCSeq(t *testing.T) {
	p := &responseParser{}
	p.feed([]byte("RTSP/1.0 200 OK\r\n\r\n"))
	resp, ok := p.next()
	require.True(t, ok)
	assert.Equal(t, -1, resp.cseq)
}

func TestPooledProberClassification(t *testing.T) {
	srv := newFakeServer(t, replyByPath(map[string]int{
		"/live":    200,
		"/missing": 404,
		"/broken":  503,
	}))
	p := NewPooledProber(testProberConfig())
	defer p.Close()
	ctx := context.Background()

	assert.Equal(t, OutcomeLive, p.Probe(ctx, srv.url("/live"), 0))
	assert.Equal(t, OutcomeNotFound, p.Probe(ctx, srv.url("/missing"), 0))
	assert.Equal(t, OutcomeError, p.Probe(ctx, srv.url("/broken"), 0))
}

func TestPooledProberInvalidURL(t *testing.T) {
	p := NewPooledProber(testProberConfig())
	defer p.Close()
	ctx := context.Background()

	assert.Equal(t, OutcomeInvalid, p.Probe(ctx, "http://example.com/stream", 0))
	assert.Equal(t, OutcomeInvalid, p.Probe(ctx, "rtsp://", 0))
}

func TestPooledProberNonRTSPResponse(t *testing.T) {
	srv := newFakeServer(t, func(conn net.Conn) {
		defer conn.Close()
		br := bufio.NewReader(conn)
		if _, err := readRequest(br); err != nil {
			return
		}
		conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n"))
		time.Sleep(100 * time.Millisecond)
	})
	p := NewPooledProber(testProberConfig())
	defer p.Close()

	assert.Equal(t, OutcomeInvalid, p.Probe(context.Background(), srv.url("/x"), 0))
}

func TestPooledProberReusesConnection(t *testing.T) {
	srv := newFakeServer(t, replyByPath(nil))
	p := NewPooledProber(testProberConfig())
	defer p.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.Equal(t, OutcomeLive, p.Probe(ctx, srv.url(fmt.Sprintf("/cam%d", i)), 0))
	}
	assert.Equal(t, int32(1), srv.accepts.Load())
}

func TestPooledProberOutOfOrderResponses(t *testing.T) {
	// The server buffers every request on the connection and answers them in
	// reverse order; each waiter must still receive its own outcome.
	const probes = 8
	srv := newFakeServer(t, func(conn net.Conn) {
		defer conn.Close()
		br := bufio.NewReader(conn)
		reqs := make([]fakeRequest, 0, probes)
		for len(reqs) < probes {
			req, err := readRequest(br)
			if err != nil {
				return
			}
			reqs = append(reqs, req)
		}
		for i := len(reqs) - 1; i >= 0; i-- {
			req := reqs[i]
			if strings.Contains(req.target, "/odd") {
				conn.Write(rtspReply(req.cseq, 404, ""))
			} else {
				conn.Write(rtspReply(req.cseq, 200, sampleSDP))
			}
		}
	})

	p := NewPooledProber(testProberConfig())
	defer p.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	outcomes := make([]Outcome, probes)
	for i := 0; i < probes; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := fmt.Sprintf("/even%d", i)
			if i%2 == 1 {
				path = fmt.Sprintf("/odd%d", i)
			}
			outcomes[i] = p.Probe(ctx, srv.url(path), 2*time.Second)
		}(i)
	}
	wg.Wait()

	for i, o := range outcomes {
		if i%2 == 1 {
			assert.Equal(t, OutcomeNotFound, o, "probe %d", i)
		} else {
			assert.Equal(t, OutcomeLive, o, "probe %d", i)
		}
	}
}

func TestPooledProberTimeoutEmptiesPending(t *testing.T) {
	srv := newFakeServer(t, func(conn net.Conn) {
		// Swallow requests and never answer.
		br := bufio.NewReader(conn)
		for {
			if _, err := readRequest(br); err != nil {
				conn.Close()
				return
			}
		}
	})
	p := NewPooledProber(testProberConfig())
	defer p.Close()

	start := time.Now()
	outcome := p.Probe(context.Background(), srv.url("/slow"), 150*time.Millisecond)
	assert.Equal(t, OutcomeTimeout, outcome)
	assert.Less(t, time.Since(start), time.Second)

	e, err := p.acquire(endpointAddr(mustParse(t, srv.url("/slow"))), time.Second)
	require.NoError(t, err)
	assert.Equal(t, 0, e.pendingCount())
}

func TestPooledProberServerCloseFailsInflight(t *testing.T) {
	srv := newFakeServer(t, func(conn net.Conn) {
		br := bufio.NewReader(conn)
		if _, err := readRequest(br); err == nil {
			conn.Close()
		}
	})
	p := NewPooledProber(testProberConfig())
	defer p.Close()
	ctx := context.Background()

	assert.Equal(t, OutcomeError, p.Probe(ctx, srv.url("/gone"), 0))

	// The failed endpoint must not be reused; the next probe redials.
	srv2accepted := srv.accepts.Load()
	p.Probe(ctx, srv.url("/gone"), 200*time.Millisecond)
	assert.Greater(t, srv.accepts.Load(), srv2accepted)
}

func TestPooledProberDialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	p := NewPooledProber(testProberConfig())
	defer p.Close()

	assert.Equal(t, OutcomeError, p.Probe(context.Background(), "rtsp://"+addr+"/cam", 0))
}

func TestSerialProber(t *testing.T) {
	srv := newFakeServer(t, replyByPath(map[string]int{"/missing": 404}))
	cfg := testProberConfig()
	cfg.Pooled = false
	p := NewSerialProber(cfg)
	ctx := context.Background()

	assert.Equal(t, OutcomeLive, p.Probe(ctx, srv.url("/cam"), 0))
	assert.Equal(t, OutcomeNotFound, p.Probe(ctx, srv.url("/missing"), 0))
	assert.Equal(t, OutcomeInvalid, p.Probe(ctx, "ftp://host/cam", 0))
}

func TestSerialProberTimeout(t *testing.T) {
	srv := newFakeServer(t, func(conn net.Conn) {
		br := bufio.NewReader(conn)
		readRequest(br)
		time.Sleep(time.Second)
		conn.Close()
	})
	cfg := testProberConfig()
	cfg.Pooled = false
	p := NewSerialProber(cfg)

	assert.Equal(t, OutcomeTimeout, p.Probe(context.Background(), srv.url("/slow"), 100*time.Millisecond))
}

func TestNewProberSelectsStrategy(t *testing.T) {
	cfg := testProberConfig()
	logger := slog.Default()
	_, pooled := NewProber(cfg, logger).(*PooledProber)
	assert.True(t, pooled)

	cfg.Pooled = false
	_, serial := NewProber(cfg, logger).(*SerialProber)
	assert.True(t, serial)
}

func mustParse(t *testing.T, rawURL string) *url.URL {
	t.Helper()
	parsed, err := parseProbeURL(rawURL)
	require.NoError(t, err)
	return parsed
}
