package rtsp

import (
	"bytes"
	"strconv"
	"strings"
)

// response is one framed RTSP response.
type response struct {
	valid      bool // start line was "RTSP/<ver> <code> ..." with a numeric code
	statusCode int
	cseq       int // -1 when the response carries no CSeq header
	headers    map[string]string
	body       []byte
}

// hasSDP reports whether the body looks like a session description.
func (r *response) hasSDP() bool {
	return bytes.HasPrefix(r.body, []byte("v="))
}

// responseParser frames RTSP responses out of a TCP byte stream. Bytes arrive
// in arbitrary chunks; feed appends them and next pops complete responses.
//
// Body length comes from Content-Length when present. Without it, a payload
// that starts with "v=" immediately after the blank line is consumed to the
// end of the buffered data, which matches servers that send the SDP unframed
// and then pause. Anything else means no body.
type responseParser struct {
	buf []byte
}

func (p *responseParser) feed(data []byte) {
	p.buf = append(p.buf, data...)
}

// next pops one complete response, or returns false when the buffer does not
// yet hold one.
func (p *responseParser) next() (*response, bool) {
	headerEnd := bytes.Index(p.buf, []byte("\r\n\r\n"))
	if headerEnd < 0 {
		return nil, false
	}
	head := p.buf[:headerEnd]
	rest := p.buf[headerEnd+4:]

	lines := strings.Split(string(head), "\r\n")
	resp := &response{cseq: -1, headers: make(map[string]string)}
	resp.valid, resp.statusCode = parseStatusLine(lines[0])

	for _, line := range lines[1:] {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		resp.headers[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(value)
	}
	if v, ok := resp.headers["cseq"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			resp.cseq = n
		}
	}

	bodyLen := 0
	if v, ok := resp.headers["content-length"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			// Unparseable framing; drop the connection's buffer with an
			// invalid response so the endpoint tears down.
			resp.valid = false
			p.buf = nil
			return resp, true
		}
		if len(rest) < n {
			return nil, false
		}
		bodyLen = n
	} else if bytes.HasPrefix(rest, []byte("v=")) {
		bodyLen = len(rest)
	}

	resp.body = append([]byte(nil), rest[:bodyLen]...)
	p.buf = append([]byte(nil), rest[bodyLen:]...)
	return resp, true
}

// parseStatusLine classifies "RTSP/1.0 200 OK" style start lines.
func parseStatusLine(line string) (valid bool, code int) {
	fields := strings.Fields(line)
	if len(fields) < 2 || !strings.HasPrefix(fields[0], "RTSP/") {
		return false, 0
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil || n < 100 || n > 599 {
		return false, 0
	}
	return true, n
}
