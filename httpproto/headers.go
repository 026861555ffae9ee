package httpproto

import (
	"errors"
	"strconv"
	"strings"
)

// ErrMalformedHeader is returned for a header line that is neither
// "name: value" nor a continuation of a preceding header (spec.md §4.7,
// "Invalid start lines or malformed headers fail with a payload error").
var ErrMalformedHeader = errors.New("httpproto: malformed header line")

// ErrMalformedStartLine is returned for a request/status line that does not
// parse.
var ErrMalformedStartLine = errors.New("httpproto: malformed start line")

// Headers is a case-insensitive, multi-valued, order-preserving header
// collection (spec.md §6, "CRLF-delimited headers (case-insensitive
// multi-valued)").
type Headers struct {
	names  []string
	values [][]string
	index  map[string]int
}

// NewHeaders returns an empty header collection.
func NewHeaders() *Headers {
	return &Headers{index: make(map[string]int)}
}

// Add appends value under name, preserving any prior values for the same
// (case-insensitive) name.
func (h *Headers) Add(name, value string) {
	key := strings.ToLower(name)
	if i, ok := h.index[key]; ok {
		h.values[i] = append(h.values[i], value)
		return
	}
	h.index[key] = len(h.names)
	h.names = append(h.names, name)
	h.values = append(h.values, []string{value})
}

// Get returns the first value for name, and whether it was present.
func (h *Headers) Get(name string) (string, bool) {
	vs := h.Values(name)
	if len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// Values returns every value recorded under name.
func (h *Headers) Values(name string) []string {
	if i, ok := h.index[strings.ToLower(name)]; ok {
		return h.values[i]
	}
	return nil
}

// Names returns header names in the order first seen.
func (h *Headers) Names() []string { return h.names }

// Del removes every value recorded under name, a no-op if name was never
// set.
func (h *Headers) Del(name string) {
	key := strings.ToLower(name)
	i, ok := h.index[key]
	if !ok {
		return
	}
	h.names = append(h.names[:i], h.names[i+1:]...)
	h.values = append(h.values[:i], h.values[i+1:]...)
	delete(h.index, key)
	for k, idx := range h.index {
		if idx > i {
			h.index[k] = idx - 1
		}
	}
}

// parseHeaderBlock parses CRLF-separated "name: value" lines from lines,
// folding continuation lines (beginning with space or tab) into the
// preceding value with a single joining space (spec.md §4.7, "Multi-line
// header continuations... fold into the preceding value with a single
// space").
func parseHeaderBlock(lines []string) (*Headers, error) {
	h := NewHeaders()
	var lastKey string
	for _, line := range lines {
		if line == "" {
			continue
		}
		if line[0] == ' ' || line[0] == '\t' {
			if lastKey == "" {
				return nil, ErrMalformedHeader
			}
			i := h.index[lastKey]
			n := len(h.values[i])
			h.values[i][n-1] = h.values[i][n-1] + " " + strings.TrimSpace(line)
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			return nil, ErrMalformedHeader
		}
		name := line[:colon]
		value := strings.TrimSpace(line[colon+1:])
		h.Add(name, value)
		lastKey = strings.ToLower(name)
	}
	return h, nil
}

// splitLines splits raw on CRLF (tolerating a bare LF), dropping the final
// empty element left by a trailing terminator.
func splitLines(raw []byte) []string {
	s := string(raw)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// RequestLine is a parsed HTTP request line.
type RequestLine struct {
	Method  string
	Target  string
	Version string
}

// parseRequestLine parses "METHOD target HTTP/x.y".
func parseRequestLine(line string) (RequestLine, error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 || !strings.HasPrefix(parts[2], "HTTP/") {
		return RequestLine{}, ErrMalformedStartLine
	}
	return RequestLine{Method: parts[0], Target: parts[1], Version: parts[2]}, nil
}

// StatusLine is a parsed HTTP status line.
type StatusLine struct {
	Version string
	Code    int
	Reason  string
}

// parseStatusLine parses "HTTP/x.y CODE reason text".
func parseStatusLine(line string) (StatusLine, error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "HTTP/") {
		return StatusLine{}, ErrMalformedStartLine
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return StatusLine{}, ErrMalformedStartLine
	}
	reason := ""
	if len(parts) == 3 {
		reason = parts[2]
	}
	return StatusLine{Version: parts[0], Code: code, Reason: reason}, nil
}
