package httpproto

import (
	"compress/flate"
	"compress/gzip"
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/HuyaneMatsu/scarletio/core"
)

// ErrUnsupportedEncoding is returned (and surfaces as the payload stream's
// completion error) for a Content-Encoding this module cannot decode
// (spec.md §4.7, "Unknown encodings surface as an error").
var ErrUnsupportedEncoding = errors.New("httpproto: unsupported content-encoding")

// ContentDecoder wraps src, a reader of raw (encoded) body bytes, with a
// reader of decoded bytes.
type ContentDecoder func(src io.Reader) (io.Reader, error)

var contentDecoders = map[string]ContentDecoder{
	"gzip":    func(src io.Reader) (io.Reader, error) { return gzip.NewReader(src) },
	"deflate": func(src io.Reader) (io.Reader, error) { return flate.NewReader(src), nil },
}

// RegisterContentDecoder installs a decoder for a Content-Encoding token
// (case-insensitive), so callers can plug in e.g. Brotli without this
// module carrying a hard dependency on a brotli library (spec.md §6,
// "emit-only support may be limited").
func RegisterContentDecoder(encoding string, dec ContentDecoder) {
	contentDecoders[strings.ToLower(encoding)] = dec
}

// Message is a parsed HTTP request or response: a start line, headers, and
// a body delivered through a PayloadStream that continues to fill in as the
// underlying connection delivers more bytes (spec.md §4.7, "the protocol
// exposes three consumer coroutines").
type Message struct {
	Request  *RequestLine
	Response *StatusLine
	Headers  *Headers
	Body     *PayloadStream
}

// bridge turns a PayloadStream read's readiness channel into a core.Future,
// so task coroutines can suspend on it via core.Await — the same
// channel-to-future bridging pattern transport.SSLTransport uses for
// crypto/tls's blocking calls.
func bridge(l *core.Loop, ch <-chan struct{}) *core.Future[struct{}] {
	f := core.CreateFuture[struct{}](l)
	go func() {
		<-ch
		l.CallSoonThreadSafe(func() { _ = f.SetResultIfPending(struct{}{}) })
	}()
	return f
}

func awaitExactly(y *core.Yielder, l *core.Loop, s *PayloadStream, n int) ([]byte, error) {
	ch, get := s.ReadExactly(n)
	if _, err := core.Await(y, bridge(l, ch)); err != nil {
		return nil, err
	}
	return get()
}

func awaitUntil(y *core.Yielder, l *core.Loop, s *PayloadStream, sep []byte) ([]byte, error) {
	ch, get := s.ReadUntil(sep)
	if _, err := core.Await(y, bridge(l, ch)); err != nil {
		return nil, err
	}
	return get()
}

func awaitSome(y *core.Yielder, l *core.Loop, s *PayloadStream, max int) ([]byte, error) {
	ch, get := s.ReadSome(max)
	if _, err := core.Await(y, bridge(l, ch)); err != nil {
		return nil, err
	}
	return get()
}

var headerSep = []byte("\r\n\r\n")

// ReadHTTPRequest reads a request line and header block from raw, then
// spawns the body decode as a background continuation of the same task,
// returning as soon as headers are available so a server can begin routing
// before the body finishes arriving.
func ReadHTTPRequest(l *core.Loop, raw *PayloadStream) *core.Future[*Message] {
	return readMessage(l, raw, true)
}

// ReadHTTPResponse is ReadHTTPRequest's counterpart for client use.
func ReadHTTPResponse(l *core.Loop, raw *PayloadStream) *core.Future[*Message] {
	return readMessage(l, raw, false)
}

func readMessage(l *core.Loop, raw *PayloadStream, isRequest bool) *core.Future[*Message] {
	headersFut := core.CreateFuture[*Message](l)
	core.CreateTask[struct{}](l, func(y *core.Yielder) (struct{}, error) {
		raw8, err := awaitUntil(y, l, raw, headerSep)
		if err != nil {
			_ = headersFut.SetException(err)
			return struct{}{}, err
		}
		lines := splitLines(raw8)
		if len(lines) == 0 {
			_ = headersFut.SetException(ErrMalformedStartLine)
			return struct{}{}, ErrMalformedStartLine
		}
		msg := &Message{}
		if isRequest {
			rl, err := parseRequestLine(lines[0])
			if err != nil {
				_ = headersFut.SetException(err)
				return struct{}{}, err
			}
			msg.Request = &rl
		} else {
			sl, err := parseStatusLine(lines[0])
			if err != nil {
				_ = headersFut.SetException(err)
				return struct{}{}, err
			}
			msg.Response = &sl
		}
		headers, err := parseHeaderBlock(lines[1:])
		if err != nil {
			_ = headersFut.SetException(err)
			return struct{}{}, err
		}
		msg.Headers = headers
		msg.Body = NewPayloadStream(nil)
		_ = headersFut.SetResult(msg)

		if err := decodeBody(y, l, raw, headers, msg.Body); err != nil {
			msg.Body.Complete(err)
			return struct{}{}, err
		}
		return struct{}{}, nil
	})
	return headersFut
}

// decodeBody selects exactly one body reader per spec.md §4.7's "Body
// selection" rules, applying a Content-Encoding decompressor if present.
// Both the raw reader and the decompressor (when one applies) deliver their
// output to out incrementally, as each piece arrives, rather than buffering
// the whole body before a single delivery — the backpressure watermarks in
// payload.go only do anything if a consumer drains like this (spec.md
// §4.7's "Backpressure").
func decodeBody(y *core.Yielder, l *core.Loop, raw *PayloadStream, headers *Headers, out *PayloadStream) error {
	enc, hasEnc := headers.Get("Content-Encoding")
	hasEnc = hasEnc && !strings.EqualFold(strings.TrimSpace(enc), "identity")

	sink := out.AddReceivedChunk
	var feeder *chunkFeeder
	var decodeDone *core.Future[struct{}]

	if hasEnc {
		dec, ok := contentDecoders[strings.ToLower(strings.TrimSpace(enc))]
		if !ok {
			return ErrUnsupportedEncoding
		}
		feeder = newChunkFeeder()
		decodeDone = core.CreateFuture[struct{}](l)
		go runContentDecoder(l, dec, feeder, out, decodeDone)
		sink = feeder.push
	}

	err := readRawBody(y, l, raw, headers, sink)

	if feeder != nil {
		feeder.finish(err)
		if _, decErr := core.Await(y, decodeDone); err == nil {
			err = decErr
		}
	}

	if err != nil {
		return err
	}
	out.Complete(nil)
	return nil
}

// readRawBody picks exactly one framing reader per spec.md §4.7's "Body
// selection" rules and feeds sink with each segment as it arrives.
func readRawBody(y *core.Yielder, l *core.Loop, raw *PayloadStream, headers *Headers, sink func([]byte)) error {
	if te, ok := headers.Get("Transfer-Encoding"); ok && strings.EqualFold(strings.TrimSpace(te), "chunked") {
		return readChunkedBody(y, l, raw, headers, sink)
	}
	if cl, ok := headers.Get("Content-Length"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(cl))
		if err != nil {
			return ErrMalformedHeader
		}
		return readContentLengthBody(y, l, raw, n, sink)
	}
	if conn, ok := headers.Get("Connection"); ok && strings.EqualFold(strings.TrimSpace(conn), "close") {
		return readUntilEOFBody(y, l, raw, sink)
	}
	// Otherwise: no recognized framing header means an empty body.
	return nil
}

// readContentLengthBody reads exactly n bytes, forwarding whatever is
// already available on each wakeup instead of waiting for the full count.
func readContentLengthBody(y *core.Yielder, l *core.Loop, raw *PayloadStream, n int, sink func([]byte)) error {
	remaining := n
	for remaining > 0 {
		chunk, err := awaitSome(y, l, raw, remaining)
		if err != nil {
			if err == io.EOF {
				return io.ErrUnexpectedEOF
			}
			return err
		}
		sink(chunk)
		remaining -= len(chunk)
	}
	return nil
}

// readUntilEOFBody forwards bytes as they arrive until raw completes
// cleanly (the implicit "Connection: close" framing).
func readUntilEOFBody(y *core.Yielder, l *core.Loop, raw *PayloadStream, sink func([]byte)) error {
	for {
		chunk, err := awaitSome(y, l, raw, 0)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		sink(chunk)
	}
}

var crlf = []byte("\r\n")

// readChunkedBody implements spec.md §4.7's "parse hex size, CRLF, N bytes,
// CRLF, repeat until size 0, then read trailer headers," forwarding each
// chunk's payload to sink as soon as it is fully read rather than
// accumulating the whole body first (spec.md §8 scenario 1: the consumer
// observes b"hey m" and b"ister" as two separate reads, not one merged
// chunk).
func readChunkedBody(y *core.Yielder, l *core.Loop, raw *PayloadStream, headers *Headers, sink func([]byte)) error {
	for {
		sizeLine, err := awaitUntil(y, l, raw, crlf)
		if err != nil {
			return err
		}
		sizeStr := strings.TrimSpace(strings.TrimSuffix(string(sizeLine), "\r\n"))
		if i := strings.IndexByte(sizeStr, ';'); i >= 0 {
			sizeStr = sizeStr[:i] // chunk extensions are ignored
		}
		size, err := strconv.ParseInt(sizeStr, 16, 64)
		if err != nil {
			return ErrMalformedHeader
		}
		if size == 0 {
			for {
				trailer, err := awaitUntil(y, l, raw, crlf)
				if err != nil {
					return err
				}
				trailerLines := splitLines(trailer)
				if len(trailerLines) == 0 || trailerLines[0] == "" {
					return nil
				}
				if extra, err := parseHeaderBlock(trailerLines); err == nil {
					for _, name := range extra.Names() {
						for _, v := range extra.Values(name) {
							headers.Add(name, v)
						}
					}
				}
			}
		}
		chunk, err := awaitExactly(y, l, raw, int(size))
		if err != nil {
			return err
		}
		sink(chunk)
		if _, err := awaitExactly(y, l, raw, 2); err != nil { // trailing CRLF
			return err
		}
	}
}

// chunkFeeder is an io.Reader fed from the loop thread via push, consumed by
// a dedicated decode goroutine (runContentDecoder) — push and finish never
// block, so the loop thread is never held up waiting for the decoder to
// keep pace.
type chunkFeeder struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  [][]byte
	closed bool
	err    error
	cur    []byte
}

func newChunkFeeder() *chunkFeeder {
	f := &chunkFeeder{}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// push hands off chunk for decoding. Must only be called from the loop
// thread.
func (f *chunkFeeder) push(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	f.mu.Lock()
	f.queue = append(f.queue, chunk)
	f.cond.Signal()
	f.mu.Unlock()
}

// finish signals that no more chunks are coming; cause is nil for a clean
// end of input or the reason the raw read stopped otherwise.
func (f *chunkFeeder) finish(cause error) {
	f.mu.Lock()
	f.closed = true
	f.err = cause
	f.cond.Signal()
	f.mu.Unlock()
}

func (f *chunkFeeder) Read(p []byte) (int, error) {
	f.mu.Lock()
	for len(f.cur) == 0 {
		if len(f.queue) > 0 {
			f.cur = f.queue[0]
			f.queue = f.queue[1:]
			break
		}
		if f.closed {
			err := f.err
			f.mu.Unlock()
			if err != nil {
				return 0, err
			}
			return 0, io.EOF
		}
		f.cond.Wait()
	}
	n := copy(p, f.cur)
	f.cur = f.cur[n:]
	f.mu.Unlock()
	return n, nil
}

// runContentDecoder decodes everything fed through feeder via dec, pushing
// each decoded segment to out as soon as it's produced. Runs on its own
// goroutine since dec's Read may block waiting on feeder; out.AddReceivedChunk
// and done's completion are always dispatched back onto the loop thread,
// preserving PayloadStream's single-producer-thread contract.
func runContentDecoder(l *core.Loop, dec ContentDecoder, feeder *chunkFeeder, out *PayloadStream, done *core.Future[struct{}]) {
	decoded, err := dec(feeder)
	if err != nil {
		l.CallSoonThreadSafe(func() { _ = done.SetException(err) })
		return
	}
	buf := make([]byte, 32*1024)
	var finalErr error
	for {
		n, rerr := decoded.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			l.CallSoonThreadSafe(func() { out.AddReceivedChunk(chunk) })
		}
		if rerr != nil {
			if rerr != io.EOF {
				finalErr = rerr
			}
			break
		}
	}
	l.CallSoonThreadSafe(func() {
		if finalErr != nil {
			_ = done.SetException(finalErr)
		} else {
			_ = done.SetResult(struct{}{})
		}
	})
}
