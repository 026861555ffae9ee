package httpproto

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// BodyMode selects how Writer terminates a message body (spec.md §4.7,
// "HTTP write path... Body modes: exact length, chunked with a configurable
// max chunk size, or EOF-terminated").
type BodyMode int

const (
	BodyModeEmpty BodyMode = iota
	BodyModeExactLength
	BodyModeChunked
	BodyModeUntilClose
)

// DefaultMaxChunkSize bounds a single chunked-encoding frame's payload.
const DefaultMaxChunkSize = 16 * 1024

// WriteOptions configures a single message's serialization.
type WriteOptions struct {
	Mode         BodyMode
	MaxChunkSize int    // used only when Mode == BodyModeChunked; 0 means DefaultMaxChunkSize
	Compress     string // "gzip", "deflate", or "" for no compression
}

// WriteRequestLine serializes "METHOD target HTTP/1.1\r\n".
func WriteRequestLine(w io.Writer, method, target, version string) error {
	_, err := fmt.Fprintf(w, "%s %s %s\r\n", method, target, version)
	return err
}

// WriteStatusLine serializes "HTTP/1.1 CODE reason\r\n".
func WriteStatusLine(w io.Writer, version string, code int, reason string) error {
	_, err := fmt.Fprintf(w, "%s %d %s\r\n", version, code, reason)
	return err
}

// WriteHeaders serializes headers as "Name: value\r\n" pairs, one per
// value, terminated by a blank line. sortedForTests, when true, sorts names
// for deterministic output (spec.md §4.7, "canonical header block (sorted
// for determinism only in tests)"); production callers pass false to
// preserve insertion order.
func WriteHeaders(w io.Writer, headers *Headers, sortedForTests bool) error {
	names := headers.Names()
	if sortedForTests {
		names = append([]string(nil), names...)
		sort.Strings(names)
	}
	for _, name := range names {
		for _, v := range headers.Values(name) {
			if _, err := fmt.Fprintf(w, "%s: %s\r\n", name, v); err != nil {
				return err
			}
		}
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}

// BodyProducer is an iterator of body chunks, the write-side analogue of
// PayloadStream's read iteration (spec.md §4.7, "A client body producer is
// an async iterator of bytes").
type BodyProducer interface {
	// Next returns the next chunk, or io.EOF once exhausted.
	Next() ([]byte, error)
}

// ReaderBodyProducer adapts an io.Reader into a BodyProducer, reading up to
// chunkSize bytes per call.
type ReaderBodyProducer struct {
	R         io.Reader
	ChunkSize int
}

func (p *ReaderBodyProducer) Next() ([]byte, error) {
	size := p.ChunkSize
	if size <= 0 {
		size = DefaultMaxChunkSize
	}
	buf := make([]byte, size)
	n, err := p.R.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	return nil, err
}

// compressingProducer wraps an underlying producer, pushing its chunks
// through a streaming compressor (spec.md §4.7, "compression is applied
// transparently when requested").
type compressingProducer struct {
	src    BodyProducer
	pw     *io.PipeWriter
	pr     *io.PipeReader
	closed bool
}

func newCompressingProducer(src BodyProducer, encoding string) (BodyProducer, error) {
	pr, pw := io.Pipe()
	cp := &compressingProducer{src: src, pw: pw, pr: pr}
	var wc io.WriteCloser
	switch encoding {
	case "gzip":
		wc = gzip.NewWriter(pw)
	case "deflate":
		fw, err := flate.NewWriter(pw, flate.DefaultCompression)
		if err != nil {
			return nil, err
		}
		wc = fw
	default:
		return nil, ErrUnsupportedEncoding
	}
	go func() {
		for {
			chunk, err := cp.src.Next()
			if len(chunk) > 0 {
				if _, werr := wc.Write(chunk); werr != nil {
					pw.CloseWithError(werr)
					return
				}
			}
			if err != nil {
				if err == io.EOF {
					wc.Close()
					pw.Close()
				} else {
					pw.CloseWithError(err)
				}
				return
			}
		}
	}()
	return cp, nil
}

func (p *compressingProducer) Next() ([]byte, error) {
	buf := make([]byte, DefaultMaxChunkSize)
	n, err := p.pr.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	return nil, err
}

// NewBodyProducer wraps src with compression if encoding is non-empty.
func NewBodyProducer(src BodyProducer, encoding string) (BodyProducer, error) {
	if encoding == "" {
		return src, nil
	}
	return newCompressingProducer(src, encoding)
}

// WriteBody drains producer into w according to opts.Mode (spec.md §4.7,
// "Body modes: exact length, chunked with a configurable max chunk size, or
// EOF-terminated"). For BodyModeExactLength the caller is responsible for
// having written a correct Content-Length header; WriteBody itself simply
// copies bytes through.
func WriteBody(w io.Writer, producer BodyProducer, opts WriteOptions) error {
	if opts.Compress != "" {
		compressed, err := NewBodyProducer(producer, opts.Compress)
		if err != nil {
			return err
		}
		producer = compressed
	}
	switch opts.Mode {
	case BodyModeEmpty:
		return nil
	case BodyModeExactLength, BodyModeUntilClose:
		for {
			chunk, err := producer.Next()
			if len(chunk) > 0 {
				if _, werr := w.Write(chunk); werr != nil {
					return werr
				}
			}
			if err != nil {
				if err == io.EOF {
					return nil
				}
				return err
			}
		}
	case BodyModeChunked:
		return writeChunked(w, producer, opts.MaxChunkSize)
	default:
		return fmt.Errorf("httpproto: unknown body mode %d", opts.Mode)
	}
}

func writeChunked(w io.Writer, producer BodyProducer, maxChunk int) error {
	if maxChunk <= 0 {
		maxChunk = DefaultMaxChunkSize
	}
	for {
		chunk, err := producer.Next()
		for len(chunk) > 0 {
			n := len(chunk)
			if n > maxChunk {
				n = maxChunk
			}
			if _, werr := fmt.Fprintf(w, "%x\r\n", n); werr != nil {
				return werr
			}
			if _, werr := w.Write(chunk[:n]); werr != nil {
				return werr
			}
			if _, werr := io.WriteString(w, "\r\n"); werr != nil {
				return werr
			}
			chunk = chunk[n:]
		}
		if err != nil {
			if err == io.EOF {
				_, werr := io.WriteString(w, "0\r\n\r\n")
				return werr
			}
			return err
		}
	}
}

// BufferedBodyProducer turns a plain byte slice into a one-shot
// BodyProducer, useful for small request/response bodies known in full
// ahead of time.
func BufferedBodyProducer(data []byte) BodyProducer {
	return &ReaderBodyProducer{R: bytes.NewReader(data)}
}

// ContentLengthFor reports the Content-Length to declare for a body mode
// that has a known total size ahead of time.
func ContentLengthFor(data []byte) string {
	return strconv.Itoa(len(data))
}
