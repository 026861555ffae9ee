// Package httpproto implements the HTTP/1.1 read protocol, the payload
// stream that decouples the transport's read events from a consumer
// coroutine, and the WebSocket frame reader/writer (spec.md §4.7).
package httpproto

import (
	"errors"
	"io"
)

// Default payload-stream watermarks, in bytes (spec.md §4.7, "Backpressure:
// when the buffered-bytes counter exceeds a high watermark...").
const (
	DefaultLowWatermark  = 64 * 1024
	DefaultHighWatermark = 256 * 1024
)

// ErrConcurrentRead is returned when a second read is attempted while one is
// already suspended on a PayloadStream (spec.md §4.7, "At most one reader
// may be suspended; a second concurrent read is a programming error").
var ErrConcurrentRead = errors.New("httpproto: concurrent read on payload stream")

// Backpressure is the interface a PayloadStream uses to ask its producing
// transport to pause or resume (spec.md §4.6's PauseWriting/ResumeWriting,
// generalized: the payload stream applies read-side backpressure the same
// way a Transport applies write-side backpressure).
type Backpressure interface {
	Pause()
	Resume()
}

// pendingRead describes a suspended consumer, resumed from DataReceived
// when enough bytes (or an end condition) are available. Exactly one may be
// outstanding at a time.
type pendingRead struct {
	// want is the number of bytes required before notify fires, or -1 for
	// "any amount, or completion."
	want   int
	sep    []byte
	notify chan struct{}
}

// PayloadStream is the single synchronization point between a transport's
// read events and an HTTP/WebSocket consumer coroutine (spec.md §4.7,
// "PayloadStream"). It is safe for one producer goroutine (the loop thread)
// and one consumer goroutine (a task's driving goroutine, or more precisely
// a blocking caller bridged through core.Await — see Read*'s doc comments)
// at a time.
type PayloadStream struct {
	bp Backpressure

	buf    []byte
	offset int

	done    bool
	err     error
	paused  bool

	pending *pendingRead

	onComplete []func()
}

// NewPayloadStream constructs an empty stream backed by bp for read-side
// backpressure signalling.
func NewPayloadStream(bp Backpressure) *PayloadStream {
	return &PayloadStream{bp: bp}
}

func (s *PayloadStream) buffered() int { return len(s.buf) - s.offset }

// AddReceivedChunk appends producer-supplied bytes and wakes a suspended
// reader if its condition is now satisfied.
func (s *PayloadStream) AddReceivedChunk(chunk []byte) {
	if s.done {
		return
	}
	s.buf = append(s.buf, chunk...)
	if !s.paused && s.buffered() > DefaultHighWatermark {
		s.paused = true
		if s.bp != nil {
			s.bp.Pause()
		}
	}
	s.wake()
}

// Complete marks the stream finished, with err nil for a clean end or
// non-nil to fail any in-progress and future reads.
func (s *PayloadStream) Complete(err error) {
	if s.done {
		return
	}
	s.done = true
	s.err = err
	s.wake()
	cbs := s.onComplete
	s.onComplete = nil
	for _, cb := range cbs {
		cb()
	}
}

// OnComplete registers fn to run once the stream finishes, without
// consuming any buffered bytes — unlike ReadToEnd, it does not count as the
// stream's one outstanding reader. fn runs synchronously if the stream is
// already done. Used by callers that need to know when a body has been
// fully delivered (e.g. before reusing the connection it arrived on)
// without competing with whatever is actually consuming the body.
func (s *PayloadStream) OnComplete(fn func()) {
	if s.done {
		fn()
		return
	}
	s.onComplete = append(s.onComplete, fn)
}

func (s *PayloadStream) compact() {
	if s.offset == 0 {
		return
	}
	s.buf = append(s.buf[:0], s.buf[s.offset:]...)
	s.offset = 0
}

func (s *PayloadStream) maybeResume() {
	if s.paused && s.buffered() <= DefaultLowWatermark {
		s.paused = false
		if s.bp != nil {
			s.bp.Resume()
		}
	}
}

// wake checks the pending read's condition and, if satisfied, signals it.
// The actual data extraction happens in the blocked Read* call itself once
// it wakes, to keep this function allocation-free on the hot path.
func (s *PayloadStream) wake() {
	p := s.pending
	if p == nil {
		return
	}
	switch {
	case s.done:
	case p.want >= 0 && s.buffered() >= p.want:
	case p.sep != nil && indexOf(s.buf[s.offset:], p.sep) >= 0:
	case p.want == -1 && p.sep == nil && s.buffered() > 0:
	default:
		return
	}
	close(p.notify)
	s.pending = nil
}

func (s *PayloadStream) beginRead(want int, sep []byte) (*pendingRead, error) {
	if s.pending != nil {
		return nil, ErrConcurrentRead
	}
	p := &pendingRead{want: want, sep: sep, notify: make(chan struct{})}
	s.pending = p
	s.wake()
	return p, nil
}

// ReadExactly blocks (via ch) until n bytes are buffered or the stream
// completes, then returns exactly n bytes. The returned channel closes when
// the read is satisfiable; callers drive it through core.Await from a task,
// or select on it directly alongside cancellation/ctx.Done (spec.md §4.7,
// "also supports read_exactly(N)").
func (s *PayloadStream) ReadExactly(n int) (<-chan struct{}, func() ([]byte, error)) {
	p, err := s.beginRead(n, nil)
	if err != nil {
		ch := make(chan struct{})
		close(ch)
		return ch, func() ([]byte, error) { return nil, err }
	}
	return p.notify, func() ([]byte, error) {
		if s.buffered() < n {
			if s.err != nil {
				return nil, s.err
			}
			return nil, io.ErrUnexpectedEOF
		}
		out := append([]byte(nil), s.buf[s.offset:s.offset+n]...)
		s.offset += n
		s.compact()
		s.maybeResume()
		return out, nil
	}
}

// ReadUntil blocks until sep appears in the buffered bytes (inclusive of
// sep in the result) or the stream completes.
func (s *PayloadStream) ReadUntil(sep []byte) (<-chan struct{}, func() ([]byte, error)) {
	p, err := s.beginRead(-1, sep)
	if err != nil {
		ch := make(chan struct{})
		close(ch)
		return ch, func() ([]byte, error) { return nil, err }
	}
	return p.notify, func() ([]byte, error) {
		idx := indexOf(s.buf[s.offset:], sep)
		if idx < 0 {
			if s.err != nil {
				return nil, s.err
			}
			return nil, io.ErrUnexpectedEOF
		}
		end := s.offset + idx + len(sep)
		out := append([]byte(nil), s.buf[s.offset:end]...)
		s.offset = end
		s.compact()
		s.maybeResume()
		return out, nil
	}
}

// ReadSome blocks until at least one byte is buffered or the stream
// completes, then returns whatever is currently buffered (capped at max
// bytes if max > 0), without waiting for any further bytes to arrive. A
// clean completion with nothing left buffered returns io.EOF. Used by
// callers that need to forward bytes downstream as soon as they arrive
// instead of waiting for an exact count — read_exactly(N)'s streaming
// counterpart, and the only way a consumer actually benefits from the
// backpressure watermarks below (spec.md §4.7).
func (s *PayloadStream) ReadSome(max int) (<-chan struct{}, func() ([]byte, error)) {
	p, err := s.beginRead(-1, nil)
	if err != nil {
		ch := make(chan struct{})
		close(ch)
		return ch, func() ([]byte, error) { return nil, err }
	}
	return p.notify, func() ([]byte, error) {
		n := s.buffered()
		if n == 0 {
			if s.err != nil {
				return nil, s.err
			}
			return nil, io.EOF
		}
		if max > 0 && n > max {
			n = max
		}
		out := append([]byte(nil), s.buf[s.offset:s.offset+n]...)
		s.offset += n
		s.compact()
		s.maybeResume()
		return out, nil
	}
}

// ReadToEnd blocks until the stream completes, then returns everything
// buffered and any completion error.
func (s *PayloadStream) ReadToEnd() (<-chan struct{}, func() ([]byte, error)) {
	if s.done {
		ch := make(chan struct{})
		close(ch)
		return ch, func() ([]byte, error) {
			out := append([]byte(nil), s.buf[s.offset:]...)
			s.offset = len(s.buf)
			return out, s.err
		}
	}
	p := &pendingRead{want: -1, notify: make(chan struct{})}
	// ReadToEnd's condition is "done", which wake() only recognizes via the
	// default branches above evaluating s.done first; register directly
	// rather than through beginRead's "any buffered byte" shortcut.
	if s.pending != nil {
		ch := make(chan struct{})
		close(ch)
		return ch, func() ([]byte, error) { return nil, ErrConcurrentRead }
	}
	p.want = readToEndSentinel
	s.pending = p
	return p.notify, func() ([]byte, error) {
		out := append([]byte(nil), s.buf[s.offset:]...)
		s.offset = len(s.buf)
		return out, s.err
	}
}

// readToEndSentinel marks a pendingRead that only wakes on completion.
const readToEndSentinel = -2

func indexOf(haystack, needle []byte) int {
	if len(needle) == 0 {
		return -1
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if string(haystack[i:i+len(needle)]) == string(needle) {
			return i
		}
	}
	return -1
}
