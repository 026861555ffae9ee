// Package transport implements the byte-level transport/protocol contract
// (spec.md §4.6): TCP stream transports, UDP datagram transports, UNIX
// half-duplex pipe transports, and a TLS wrapper transport, all driven by a
// core.Loop.
package transport

import (
	"net"

	"github.com/HuyaneMatsu/scarletio/core"
)

// Protocol receives bytes (or datagrams) from a Transport. Implementations
// must not block; all methods run on the owning loop's thread (spec.md
// §4.6, "Protocol contract").
type Protocol interface {
	// ConnectionMade is called once a transport has attached itself.
	ConnectionMade(t Transport)
	// DataReceived is called with each chunk read from a stream transport.
	DataReceived(data []byte)
	// DatagramReceived is called with each datagram read from a datagram
	// transport, along with its source address.
	DatagramReceived(data []byte, addr net.Addr)
	// EOFReceived is called when the peer half-closes its write side.
	// Returning true keeps this side's write half open.
	EOFReceived() bool
	// ConnectionLost is called once the transport has fully closed, with a
	// non-nil error if the closure was not clean.
	ConnectionLost(err error)
	// PauseWriting is called when the transport's write buffer has grown
	// past its high watermark.
	PauseWriting()
	// ResumeWriting is called once the write buffer has drained below its
	// low watermark.
	ResumeWriting()
}

// BaseProtocol gives an embedding Protocol no-op defaults for every method,
// so implementations only override what they need — the same convenience
// asyncio's BaseProtocol provides.
type BaseProtocol struct{}

func (BaseProtocol) ConnectionMade(Transport)                {}
func (BaseProtocol) DataReceived([]byte)                      {}
func (BaseProtocol) DatagramReceived([]byte, net.Addr)        {}
func (BaseProtocol) EOFReceived() bool                        { return false }
func (BaseProtocol) ConnectionLost(error)                     {}
func (BaseProtocol) PauseWriting()                            {}
func (BaseProtocol) ResumeWriting()                            {}

// Transport sends bytes to a peer (spec.md §4.6, "Transport contract").
// Write never blocks: oversized buffered state triggers the protocol's
// PauseWriting, and ResumeWriting fires once the buffer drains below its
// low watermark.
type Transport interface {
	// Write queues data for sending. Never blocks.
	Write(data []byte)
	// WriteEOF half-closes the write side once the buffer drains.
	WriteEOF()
	// Close flushes the write buffer, then releases the underlying fd.
	Close()
	// Abort releases the underlying fd immediately, discarding any
	// buffered, unsent data.
	Abort()
	// GetExtraInfo exposes transport-specific metadata (e.g. "peername",
	// "sockname", "fd") by name.
	GetExtraInfo(name string) any
	// SetWatermarks configures the high/low buffered-byte thresholds that
	// drive PauseWriting/ResumeWriting.
	SetWatermarks(low, high int)
	Watermarks() (low, high int)
}

// Default write-buffer watermarks, in bytes, matching the conventional
// asyncio defaults this spec is grounded on.
const (
	DefaultLowWatermark  = 64 * 1024
	DefaultHighWatermark = 256 * 1024
)

// writeBuffer is the shared write-buffering/backpressure state embedded by
// every concrete Transport below (spec.md §4.6, "Write buffering is
// mandatory").
type writeBuffer struct {
	loop     *core.Loop
	proto    Protocol
	buf      []byte
	low      int
	high     int
	paused   bool
	closing  bool
	closed   bool
}

func newWriteBuffer(loop *core.Loop, proto Protocol) *writeBuffer {
	return &writeBuffer{loop: loop, proto: proto, low: DefaultLowWatermark, high: DefaultHighWatermark}
}

func (w *writeBuffer) append(data []byte) {
	w.buf = append(w.buf, data...)
	if !w.paused && len(w.buf) > w.high {
		w.paused = true
		w.proto.PauseWriting()
	}
}

// drained is called after some bytes have been flushed to the OS; it fires
// ResumeWriting once the buffer falls back under the low watermark.
func (w *writeBuffer) drained(n int) {
	w.buf = w.buf[n:]
	if w.paused && len(w.buf) <= w.low {
		w.paused = false
		w.proto.ResumeWriting()
	}
}

func (w *writeBuffer) pending() bool { return len(w.buf) > 0 }

func (w *writeBuffer) setWatermarks(low, high int) {
	if low >= 0 {
		w.low = low
	}
	if high > 0 {
		w.high = high
	}
}

func (w *writeBuffer) watermarks() (int, int) { return w.low, w.high }
