package transport

import (
	"errors"
	"net"

	"github.com/HuyaneMatsu/scarletio/core"
)

// streamReadSize bounds how many bytes StreamTransport reads per readable
// event (spec.md §4.6, "Reads ≤ N bytes per readable event").
const streamReadSize = 64 * 1024

// StreamTransport is a byte-stream transport over a connected, non-blocking
// socket fd — TCP, or any other stream-oriented descriptor (spec.md §4.6,
// "Stream transport (TCP)"). It owns fd for its lifetime: the fd is closed
// exactly once, by Close or Abort.
type StreamTransport struct {
	*writeBuffer
	loop  *core.Loop
	proto Protocol
	fd    int

	local, remote net.Addr

	eofSent bool
	closed  bool
}

// NewStreamTransport wraps an already-connected, non-blocking fd. proto's
// ConnectionMade is invoked synchronously before returning, and a reader is
// registered immediately.
func NewStreamTransport(loop *core.Loop, fd int, local, remote net.Addr, proto Protocol) *StreamTransport {
	t := &StreamTransport{
		writeBuffer: newWriteBuffer(loop, proto),
		loop:        loop,
		proto:       proto,
		fd:          fd,
		local:       local,
		remote:      remote,
	}
	proto.ConnectionMade(t)
	_ = loop.AddReader(fd, t.onReadable)
	return t
}

// rebindProtocol swaps the protocol receiving this transport's events,
// without touching the fd registration or buffered state. Used by
// SSLTransport to interpose itself between a raw stream and the
// application protocol once a handshake begins.
func (t *StreamTransport) rebindProtocol(proto Protocol) Protocol {
	prev := t.proto
	t.proto = proto
	t.writeBuffer.proto = proto
	return prev
}

func (t *StreamTransport) onReadable() {
	buf := make([]byte, streamReadSize)
	n, err := rawRead(t.fd, buf)
	switch {
	case n > 0:
		t.proto.DataReceived(buf[:n])
	case err == nil && n == 0:
		t.handleEOF()
	case err != nil && isWouldBlock(err):
		// spurious wakeup; nothing to do.
	default:
		t.closeWithError(err)
	}
}

func (t *StreamTransport) handleEOF() {
	keepOpen := t.proto.EOFReceived()
	t.loop.RemoveReader(t.fd)
	if !keepOpen {
		t.closeWithError(nil)
	}
}

// Write queues data; never blocks (spec.md §4.6, "Write buffering is
// mandatory").
func (t *StreamTransport) Write(data []byte) {
	if t.closed || t.writeBuffer.closing {
		return
	}
	wasEmpty := !t.writeBuffer.pending()
	t.writeBuffer.append(data)
	if wasEmpty {
		t.flush()
	}
}

// flush drains as much of the write buffer as the socket will currently
// accept, registering a writer for the remainder (spec.md §4.6, "Writes
// drain the buffer from the writable event, deregistering the writer when
// empty").
func (t *StreamTransport) flush() {
	for t.writeBuffer.pending() {
		n, err := rawWrite(t.fd, t.writeBuffer.buf)
		if n > 0 {
			t.writeBuffer.drained(n)
		}
		if err != nil {
			if isWouldBlock(err) {
				_ = t.loop.AddWriter(t.fd, t.onWritable)
				return
			}
			t.closeWithError(err)
			return
		}
		if n == 0 {
			_ = t.loop.AddWriter(t.fd, t.onWritable)
			return
		}
	}
	t.loop.RemoveWriter(t.fd)
	if t.eofSent {
		shutdownWrite(t.fd)
	}
	if t.writeBuffer.closing {
		t.finishClose(nil)
	}
}

func (t *StreamTransport) onWritable() { t.flush() }

// WriteEOF half-closes the write side once the buffer drains.
func (t *StreamTransport) WriteEOF() {
	if t.eofSent {
		return
	}
	t.eofSent = true
	if !t.writeBuffer.pending() {
		shutdownWrite(t.fd)
	}
}

// Close flushes any buffered data, then releases fd.
func (t *StreamTransport) Close() {
	if t.closed || t.writeBuffer.closing {
		return
	}
	t.writeBuffer.closing = true
	if !t.writeBuffer.pending() {
		t.finishClose(nil)
	}
}

// Abort releases fd immediately, discarding buffered data.
func (t *StreamTransport) Abort() {
	t.writeBuffer.buf = nil
	t.finishClose(nil)
}

func (t *StreamTransport) closeWithError(err error) {
	t.writeBuffer.buf = nil
	t.finishClose(err)
}

func (t *StreamTransport) finishClose(err error) {
	if t.closed {
		return
	}
	t.closed = true
	t.loop.RemoveReader(t.fd)
	t.loop.RemoveWriter(t.fd)
	_ = closeFd(t.fd)
	t.proto.ConnectionLost(err)
}

// SetWatermarks configures the write-buffer watermarks driving
// PauseWriting/ResumeWriting.
func (t *StreamTransport) SetWatermarks(low, high int) { t.writeBuffer.setWatermarks(low, high) }

// Watermarks returns the currently configured low/high watermarks.
func (t *StreamTransport) Watermarks() (int, int) { return t.writeBuffer.watermarks() }

func (t *StreamTransport) GetExtraInfo(name string) any {
	switch name {
	case "peername":
		return t.remote
	case "sockname":
		return t.local
	case "fd":
		return t.fd
	default:
		return nil
	}
}

var errWouldBlock = errors.New("transport: operation would block")

func isWouldBlock(err error) bool {
	return errors.Is(err, errWouldBlock) || isEAGAIN(err)
}
