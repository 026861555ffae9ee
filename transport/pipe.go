package transport

import (
	"github.com/HuyaneMatsu/scarletio/core"
)

const pipeReadSize = 64 * 1024

// ReadPipeTransport is a half-duplex read-only transport over a
// non-blocking pipe, socket, or character-device fd (spec.md §4.6, "Pipe
// transports (UNIX)").
type ReadPipeTransport struct {
	loop   *core.Loop
	proto  Protocol
	fd     int
	closed bool
}

// NewReadPipeTransport validates fd's type, sets it non-blocking, and
// begins reading.
func NewReadPipeTransport(loop *core.Loop, fd int, proto Protocol) (*ReadPipeTransport, error) {
	if err := validatePipeFd(fd); err != nil {
		return nil, err
	}
	if err := setNonblock(fd); err != nil {
		return nil, err
	}
	t := &ReadPipeTransport{loop: loop, proto: proto, fd: fd}
	proto.ConnectionMade(t)
	_ = loop.AddReader(fd, t.onReadable)
	return t, nil
}

func (t *ReadPipeTransport) onReadable() {
	buf := make([]byte, pipeReadSize)
	n, err := rawRead(t.fd, buf)
	switch {
	case n > 0:
		t.proto.DataReceived(buf[:n])
	case err == nil && n == 0:
		keepOpen := t.proto.EOFReceived()
		t.loop.RemoveReader(t.fd)
		if !keepOpen {
			t.finishClose(nil)
		}
	case err != nil && isWouldBlock(err):
	default:
		t.finishClose(err)
	}
}

// Write is a no-op: a ReadPipeTransport has no write half.
func (t *ReadPipeTransport) Write([]byte) {}

// WriteEOF is a no-op: a ReadPipeTransport has no write half to shut down.
func (t *ReadPipeTransport) WriteEOF() {}

// SetWatermarks is a no-op: a ReadPipeTransport buffers nothing to write.
func (t *ReadPipeTransport) SetWatermarks(int, int) {}

// Watermarks always reports zero: a ReadPipeTransport buffers nothing to write.
func (t *ReadPipeTransport) Watermarks() (int, int) { return 0, 0 }

func (t *ReadPipeTransport) Close() { t.finishClose(nil) }
func (t *ReadPipeTransport) Abort() { t.finishClose(nil) }

func (t *ReadPipeTransport) finishClose(err error) {
	if t.closed {
		return
	}
	t.closed = true
	t.loop.RemoveReader(t.fd)
	_ = closeFd(t.fd)
	t.proto.ConnectionLost(err)
}

func (t *ReadPipeTransport) GetExtraInfo(name string) any {
	if name == "fd" {
		return t.fd
	}
	return nil
}

// WritePipeTransport is a half-duplex write-only transport over a
// non-blocking pipe, socket, or character-device fd.
type WritePipeTransport struct {
	*writeBuffer
	loop   *core.Loop
	fd     int
	closed bool
}

// NewWritePipeTransport validates fd's type, sets it non-blocking, and
// returns a ready-to-write transport.
func NewWritePipeTransport(loop *core.Loop, fd int, proto Protocol) (*WritePipeTransport, error) {
	if err := validatePipeFd(fd); err != nil {
		return nil, err
	}
	if err := setNonblock(fd); err != nil {
		return nil, err
	}
	t := &WritePipeTransport{writeBuffer: newWriteBuffer(loop, proto), loop: loop, fd: fd}
	proto.ConnectionMade(t)
	return t, nil
}

func (t *WritePipeTransport) Write(data []byte) {
	if t.closed || t.writeBuffer.closing {
		return
	}
	wasEmpty := !t.writeBuffer.pending()
	t.writeBuffer.append(data)
	if wasEmpty {
		t.flush()
	}
}

func (t *WritePipeTransport) flush() {
	for t.writeBuffer.pending() {
		n, err := rawWrite(t.fd, t.writeBuffer.buf)
		if n > 0 {
			t.writeBuffer.drained(n)
		}
		if err != nil {
			if isWouldBlock(err) {
				_ = t.loop.AddWriter(t.fd, t.flush)
				return
			}
			t.finishClose(err)
			return
		}
		if n == 0 {
			_ = t.loop.AddWriter(t.fd, t.flush)
			return
		}
	}
	t.loop.RemoveWriter(t.fd)
	if t.writeBuffer.closing {
		t.finishClose(nil)
	}
}

func (t *WritePipeTransport) WriteEOF() { t.Close() }

func (t *WritePipeTransport) Close() {
	if t.closed || t.writeBuffer.closing {
		return
	}
	t.writeBuffer.closing = true
	if !t.writeBuffer.pending() {
		t.finishClose(nil)
	}
}

func (t *WritePipeTransport) Abort() {
	t.writeBuffer.buf = nil
	t.finishClose(nil)
}

func (t *WritePipeTransport) finishClose(err error) {
	if t.closed {
		return
	}
	t.closed = true
	t.loop.RemoveWriter(t.fd)
	_ = closeFd(t.fd)
	t.writeBuffer.proto.ConnectionLost(err)
}

// SetWatermarks configures the write-buffer watermarks driving
// PauseWriting/ResumeWriting.
func (t *WritePipeTransport) SetWatermarks(low, high int) { t.writeBuffer.setWatermarks(low, high) }

// Watermarks returns the currently configured low/high watermarks.
func (t *WritePipeTransport) Watermarks() (int, int) { return t.writeBuffer.watermarks() }

func (t *WritePipeTransport) GetExtraInfo(name string) any {
	if name == "fd" {
		return t.fd
	}
	return nil
}
