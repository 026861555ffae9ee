package transport

import (
	"net"

	"github.com/HuyaneMatsu/scarletio/core"
)

const datagramReadSize = 64 * 1024

type pendingDatagram struct {
	data []byte
	addr net.Addr
}

// DatagramTransport reads each UDP datagram with its source address, and
// queues outgoing datagrams in an in-memory FIFO drained on writable events
// (spec.md §4.6, "Datagram transport (UDP)"). If remote is non-nil, it is
// the destination of every send that names no address of its own, and the
// source reported for a datagram whose sender address is unknown.
type DatagramTransport struct {
	loop   *core.Loop
	proto  Protocol
	fd     int
	local  net.Addr
	remote net.Addr

	queue  []pendingDatagram
	closed bool
}

// NewDatagramTransport wraps an already-bound, non-blocking UDP fd.
func NewDatagramTransport(loop *core.Loop, fd int, local, remote net.Addr, proto Protocol) *DatagramTransport {
	t := &DatagramTransport{loop: loop, proto: proto, fd: fd, local: local, remote: remote}
	proto.ConnectionMade(t)
	_ = loop.AddReader(fd, t.onReadable)
	return t
}

func (t *DatagramTransport) onReadable() {
	buf := make([]byte, datagramReadSize)
	n, from, err := recvfrom(t.fd, buf)
	if err != nil {
		if !isWouldBlock(err) {
			t.finishClose(err)
		}
		return
	}
	addr := from
	if addr == nil {
		addr = t.remote
	}
	t.proto.DatagramReceived(buf[:n], addr)
}

// SendTo queues a datagram for addr (or the configured remote address if
// addr is nil).
func (t *DatagramTransport) SendTo(data []byte, addr net.Addr) {
	if t.closed {
		return
	}
	if addr == nil {
		addr = t.remote
	}
	wasEmpty := len(t.queue) == 0
	t.queue = append(t.queue, pendingDatagram{data: data, addr: addr})
	if wasEmpty {
		t.flush()
	}
}

func (t *DatagramTransport) flush() {
	for len(t.queue) > 0 {
		d := t.queue[0]
		_, err := sendto(t.fd, d.data, d.addr)
		if err != nil {
			if isWouldBlock(err) {
				_ = t.loop.AddWriter(t.fd, t.flush)
				return
			}
			t.finishClose(err)
			return
		}
		t.queue = t.queue[1:]
	}
	t.loop.RemoveWriter(t.fd)
}

func (t *DatagramTransport) Write(data []byte) { t.SendTo(data, nil) }
func (t *DatagramTransport) WriteEOF()         {}

func (t *DatagramTransport) Close()  { t.finishClose(nil) }
func (t *DatagramTransport) Abort()  { t.queue = nil; t.finishClose(nil) }

func (t *DatagramTransport) finishClose(err error) {
	if t.closed {
		return
	}
	t.closed = true
	t.loop.RemoveReader(t.fd)
	t.loop.RemoveWriter(t.fd)
	_ = closeFd(t.fd)
	t.proto.ConnectionLost(err)
}

func (t *DatagramTransport) GetExtraInfo(name string) any {
	switch name {
	case "sockname":
		return t.local
	case "peername":
		return t.remote
	default:
		return nil
	}
}

func (t *DatagramTransport) SetWatermarks(int, int)       {}
func (t *DatagramTransport) Watermarks() (int, int)       { return 0, 0 }
