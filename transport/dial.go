package transport

import (
	"net"

	"github.com/HuyaneMatsu/scarletio/core"
)

// DialStream opens a non-blocking TCP connection and, once it completes,
// wraps it in a StreamTransport bound to proto. Address resolution uses
// net.ResolveTCPAddr (a Non-goal exclusion: this module does not reimplement
// a resolver); the connection itself is a raw, loop-registered socket, never
// a net.Conn, so all of its I/O goes through the loop's own selector.
func DialStream(loop *core.Loop, network, address string, proto Protocol) *core.Future[*StreamTransport] {
	fut := core.CreateFuture[*StreamTransport](loop)

	addr, err := net.ResolveTCPAddr(network, address)
	if err != nil {
		_ = fut.SetException(err)
		return fut
	}

	fd, sa, err := rawSocket(addr)
	if err != nil {
		_ = fut.SetException(err)
		return fut
	}

	err = connectSocket(fd, sa)
	if err == nil {
		t := NewStreamTransport(loop, fd, localAddr(fd), remoteAddr(fd), proto)
		_ = fut.SetResult(t)
		return fut
	}
	if !isInProgress(err) {
		_ = closeFd(fd)
		_ = fut.SetException(err)
		return fut
	}

	var onWritable func()
	onWritable = func() {
		loop.RemoveWriter(fd)
		if cerr := socketError(fd); cerr != nil {
			_ = closeFd(fd)
			_ = fut.SetException(cerr)
			return
		}
		t := NewStreamTransport(loop, fd, localAddr(fd), remoteAddr(fd), proto)
		_ = fut.SetResult(t)
	}
	if err := loop.AddWriter(fd, onWritable); err != nil {
		_ = closeFd(fd)
		_ = fut.SetException(err)
	}
	return fut
}
