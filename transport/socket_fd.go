package transport

import (
	"errors"
	"syscall"
)

// errNotPipeLike is returned by validatePipeFd when fd is not a pipe,
// socket, or character device (spec.md §4.6, "Pipe transports (UNIX)").
var errNotPipeLike = errors.New("transport: fd is not a pipe, socket, or character device")

// socketFd extracts the raw OS handle backing a net.Conn (or net.Listener),
// so it can be registered with core.Loop's selector and driven with raw
// reads/writes instead of through Go's own runtime netpoller.
func socketFd(c any) (int, error) {
	sc, ok := c.(syscall.Conn)
	if !ok {
		return 0, syscall.EINVAL
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return 0, err
	}
	var fd int
	var ctrlErr error
	err = raw.Control(func(h uintptr) {
		fd = int(h)
	})
	if err != nil {
		return 0, err
	}
	return fd, ctrlErr
}
