//go:build windows

package core

import (
	"net"
	"syscall"
	"time"
)

// createWakeFds has no pipe(2) or eventfd equivalent usable with WSAPoll, so
// it dials a loopback TCP pair instead: two real SOCKET handles, one read
// (accepted) end and one write (dialed) end, registrable with shardPoller
// the same way any other socket would be.
func createWakeFds() (readFd, writeFd int, err error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, 0, err
	}
	defer ln.Close()

	writeConn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		return 0, 0, err
	}
	readConn, err := ln.Accept()
	if err != nil {
		writeConn.Close()
		return 0, 0, err
	}

	rFd, err := socketFd(readConn)
	if err != nil {
		readConn.Close()
		writeConn.Close()
		return 0, 0, err
	}
	wFd, err := socketFd(writeConn)
	if err != nil {
		readConn.Close()
		writeConn.Close()
		return 0, 0, err
	}
	wakeConns[rFd] = readConn
	wakeConns[wFd] = writeConn
	return rFd, wFd, nil
}

// wakeConns keeps the net.Conn values whose raw fds back the self-pipe
// alive; Go's net package owns the underlying SOCKET lifetime, not us.
var wakeConns = map[int]net.Conn{}

func socketFd(c net.Conn) (int, error) {
	sc, ok := c.(syscall.Conn)
	if !ok {
		return 0, syscall.EINVAL
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return 0, err
	}
	var fd int
	if err := raw.Control(func(h uintptr) { fd = int(h) }); err != nil {
		return 0, err
	}
	return fd, nil
}

func writeWakeByte(writeFd int) {
	if c, ok := wakeConns[writeFd]; ok {
		_, _ = c.Write([]byte{1})
	}
}

func drainWakeFd(readFd int) {
	c, ok := wakeConns[readFd]
	if !ok {
		return
	}
	buf := make([]byte, 64)
	_ = c.SetReadDeadline(time.Now().Add(time.Millisecond))
	for {
		n, err := c.Read(buf)
		if n == 0 || err != nil {
			break
		}
	}
	_ = c.SetReadDeadline(time.Time{})
}

func closeWakeFds(readFd, writeFd int) {
	if c, ok := wakeConns[readFd]; ok {
		c.Close()
		delete(wakeConns, readFd)
	}
	if c, ok := wakeConns[writeFd]; ok {
		c.Close()
		delete(wakeConns, writeFd)
	}
}
