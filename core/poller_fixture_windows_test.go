//go:build windows

package core

import (
	"net"
	"os"
	"testing"
)

// newUnixSocketPair returns a connected, loopback TCP pair for readiness
// tests on Windows, where the selector shard adapter only operates on
// socket handles (spec.md §4.2).
func newUnixSocketPair() (r, w *os.File, err error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, nil, err
	}
	defer ln.Close()

	acceptCh := make(chan net.Conn, 1)
	errCh := make(chan error, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			errCh <- err
			return
		}
		acceptCh <- c
	}()

	wc, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		return nil, nil, err
	}

	var rc net.Conn
	select {
	case rc = <-acceptCh:
	case err = <-errCh:
		wc.Close()
		return nil, nil, err
	}

	rf, err := rc.(*net.TCPConn).File()
	if err != nil {
		wc.Close()
		rc.Close()
		return nil, nil, err
	}
	wf, err := wc.(*net.TCPConn).File()
	if err != nil {
		rf.Close()
		wc.Close()
		rc.Close()
		return nil, nil, err
	}
	return rf, wf, nil
}

func mustSocketFd(t *testing.T, f *os.File) int {
	t.Helper()
	return int(f.Fd())
}
