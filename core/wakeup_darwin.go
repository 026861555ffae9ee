//go:build darwin

package core

import "golang.org/x/sys/unix"

// createWakeFds uses a real pipe(2), grounded on eventloop/wakeup_darwin.go
// (Darwin has no eventfd equivalent).
func createWakeFds() (readFd, writeFd int, err error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		return 0, 0, err
	}
	return fds[0], fds[1], nil
}

func writeWakeByte(writeFd int) {
	var buf [1]byte
	_, _ = unix.Write(writeFd, buf[:])
}

func drainWakeFd(readFd int) {
	var buf [64]byte
	for {
		if _, err := unix.Read(readFd, buf[:]); err != nil {
			return
		}
	}
}

func closeWakeFds(readFd, writeFd int) {
	_ = unix.Close(readFd)
	_ = unix.Close(writeFd)
}
