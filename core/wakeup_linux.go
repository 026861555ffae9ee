//go:build linux

package core

import "golang.org/x/sys/unix"

// createWakeFds uses a single nonblocking eventfd as both ends of the
// self-pipe, grounded on eventloop/wakeup_linux.go.
func createWakeFds() (readFd, writeFd int, err error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return 0, 0, err
	}
	return fd, fd, nil
}

func writeWakeByte(writeFd int) {
	var buf [8]byte
	buf[7] = 1
	_, _ = unix.Write(writeFd, buf[:])
}

func drainWakeFd(readFd int) {
	var buf [8]byte
	for {
		if _, err := unix.Read(readFd, buf[:]); err != nil {
			return
		}
	}
}

func closeWakeFds(readFd, writeFd int) {
	_ = unix.Close(readFd)
}
