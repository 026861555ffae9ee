//go:build linux || darwin

package transport

import (
	"net"

	"golang.org/x/sys/unix"
)

func rawRead(fd int, buf []byte) (int, error) {
	return unix.Read(fd, buf)
}

func rawWrite(fd int, buf []byte) (int, error) {
	return unix.Write(fd, buf)
}

func setNonblock(fd int) error {
	return unix.SetNonblock(fd, true)
}

func closeFd(fd int) error {
	return unix.Close(fd)
}

func isEAGAIN(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK
}

func shutdownWrite(fd int) {
	_ = unix.Shutdown(fd, unix.SHUT_WR)
}

// validatePipeFd enforces spec.md §4.6's "Only pipes, sockets, and
// character devices are accepted" for pipe transports.
func validatePipeFd(fd int) error {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return err
	}
	switch st.Mode & unix.S_IFMT {
	case unix.S_IFIFO, unix.S_IFSOCK, unix.S_IFCHR:
		return nil
	default:
		return errNotPipeLike
	}
}

func recvfrom(fd int, buf []byte) (int, net.Addr, error) {
	n, from, err := unix.Recvfrom(fd, buf, 0)
	if err != nil {
		return 0, nil, err
	}
	if from == nil {
		return n, nil, nil
	}
	return n, sockaddrToAddr(from), nil
}

func sendto(fd int, buf []byte, addr net.Addr) (int, error) {
	udp, ok := addr.(*net.UDPAddr)
	if !ok || udp == nil {
		return 0, unix.EDESTADDRREQ
	}
	var sa unix.Sockaddr
	if ip4 := udp.IP.To4(); ip4 != nil {
		sa4 := &unix.SockaddrInet4{Port: udp.Port}
		copy(sa4.Addr[:], ip4)
		sa = sa4
	} else {
		sa6 := &unix.SockaddrInet6{Port: udp.Port}
		copy(sa6.Addr[:], udp.IP.To16())
		sa = sa6
	}
	return len(buf), unix.Sendto(fd, buf, 0, sa)
}

