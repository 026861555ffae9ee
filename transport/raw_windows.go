//go:build windows

package transport

import (
	"net"

	"golang.org/x/sys/windows"
)

func rawRead(fd int, buf []byte) (int, error) {
	return windows.Recv(windows.Handle(fd), buf, 0)
}

func rawWrite(fd int, buf []byte) (int, error) {
	return windows.Send(windows.Handle(fd), buf, 0)
}

func setNonblock(fd int) error {
	return windows.SetNonblock(windows.Handle(fd), true)
}

func closeFd(fd int) error {
	return windows.Closesocket(windows.Handle(fd))
}

func isEAGAIN(err error) bool {
	return err == windows.WSAEWOULDBLOCK
}

func shutdownWrite(fd int) {
	_ = windows.Shutdown(windows.Handle(fd), windows.SHUT_WR)
}

// validatePipeFd is a no-op on Windows: named pipes and sockets don't share
// POSIX's S_IF* mode bits, and this port's Windows pipe transports are
// expected to be used only with handles the caller already knows are
// pipe-like (see the Windows selector's own documented compromises).
func validatePipeFd(fd int) error {
	return nil
}

func recvfrom(fd int, buf []byte) (int, net.Addr, error) {
	n, from, err := windows.Recvfrom(windows.Handle(fd), buf, 0)
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
		return 0, windows.WSAEDESTADDRREQ
	}
	var sa windows.Sockaddr
	if ip4 := udp.IP.To4(); ip4 != nil {
		sa4 := &windows.SockaddrInet4{Port: udp.Port}
		copy(sa4.Addr[:], ip4)
		sa = sa4
	} else {
		sa6 := &windows.SockaddrInet6{Port: udp.Port}
		copy(sa6.Addr[:], udp.IP.To16())
		sa = sa6
	}
	return len(buf), windows.Sendto(windows.Handle(fd), buf, 0, sa)
}

