//go:build windows

package transport

import (
	"net"

	"golang.org/x/sys/windows"
)

func rawSocket(addr *net.TCPAddr) (int, windows.Sockaddr, error) {
	family := windows.AF_INET
	var sa windows.Sockaddr
	if ip4 := addr.IP.To4(); ip4 != nil {
		sa4 := &windows.SockaddrInet4{Port: addr.Port}
		copy(sa4.Addr[:], ip4)
		sa = sa4
	} else {
		family = windows.AF_INET6
		sa6 := &windows.SockaddrInet6{Port: addr.Port}
		copy(sa6.Addr[:], addr.IP.To16())
		sa = sa6
	}
	fd, err := windows.Socket(family, windows.SOCK_STREAM, windows.IPPROTO_TCP)
	if err != nil {
		return 0, nil, err
	}
	if err := windows.SetNonblock(fd, true); err != nil {
		windows.Closesocket(fd)
		return 0, nil, err
	}
	return int(fd), sa, nil
}

func connectSocket(fd int, sa windows.Sockaddr) error {
	return windows.Connect(windows.Handle(fd), sa)
}

func isInProgress(err error) bool {
	return err == windows.WSAEWOULDBLOCK
}

func socketError(fd int) error {
	errno, err := windows.GetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_ERROR)
	if err != nil {
		return err
	}
	if errno != 0 {
		return windows.Errno(errno)
	}
	return nil
}

func localAddr(fd int) net.Addr {
	sa, err := windows.Getsockname(windows.Handle(fd))
	if err != nil {
		return nil
	}
	return sockaddrToAddr(sa)
}

func remoteAddr(fd int) net.Addr {
	sa, err := windows.Getpeername(windows.Handle(fd))
	if err != nil {
		return nil
	}
	return sockaddrToAddr(sa)
}

func sockaddrToAddr(sa windows.Sockaddr) net.Addr {
	switch s := sa.(type) {
	case *windows.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(s.Addr[:]), Port: s.Port}
	case *windows.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(s.Addr[:]), Port: s.Port}
	default:
		return nil
	}
}
