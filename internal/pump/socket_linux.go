//go:build linux

package pump

import (
	"errors"
	"fmt"
	"net/netip"

	"golang.org/x/sys/unix"
)

// udpSocket is a nonblocking IPv4 UDP socket, built directly on
// golang.org/x/sys/unix the way the TUN device is, so both fds can be
// driven from the same unix.Poll call in the dispatch loop.
type udpSocket struct {
	fd int
}

// NewUDPSocket opens and binds a nonblocking UDP socket on 0.0.0.0:port.
func NewUDPSocket(port uint16) (Socket, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, unix.IPPROTO_UDP)
	if err != nil {
		return nil, fmt.Errorf("pump: create udp socket: %w", err)
	}

	shouldClose := true
	defer func() {
		if shouldClose {
			_ = unix.Close(fd)
		}
	}()

	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, fmt.Errorf("pump: set nonblocking: %w", err)
	}

	addr := unix.SockaddrInet4{Port: int(port)}
	if err := unix.Bind(fd, &addr); err != nil {
		return nil, fmt.Errorf("pump: bind :%d: %w", port, err)
	}

	shouldClose = false
	return &udpSocket{fd: fd}, nil
}

func (s *udpSocket) ReadFrom(buf []byte) (int, netip.AddrPort, error) {
	n, from, err := unix.Recvfrom(s.fd, buf, 0)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
			return 0, netip.AddrPort{}, nil
		}
		return 0, netip.AddrPort{}, err
	}
	sa4, ok := from.(*unix.SockaddrInet4)
	if !ok {
		return 0, netip.AddrPort{}, errors.New("pump: unexpected socket address family")
	}
	ap := netip.AddrPortFrom(netip.AddrFrom4(sa4.Addr), uint16(sa4.Port))
	return n, ap, nil
}

func (s *udpSocket) WriteTo(data []byte, to netip.AddrPort) (int, error) {
	addr := to.Addr().As4()
	sa := &unix.SockaddrInet4{Port: int(to.Port()), Addr: addr}
	if err := unix.Sendto(s.fd, data, 0, sa); err != nil {
		return 0, err
	}
	return len(data), nil
}

func (s *udpSocket) Close() error {
	return unix.Close(s.fd)
}

func (s *udpSocket) Fd() int {
	return s.fd
}
