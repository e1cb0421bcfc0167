//go:build linux

package tun

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"runtime"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"

	"wolfnet/internal/iproute"
)

const tunPath = "/dev/net/tun"

// openFile is a seam over os.OpenFile for tests.
var openFile = os.OpenFile

// ErrTunOpenFailed and ErrTunIoctlFailed classify startup failures per the
// error kinds enumerated in the design (TunOpenFailed / TunIoctlFailed).
var (
	ErrTunOpenFailed  = errors.New("tun: open failed")
	ErrTunIoctlFailed = errors.New("tun: TUNSETIFF ioctl failed")
)

// linuxDevice is the nonblocking Linux TUN implementation.
type linuxDevice struct {
	fd   int
	name string
}

// Open creates a TUN interface named name (IFF_TUN|IFF_NO_PI) and puts its
// fd into nonblocking mode. On any failure after the open succeeds, the fd
// is closed before the error is returned.
//
// The *os.File returned by openFile installs a finalizer that closes its fd
// once the File becomes unreachable; since Open only ever hands back the
// bare int fd, it dups the fd so the returned linuxDevice owns its lifetime
// independently of f, then closes f itself rather than let the finalizer
// race the running pump.
func Open(name string) (Device, error) {
	f, err := openFile(tunPath, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrTunOpenFailed, tunPath, err)
	}

	shouldClose := true
	defer func() {
		if shouldClose {
			_ = f.Close()
		}
	}()

	var req ifReq
	copy(req.Name[:], name)
	req.Flags = iffTun | iffNoPI

	_, _, errno := defaultCommander.Ioctl(f.Fd(), uintptr(tunSetIff), uintptr(unsafe.Pointer(&req)))
	if errno != 0 {
		return nil, fmt.Errorf("%w: %s: %v", ErrTunIoctlFailed, name, errno)
	}

	actualName := strings.TrimRight(string(req.Name[:]), "\x00")
	if actualName == "" {
		actualName = name
	}

	dupFd, err := unix.Dup(int(f.Fd()))
	if err != nil {
		return nil, fmt.Errorf("%w: dup: %v", ErrTunIoctlFailed, err)
	}
	if err := unix.SetNonblock(dupFd, true); err != nil {
		_ = unix.Close(dupFd)
		return nil, fmt.Errorf("%w: set nonblocking: %v", ErrTunIoctlFailed, err)
	}

	shouldClose = false
	_ = f.Close()
	runtime.KeepAlive(f)
	return &linuxDevice{fd: dupFd, name: actualName}, nil
}

// Read implements Device. On EWOULDBLOCK it returns (0, nil) per the
// nonblocking contract; any other syscall error is surfaced directly.
func (d *linuxDevice) Read(buf []byte) (int, error) {
	n, err := unix.Read(d.fd, buf)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

// Write implements Device. Short writes are the caller's concern.
func (d *linuxDevice) Write(data []byte) (int, error) {
	return unix.Write(d.fd, data)
}

func (d *linuxDevice) Close() error {
	return unix.Close(d.fd)
}

func (d *linuxDevice) Name() string {
	return d.name
}

func (d *linuxDevice) Fd() int {
	return d.fd
}

// Configure assigns addr, sets mtu and brings the interface up, using the
// host "ip" utility via ipw. Address and link-up failures are fatal; an MTU
// failure is logged by the caller as a warning and otherwise ignored.
func Configure(ipw *iproute.Wrapper, name string, addr netip.Prefix, mtu int) (mtuErr error, fatalErr error) {
	if err := ipw.AddrAdd(name, addr); err != nil {
		return nil, err
	}
	mtuErr = ipw.SetMTU(name, mtu)
	if err := ipw.LinkUp(name); err != nil {
		return mtuErr, err
	}
	return mtuErr, nil
}
