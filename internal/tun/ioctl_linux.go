//go:build linux

package tun

import "golang.org/x/sys/unix"

// ioctlCommander abstracts the TUNSETIFF syscall so tests can substitute a
// fake without a real /dev/net/tun (which requires CAP_NET_ADMIN).
type ioctlCommander interface {
	Ioctl(fd uintptr, request uintptr, arg uintptr) (uintptr, uintptr, unix.Errno)
}

type syscallIoctlCommander struct{}

func (syscallIoctlCommander) Ioctl(fd, request, arg uintptr) (uintptr, uintptr, unix.Errno) {
	return unix.Syscall(unix.SYS_IOCTL, fd, request, arg)
}

// defaultCommander and openFile are package-level seams tests override;
// production code always uses the real syscall and os.OpenFile.
var (
	defaultCommander ioctlCommander = syscallIoctlCommander{}
)
