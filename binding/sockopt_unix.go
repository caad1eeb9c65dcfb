//go:build !windows

package binding

import (
	"golang.org/x/sys/unix"
)

// setReuseAddrPort enables SO_REUSEADDR and, on every platform except
// Windows/Cygwin, SO_REUSEPORT, so that multiple bindings on the same host
// can share the multicast receive port.
func setReuseAddrPort(fd uintptr) error {
	if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return err
	}
	return unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
}
