//go:build windows

package binding

import (
	"golang.org/x/sys/windows"
)

// setReuseAddrPort enables SO_REUSEADDR only; SO_REUSEPORT is not set on
// Windows/Cygwin.
func setReuseAddrPort(fd uintptr) error {
	return windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_REUSEADDR, 1)
}
