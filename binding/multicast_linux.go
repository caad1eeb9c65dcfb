//go:build linux

package binding

import (
	"net"

	"golang.org/x/sys/unix"
)

// disableMulticastAllV4 clears IP_MULTICAST_ALL so this socket only
// receives traffic for groups it explicitly joined on the interface it is
// bound to, preventing N-way duplication when several bindings share a
// host. Linux-only; the option does not exist on other platforms.
func disableMulticastAllV4(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var opErr error
	err = raw.Control(func(fd uintptr) {
		opErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_MULTICAST_ALL, 0)
	})
	if err != nil {
		return err
	}
	return opErr
}

// disableMulticastAllV6 clears IPV6_MULTICAST_ALL for the same reason, on
// the IPv6 socket option family.
func disableMulticastAllV6(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var opErr error
	err = raw.Control(func(fd uintptr) {
		opErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_MULTICAST_ALL, 0)
	})
	if err != nil {
		return err
	}
	return opErr
}
