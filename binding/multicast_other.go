//go:build !linux

package binding

import "net"

// disableMulticastAllV4 is a no-op on non-Linux platforms: IP_MULTICAST_ALL
// is a Linux-specific socket option.
func disableMulticastAllV4(conn *net.UDPConn) error { return nil }

// disableMulticastAllV6 is a no-op on non-Linux platforms.
func disableMulticastAllV6(conn *net.UDPConn) error { return nil }
