// Package iface enumerates local unicast addresses and the default
// gateway: an ordered list of (ip, interface) pairs the core binds
// sockets against.
package iface

import (
	"net"
	"sort"
	"strings"

	"github.com/vishvananda/netlink"
)

// Addr is one local unicast address paired with the interface it belongs
// to.
type Addr struct {
	IP   net.IP
	Name string
}

// String renders "name(ip)" for logging.
func (a Addr) String() string {
	return a.Name + "(" + a.IP.String() + ")"
}

// Enumerate returns local unicast IPv4/IPv6 addresses ordered so that
// addresses on the default-gateway interface come first, then
// non-loopback before loopback, with IPv4 addresses beginning with
// "172." (common container-bridge ranges) demoted within their tier.
func Enumerate() ([]Addr, error) {
	gatewayIface := defaultGatewayInterface()

	ifs, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var addrs []Addr
	for _, it := range ifs {
		ifAddrs, err := it.Addrs()
		if err != nil {
			continue
		}
		for _, a := range ifAddrs {
			ip := addrIP(a)
			if ip == nil {
				continue
			}
			addrs = append(addrs, Addr{IP: ip, Name: it.Name})
		}
	}

	sort.SliceStable(addrs, func(i, j int) bool {
		return rank(addrs[i], gatewayIface) < rank(addrs[j], gatewayIface)
	})
	return addrs, nil
}

func addrIP(a net.Addr) net.IP {
	switch v := a.(type) {
	case *net.IPNet:
		return v.IP
	case *net.IPAddr:
		return v.IP
	}
	return nil
}

// rank computes a sort key: lower sorts first. Tier 0 is the
// default-gateway interface, tier 1 non-loopback, tier 2 loopback; within
// a tier, 172.* IPv4 addresses are demoted by adding 1.
func rank(a Addr, gatewayIface string) int {
	tier := 1
	if a.IP.IsLoopback() {
		tier = 2
	}
	if gatewayIface != "" && a.Name == gatewayIface {
		tier = 0
	}
	base := tier * 10
	if v4 := a.IP.To4(); v4 != nil && strings.HasPrefix(v4.String(), "172.") {
		base++
	}
	return base
}

// defaultGatewayInterface returns the name of the interface carrying the
// default route, or "" if it cannot be determined (e.g. non-Linux, no
// default route, or insufficient privilege). Built on
// github.com/vishvananda/netlink's route listing, the same library the
// teacher depends on directly.
func defaultGatewayInterface() string {
	routes, err := netlink.RouteList(nil, netlink.FAMILY_ALL)
	if err != nil {
		return ""
	}
	for _, r := range routes {
		if r.Dst != nil {
			continue // only the default route has a nil destination
		}
		link, err := netlink.LinkByIndex(r.LinkIndex)
		if err != nil {
			continue
		}
		return link.Attrs().Name
	}
	return ""
}
