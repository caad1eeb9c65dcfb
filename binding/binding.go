// Package binding implements one UDP socket bound to one local network
// interface: multicast group join for receive bindings, ephemeral-port
// unicast sockets for send-only (client) bindings, and platform quirks
// (SO_REUSEPORT except on Windows/Cygwin, IP_MULTICAST_ALL disabled only
// on Linux).
package binding

import (
	"context"
	"fmt"
	"net"
	"sync"
	"syscall"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/control4/sddp/iface"
)

// Binding is one OS socket attached to one local interface.
type Binding struct {
	mu sync.Mutex

	// Index is assigned on attachment to an engine; -1 until attached.
	Index int

	// UnicastAddr is the specific interface IP and port associated with
	// this binding, distinct from the wildcard address it may be bound to
	// for multicast receive.
	UnicastAddr *net.UDPAddr

	// Name is a display name for logging: the interface name, e.g. "eth0".
	Name string

	conn    *net.UDPConn
	pconn4  *ipv4.PacketConn
	pconn6  *ipv6.PacketConn
	closed  bool
}

// Group is the SDDP multicast destination: group IP and port.
type Group struct {
	IP   net.IP
	Port int
}

// DefaultGroup is the SDDP default multicast group, 239.255.255.250:1902.
var DefaultGroup = Group{IP: net.ParseIP("239.255.255.250"), Port: 1902}

// NewReceiveBinding creates a socket bound to the wildcard address on
// group.Port and joins group on local's interface, so it receives
// multicast traffic for that group arriving on that interface. On Linux,
// IP_MULTICAST_ALL/IPV6_MULTICAST_ALL is disabled so that a host running
// several bindings is not delivered each packet once per binding.
func NewReceiveBinding(local iface.Addr, group Group) (*Binding, error) {
	isV6 := local.IP.To4() == nil
	network := "udp4"
	wildcard := "0.0.0.0"
	if isV6 {
		network = "udp6"
		wildcard = "::"
	}

	lc := net.ListenConfig{Control: controlReuseAddrPort}
	pc, err := lc.ListenPacket(context.Background(), network, fmt.Sprintf("%s:%d", wildcard, group.Port))
	if err != nil {
		return nil, fmt.Errorf("binding: listen on %s: %w", local.Name, err)
	}
	udpConn := pc.(*net.UDPConn)

	b := &Binding{
		Index: -1,
		UnicastAddr: &net.UDPAddr{
			IP:   local.IP,
			Port: group.Port,
		},
		Name: local.Name,
		conn: udpConn,
	}

	ifi, err := net.InterfaceByName(local.Name)
	if err != nil {
		udpConn.Close()
		return nil, fmt.Errorf("binding: interface %s: %w", local.Name, err)
	}

	if isV6 {
		p6 := ipv6.NewPacketConn(udpConn)
		if err := disableMulticastAllV6(udpConn); err != nil {
			udpConn.Close()
			return nil, err
		}
		if err := p6.JoinGroup(ifi, &net.UDPAddr{IP: group.IP}); err != nil {
			udpConn.Close()
			return nil, fmt.Errorf("binding: join group on %s: %w", local.Name, err)
		}
		b.pconn6 = p6
	} else {
		p4 := ipv4.NewPacketConn(udpConn)
		if err := disableMulticastAllV4(udpConn); err != nil {
			udpConn.Close()
			return nil, err
		}
		if err := p4.JoinGroup(ifi, &net.UDPAddr{IP: group.IP}); err != nil {
			udpConn.Close()
			return nil, fmt.Errorf("binding: join group on %s: %w", local.Name, err)
		}
		b.pconn4 = p4
	}

	return b, nil
}

// NewSendBinding creates a unicast-only socket bound to local's IP on an
// ephemeral port, with no multicast group membership: the client creates
// one such binding per local interface IP.
func NewSendBinding(local iface.Addr) (*Binding, error) {
	network := "udp4"
	if local.IP.To4() == nil {
		network = "udp6"
	}
	addr := &net.UDPAddr{IP: local.IP, Port: 0}
	conn, err := net.ListenUDP(network, addr)
	if err != nil {
		return nil, fmt.Errorf("binding: listen on %s: %w", local.Name, err)
	}
	return &Binding{
		Index:       -1,
		UnicastAddr: conn.LocalAddr().(*net.UDPAddr),
		Name:        local.Name,
		conn:        conn,
	}, nil
}

// Send transmits data to dest on this binding's socket; the caller
// selects the multicast or unicast destination.
func (b *Binding) Send(dest *net.UDPAddr, data []byte) (int, error) {
	return b.conn.WriteToUDP(data, dest)
}

// ReadFrom reads the next datagram arriving on this binding.
func (b *Binding) ReadFrom(buf []byte) (int, *net.UDPAddr, error) {
	n, addr, err := b.conn.ReadFromUDP(buf)
	return n, addr, err
}

// Close closes the underlying socket. Closing during a blocked ReadFrom
// causes it to return an error, which the engine's receive loop treats as
// clean shutdown when the binding was closed deliberately.
func (b *Binding) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.conn.Close()
}

// LocalIP returns the interface IP this binding is attached to.
func (b *Binding) LocalIP() net.IP {
	return b.UnicastAddr.IP
}

// LocalPort returns the port of this binding's unicast address (the
// ephemeral send port for send bindings, or the multicast group port for
// receive bindings).
func (b *Binding) LocalPort() int {
	return b.UnicastAddr.Port
}

func controlReuseAddrPort(network, address string, c syscall.RawConn) error {
	var opErr error
	err := c.Control(func(fd uintptr) {
		opErr = setReuseAddrPort(fd)
	})
	if err != nil {
		return err
	}
	return opErr
}
