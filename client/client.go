// Package client implements the SDDP client engine specialization and its
// search request: SEARCH emission, response parsing, filtering, and
// bounded collection.
package client

import (
	"fmt"
	"net"

	"github.com/control4/sddp/binding"
	"github.com/control4/sddp/engine"
	"github.com/control4/sddp/iface"
)

// Client is the SDDP client engine specialization: unicast-bound sockets,
// one per local interface IP, with no multicast group membership.
type Client struct {
	*engine.Engine
	group binding.Group
}

// New constructs a client with one send-only binding per address in
// addrs.
func New(addrs []iface.Addr, group binding.Group) (*Client, error) {
	c := &Client{
		Engine: engine.New(),
		group:  group,
	}
	for _, a := range addrs {
		b, err := binding.NewSendBinding(a)
		if err != nil {
			return nil, fmt.Errorf("client: binding %s: %w", a, err)
		}
		c.Engine.AddBinding(b)
	}
	return c, nil
}

// dest returns the client's multicast destination address.
func (c *Client) dest() *net.UDPAddr {
	return &net.UDPAddr{IP: c.group.IP, Port: c.group.Port}
}
