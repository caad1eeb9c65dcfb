package server

import (
	"context"
	"log"
	"net"
	"time"

	"github.com/control4/sddp/binding"
	"github.com/control4/sddp/metrics"
)

// advertiserLoop sends a NOTIFY ALIVE advertisement on every binding,
// then waits up to advertiseInterval (or until shutdown) before
// repeating. It only runs when advertiseInterval > 0.
func (s *Server) advertiserLoop(ctx context.Context) {
	dest := &net.UDPAddr{IP: binding.DefaultGroup.IP, Port: binding.DefaultGroup.Port}
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.advertiseOnce(dest)
			timer.Reset(s.advertiseInterval)
		}
	}
}

func (s *Server) advertiseOnce(dest *net.UDPAddr) {
	for _, b := range s.Engine.Bindings() {
		msg := s.advertisement.Clone()
		if _, present := msg.Headers().Raw("From"); !present {
			msg.Headers().SetString("From", b.UnicastAddr.String())
		}
		if _, err := b.Send(dest, msg.Bytes()); err != nil {
			log.Printf("sddp: advertiser: send on %s: %v", b.Name, err)
			continue
		}
		metrics.DatagramsSent.WithLabelValues("advertiser").Inc()
	}
}
