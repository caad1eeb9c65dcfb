package server

import (
	"context"
	"log"

	sddp "github.com/control4/sddp"
	"github.com/control4/sddp/engine"
	"github.com/control4/sddp/metrics"
)

// responderLoop matches SEARCH datagrams against
// `^SEARCH +<pattern> +(HTTP|SDDP)/<M>.<m>` and answers every valid one
// with a copy of the server's advertisement datagram, regardless of the
// requested pattern: servers always respond. Malformed or unsupported
// versions are silently ignored.
func (s *Server) responderLoop(ctx context.Context, sub *engine.Subscriber) {
	for {
		r, _, ok := recvOrDone(ctx, sub)
		if !ok {
			return
		}

		_, proto, major, minor, valid := r.Datagram.SearchFields()
		if !valid || major < 1 {
			continue
		}

		resp := s.advertisement.Clone()
		resp.SetStatement(sddp.BuildResponseStatement(proto, major, minor, 200, "OK"))
		if _, present := resp.Headers().Raw("From"); !present {
			resp.Headers().SetString("From", r.Binding.UnicastAddr.String())
		}

		data := resp.Bytes()
		if _, err := r.Binding.Send(r.Src, data); err != nil {
			log.Printf("sddp: responder: send to %s on %s: %v", r.Src, r.Binding.Name, err)
			continue
		}
		metrics.DatagramsSent.WithLabelValues("responder").Inc()
		metrics.SearchResponsesSent.Inc()
	}
}
