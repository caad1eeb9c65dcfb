package server

import (
	"context"
	"strconv"
	"time"

	sddp "github.com/control4/sddp"
	"github.com/control4/sddp/engine"
	"github.com/control4/sddp/metrics"
)

// recvOrDone waits for the next subscriber item or ctx cancellation,
// whichever comes first, so the server's background tasks can be
// cancelled promptly during shutdown.
func recvOrDone(ctx context.Context, sub *engine.Subscriber) (engine.Received, error, bool) {
	type result struct {
		r   engine.Received
		err error
		ok  bool
	}
	ch := make(chan result, 1)
	go func() {
		r, err, ok := sub.Receive()
		ch <- result{r, err, ok}
	}()
	select {
	case res := <-ch:
		return res.r, res.err, res.ok
	case <-ctx.Done():
		return engine.Received{}, nil, false
	}
}

// collectorLoop matches NOTIFY datagrams against
// `^NOTIFY +ALIVE +SDDP/<M>.<m>` and invokes every registered handler in
// registration order. A handler error fails the collector task (and thus
// the engine); shutdown cancellation is not an error.
func (s *Server) collectorLoop(ctx context.Context, sub *engine.Subscriber) error {
	for {
		r, err, ok := recvOrDone(ctx, sub)
		if !ok {
			return err
		}

		major, _, valid := r.Datagram.NotifyAliveVersion()
		if !valid || major < 1 {
			continue
		}

		info := &AdvertisementInfo{
			Binding:       r.Binding,
			Src:           r.Src.String(),
			Datagram:      r.Datagram,
			SDDPVersion:   sddpVersionString(r.Datagram),
			MonotonicTime: time.Since(s.monotonicStart).Seconds(),
			UTCTime:       time.Now().UTC(),
		}

		s.mu.Lock()
		handlers := make([]NotifyHandler, len(s.notifyHandlers))
		copy(handlers, s.notifyHandlers)
		s.mu.Unlock()

		for _, h := range handlers {
			metrics.NotifyHandlerInvocations.Inc()
			if err := h(ctx, info); err != nil {
				return err
			}
		}
	}
}

func sddpVersionString(d *sddp.Datagram) string {
	major, minor, ok := d.NotifyAliveVersion()
	if !ok {
		return ""
	}
	return strconv.Itoa(major) + "." + strconv.Itoa(minor)
}
