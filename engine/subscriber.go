// Package engine implements the multicast datagram engine: binding
// ownership, the receive loop, subscriber fan-out with bounded queues and
// backpressure, and the one-shot completion signal shared by the server
// and client specializations.
package engine

import (
	"net"
	"sync"

	"github.com/control4/sddp/binding"

	sddp "github.com/control4/sddp"
)

// DefaultQueueCapacity is the default bounded queue size for a subscriber.
const DefaultQueueCapacity = 1000

// Received is one (binding, source address, datagram) tuple delivered to a
// subscriber.
type Received struct {
	Binding  *binding.Binding
	Src      *net.UDPAddr
	Datagram *sddp.Datagram
}

// Subscriber is a bounded FIFO queue of Received tuples plus a one-shot
// end-of-stream completion.
type Subscriber struct {
	queue chan Received

	mu       sync.Mutex
	eof      bool
	eofErr   error
	eofCh    chan struct{}
}

func newSubscriber(capacity int) *Subscriber {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Subscriber{
		queue: make(chan Received, capacity),
		eofCh: make(chan struct{}),
	}
}

// tryDeliver attempts a non-blocking enqueue. It reports false if the
// queue was full, in which case the caller (the engine's receive loop)
// drops the datagram for this subscriber only.
func (s *Subscriber) tryDeliver(r Received) bool {
	select {
	case s.queue <- r:
		return true
	default:
		return false
	}
}

// markEOF marks end-of-stream, optionally carrying a terminal error. Safe
// to call more than once; only the first call has effect, mirroring the
// engine's own final result, which is likewise set at most once.
func (s *Subscriber) markEOF(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eof {
		return
	}
	s.eof = true
	s.eofErr = err
	close(s.eofCh)
}

// Receive returns the next Received tuple, or (Received{}, nil, false)
// once the queue is drained and end-of-stream has been signaled. A
// terminal error delivered by the engine is returned only after the queue
// has been fully drained.
func (s *Subscriber) Receive() (Received, error, bool) {
	// Prefer a queued item even if EOF has already fired, so the queue is
	// always fully drained before EOF/error is surfaced.
	select {
	case r := <-s.queue:
		return r, nil, true
	default:
	}

	select {
	case r := <-s.queue:
		return r, nil, true
	case <-s.eofCh:
		select {
		case r := <-s.queue:
			return r, nil, true
		default:
			return Received{}, s.Err(), false
		}
	}
}

// Iterate returns a channel yielding Received tuples until end-of-stream,
// for callers that prefer range-over-channel to polling Receive. The
// channel is closed after end-of-stream; any terminal error must still be
// retrieved via Err().
func (s *Subscriber) Iterate() <-chan Received {
	out := make(chan Received)
	go func() {
		defer close(out)
		for {
			r, _, ok := s.Receive()
			if !ok {
				return
			}
			out <- r
		}
	}()
	return out
}

// Err returns the terminal error the engine delivered, if any, once
// end-of-stream has been reached. It is safe to call at any time; it
// returns nil before end-of-stream and when shutdown was clean.
func (s *Subscriber) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eofErr
}
