package engine

import (
	"context"
	"errors"
	"log"
	"net"
	"sync"

	sddp "github.com/control4/sddp"
	"github.com/control4/sddp/binding"
	"github.com/control4/sddp/metrics"
)

// ErrClosed is returned by operations attempted after the engine has
// already completed.
var ErrClosed = errors.New("sddp/engine: engine already stopped")

// Verbose gates the engine's debug-level logging (malformed datagrams and
// subscriber backpressure drops); the CLI's -log-level flag controls it.
var Verbose bool

// FinishStartFunc is invoked once, after bindings are created and
// transports are live, so a specialization (server) can launch its
// background tasks.
type FinishStartFunc func(e *Engine) error

// WaitDependentsFunc is invoked during WaitForDone, after the engine's
// final result completes, so a specialization can cancel and await its
// background tasks.
type WaitDependentsFunc func()

// Engine owns a set of bindings and fans received datagrams out to
// subscribers. It is embedded (via composition) by the server and client
// specializations, which supply FinishStart/WaitDependents hooks.
type Engine struct {
	mu          sync.Mutex
	bindings    []*binding.Binding
	subscribers map[*Subscriber]struct{}
	closed      bool

	finalOnce sync.Once
	finalErr  error
	finalDone chan struct{}

	recvWG sync.WaitGroup

	FinishStart    FinishStartFunc
	WaitDependents WaitDependentsFunc
}

// New returns an unstarted Engine with no bindings.
func New() *Engine {
	return &Engine{
		subscribers: make(map[*Subscriber]struct{}),
		finalDone:   make(chan struct{}),
	}
}

// AddBinding registers a binding with the engine. Must be called before
// Start.
func (e *Engine) AddBinding(b *binding.Binding) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b.Index = len(e.bindings)
	e.bindings = append(e.bindings, b)
}

// Bindings returns the engine's bindings in attachment order.
func (e *Engine) Bindings() []*binding.Binding {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*binding.Binding, len(e.bindings))
	copy(out, e.bindings)
	return out
}

// Start launches the receive loop for every binding, then invokes
// FinishStart if set.
func (e *Engine) Start(ctx context.Context) error {
	for _, b := range e.Bindings() {
		e.recvWG.Add(1)
		go e.receiveLoop(b)
	}
	if e.FinishStart != nil {
		return e.FinishStart(e)
	}
	return nil
}

// Subscribe registers a new subscriber and returns it along with a
// release function that deregisters it. Callers must defer release() so
// deregistration happens on every exit path (success, panic via recover
// in caller, or early return).
func (e *Engine) Subscribe(capacity int) (*Subscriber, func(), error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, nil, ErrClosed
	}
	s := newSubscriber(capacity)
	e.subscribers[s] = struct{}{}
	release := func() {
		e.mu.Lock()
		_, present := e.subscribers[s]
		delete(e.subscribers, s)
		e.mu.Unlock()
		if present {
			// Voluntary teardown completes with success.
			s.markEOF(nil)
		}
	}
	return s, release, nil
}

// deliver decodes raw bytes received on b from src and fans the resulting
// datagram out to every subscriber, non-blocking. A decode failure drops
// the packet and is not fatal. Decode failures and full-queue drops are
// counted in metrics but logged only when Verbose is set; they are not
// logged at any other level.
func (e *Engine) deliver(b *binding.Binding, src *net.UDPAddr, raw []byte) {
	dgram, err := sddp.ParseDatagram(raw)
	if err != nil {
		if Verbose {
			log.Printf("sddp: dropping malformed datagram from %s on %s: %v", src, b.Name, err)
		}
		metrics.MalformedDatagramsDropped.Inc()
		return
	}
	metrics.DatagramsReceived.WithLabelValues(b.Name).Inc()

	e.mu.Lock()
	subs := make([]*Subscriber, 0, len(e.subscribers))
	for s := range e.subscribers {
		subs = append(subs, s)
	}
	e.mu.Unlock()

	r := Received{Binding: b, Src: src, Datagram: dgram}
	for _, s := range subs {
		if !s.tryDeliver(r) {
			if Verbose {
				log.Printf("sddp: subscriber queue full, dropping datagram from %s on %s", src, b.Name)
			}
			metrics.SubscriberDrops.Inc()
		}
	}
}

// receiveLoop reads datagrams from b until it is closed. A read error
// after deliberate closure (engine shutdown) is treated as clean
// end-of-stream; any other read error is a transport error and is
// terminal for the engine.
func (e *Engine) receiveLoop(b *binding.Binding) {
	defer e.recvWG.Done()
	buf := make([]byte, 65536)
	for {
		n, src, err := b.ReadFrom(buf)
		if err != nil {
			if e.isShuttingDown() {
				return
			}
			e.Fail(err)
			return
		}
		raw := make([]byte, n)
		copy(raw, buf[:n])
		e.deliver(b, src, raw)
	}
}

func (e *Engine) isShuttingDown() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// setFinal sets the engine's final result at most once and propagates
// end-of-stream to every current subscriber. The transition is monotonic:
// once set, it never changes.
func (e *Engine) setFinal(err error) {
	e.finalOnce.Do(func() {
		e.mu.Lock()
		e.finalErr = err
		e.closed = true
		subs := make([]*Subscriber, 0, len(e.subscribers))
		for s := range e.subscribers {
			subs = append(subs, s)
		}
		e.mu.Unlock()

		for _, b := range e.Bindings() {
			b.Close()
		}
		for _, s := range subs {
			s.markEOF(err)
		}
		close(e.finalDone)
	})
}

// Stop closes all transports, which terminates the receive loops and
// leads to a clean (no-error) final result, unless a transport error
// already set a terminal one.
func (e *Engine) Stop() {
	e.setFinal(nil)
}

// Fail sets the engine's final result to a terminal error, closing all
// transports and notifying subscribers of end-of-stream with that error.
func (e *Engine) Fail(err error) {
	e.setFinal(err)
}

// WaitForDone blocks until the final result completes, then invokes
// WaitDependents if set.
func (e *Engine) WaitForDone() error {
	<-e.finalDone
	if e.WaitDependents != nil {
		e.WaitDependents()
	}
	e.recvWG.Wait()
	return e.finalErr
}

// Done returns a channel closed once the final result completes.
func (e *Engine) Done() <-chan struct{} {
	return e.finalDone
}
