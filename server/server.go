// Package server implements the SDDP server engine specialization: the
// NOTIFY collector, SEARCH responder, and periodic advertiser tasks.
package server

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	sddp "github.com/control4/sddp"
	"github.com/control4/sddp/binding"
	"github.com/control4/sddp/engine"
	"github.com/control4/sddp/iface"
)

// DefaultMaxAge is the Max-Age (seconds) the server fills in when the
// advertisement datagram does not already carry one.
const DefaultMaxAge = 1800

// NotifyHandler is invoked, in registration order, for every valid NOTIFY
// ALIVE datagram the collector observes. Handlers run sequentially; an
// error propagates out of the collector task and fails the engine.
type NotifyHandler func(ctx context.Context, info *AdvertisementInfo) error

// AdvertisementInfo wraps a received NOTIFY datagram with receive-time
// metadata.
type AdvertisementInfo struct {
	Binding       *binding.Binding
	Src           string
	Datagram      *sddp.Datagram
	SDDPVersion   string
	MonotonicTime float64
	UTCTime       time.Time
}

// Server is the SDDP server engine specialization.
type Server struct {
	*engine.Engine

	advertisement     *sddp.Datagram
	advertiseInterval time.Duration

	mu             sync.Mutex
	notifyHandlers []NotifyHandler

	monotonicStart time.Time

	wg      sync.WaitGroup
	cancels []context.CancelFunc
}

// New constructs a server that will advertise advertisement on every
// binding. If advertisement has no Max-Age header, DefaultMaxAge (1800)
// is filled in. If advertiseInterval is zero, it defaults to two-thirds
// of Max-Age.
func New(addrs []iface.Addr, advertisement *sddp.Datagram, advertiseInterval time.Duration) (*Server, error) {
	adv := advertisement.Clone()
	if _, ok := adv.Headers().DecodedInt("Max-Age"); !ok {
		adv.Headers().SetInt("Max-Age", DefaultMaxAge)
	}
	if advertiseInterval <= 0 {
		maxAge, _ := adv.Headers().DecodedInt("Max-Age")
		advertiseInterval = time.Duration(maxAge) * 2 / 3 * time.Second
	}

	s := &Server{
		advertisement:     adv,
		advertiseInterval: advertiseInterval,
		monotonicStart:    time.Now(),
	}
	s.Engine = engine.New()
	s.Engine.FinishStart = s.finishStart
	s.Engine.WaitDependents = s.waitForDependentsDone

	for _, a := range addrs {
		b, err := binding.NewReceiveBinding(a, binding.DefaultGroup)
		if err != nil {
			return nil, fmt.Errorf("server: binding %s: %w", a, err)
		}
		s.Engine.AddBinding(b)
	}
	return s, nil
}

// OnNotify registers a handler invoked, in registration order, for every
// valid NOTIFY ALIVE datagram.
func (s *Server) OnNotify(h NotifyHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifyHandlers = append(s.notifyHandlers, h)
}

// Start launches the engine's receive loops and, via finishStart, the
// collector, responder, and (if advertiseInterval > 0) advertiser tasks.
func (s *Server) Start(ctx context.Context) error {
	return s.Engine.Start(ctx)
}

func (s *Server) finishStart(e *engine.Engine) error {
	taskCtx, cancel := context.WithCancel(context.Background())
	s.cancels = append(s.cancels, cancel)

	collectorSub, collectorRelease, err := e.Subscribe(engine.DefaultQueueCapacity)
	if err != nil {
		cancel()
		return err
	}
	responderSub, responderRelease, err := e.Subscribe(engine.DefaultQueueCapacity)
	if err != nil {
		collectorRelease()
		cancel()
		return err
	}

	s.wg.Add(2)
	go s.runCollector(taskCtx, collectorSub, collectorRelease)
	go s.runResponder(taskCtx, responderSub, responderRelease)

	if s.advertiseInterval > 0 {
		s.wg.Add(1)
		go s.runAdvertiser(taskCtx)
	}
	return nil
}

// waitForDependentsDone cancels the three tasks (in any order; order does
// not matter since cancellation is not an error) and awaits each. Errors
// from dependent tasks during shutdown are logged, not re-raised.
func (s *Server) waitForDependentsDone() {
	for _, cancel := range s.cancels {
		cancel()
	}
	s.wg.Wait()
}

func (s *Server) runCollector(ctx context.Context, sub *engine.Subscriber, release func()) {
	defer s.wg.Done()
	defer release()
	if err := s.collectorLoop(ctx, sub); err != nil {
		log.Printf("sddp: collector failed: %v", err)
		s.Engine.Fail(err)
	}
}

func (s *Server) runResponder(ctx context.Context, sub *engine.Subscriber, release func()) {
	defer s.wg.Done()
	defer release()
	s.responderLoop(ctx, sub)
}

func (s *Server) runAdvertiser(ctx context.Context) {
	defer s.wg.Done()
	s.advertiserLoop(ctx)
}
