package server

import (
	"context"
	"testing"
	"time"

	sddp "github.com/control4/sddp"
)

// TestDefaultMaxAgeAndInterval verifies Max-Age absent on server init
// defaults to 1800, and advertiseInterval defaults to two-thirds of
// Max-Age when not explicitly set.
func TestDefaultMaxAgeAndInterval(t *testing.T) {
	adv := sddp.NewDatagram(sddp.BuildNotifyAliveStatement(1, 0), nil, nil)
	srv, err := New(nil, adv, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	maxAge, ok := srv.advertisement.Headers().DecodedInt("Max-Age")
	if !ok || maxAge != DefaultMaxAge {
		t.Fatalf("got Max-Age %d, %v, want %d", maxAge, ok, DefaultMaxAge)
	}
	wantInterval := time.Duration(DefaultMaxAge) * 2 / 3 * time.Second
	if srv.advertiseInterval != wantInterval {
		t.Fatalf("got interval %v, want %v", srv.advertiseInterval, wantInterval)
	}
}

// TestExplicitMaxAgePreserved verifies an explicitly set Max-Age is not
// overwritten and that an explicit advertise interval overrides the
// computed default.
func TestExplicitMaxAgePreserved(t *testing.T) {
	h := sddp.NewHeaders()
	h.SetInt("Max-Age", 60)
	adv := sddp.NewDatagram(sddp.BuildNotifyAliveStatement(1, 0), h, nil)
	srv, err := New(nil, adv, 1*time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	maxAge, _ := srv.advertisement.Headers().DecodedInt("Max-Age")
	if maxAge != 60 {
		t.Fatalf("got Max-Age %d, want 60", maxAge)
	}
	if srv.advertiseInterval != 1*time.Second {
		t.Fatalf("got interval %v, want 1s", srv.advertiseInterval)
	}
}

// TestResponderCopyRewrite repeats the responder's copy-and-rewrite steps
// inline, without a socket and without calling responderLoop: it checks
// that the stored advertisement carries no From header, and that a copy
// rewritten to a 200 response keeps its Type header.
func TestResponderCopyRewrite(t *testing.T) {
	h := sddp.NewHeaders()
	h.SetString("Type", "acme:X")
	adv := sddp.NewDatagram(sddp.BuildNotifyAliveStatement(1, 0), h, nil)
	srv, err := New(nil, adv, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	resp := srv.advertisement.Clone()
	resp.SetStatement(sddp.BuildResponseStatement("SDDP", 1, 0, 200, "OK"))
	if _, present := resp.Headers().Raw("From"); present {
		t.Fatalf("From should not be present before defaulting")
	}
	resp.Headers().SetString("From", "192.168.1.5:1902")

	if resp.Statement() != "SDDP/1.0 200 OK" {
		t.Fatalf("got statement %q", resp.Statement())
	}
	typ, _ := resp.Headers().DecodedString("Type")
	if typ != "acme:X" {
		t.Fatalf("got Type %q", typ)
	}
}

// TestCollectorLoopEndsOnEOF verifies collectorLoop returns the engine's
// terminal error (nil on clean shutdown) once its subscriber reaches
// end-of-stream.
func TestCollectorLoopEndsOnEOF(t *testing.T) {
	adv := sddp.NewDatagram(sddp.BuildNotifyAliveStatement(1, 0), nil, nil)
	srv, err := New(nil, adv, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sub, release, err := srv.Engine.Subscribe(10)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	done := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		done <- srv.collectorLoop(ctx, sub)
	}()

	release() // end-of-stream with success, unblocking the loop
	if err := <-done; err != nil {
		t.Fatalf("collectorLoop: %v", err)
	}
}

// TestNotifyHandlersRegisteredInOrder verifies OnNotify preserves
// registration order, matching the sequential-invocation guarantee
// collectorLoop relies on.
func TestNotifyHandlersRegisteredInOrder(t *testing.T) {
	adv := sddp.NewDatagram(sddp.BuildNotifyAliveStatement(1, 0), nil, nil)
	srv, err := New(nil, adv, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var order []int
	srv.OnNotify(func(ctx context.Context, info *AdvertisementInfo) error {
		order = append(order, 1)
		return nil
	})
	srv.OnNotify(func(ctx context.Context, info *AdvertisementInfo) error {
		order = append(order, 2)
		return nil
	})

	srv.mu.Lock()
	handlers := append([]NotifyHandler(nil), srv.notifyHandlers...)
	srv.mu.Unlock()
	for _, h := range handlers {
		if err := h(context.Background(), &AdvertisementInfo{}); err != nil {
			t.Fatalf("handler: %v", err)
		}
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("got order %v, want [1 2]", order)
	}
}
