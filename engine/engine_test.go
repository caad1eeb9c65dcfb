package engine

import (
	"testing"

	sddp "github.com/control4/sddp"
	"github.com/control4/sddp/binding"
)

func mustDatagram(t *testing.T, statement string) []byte {
	t.Helper()
	return sddp.NewDatagram(statement, nil, nil).Bytes()
}

// TestSubscriberBackpressureDrop verifies a subscriber with queue
// capacity 1 and no reader sees one of two back-to-back datagrams
// dropped, while a subscriber with capacity >= 2 receives both.
func TestSubscriberBackpressureDrop(t *testing.T) {
	e := New()
	smallSub, smallRelease, err := e.Subscribe(1)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer smallRelease()
	bigSub, bigRelease, err := e.Subscribe(2)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer bigRelease()

	b := &binding.Binding{Name: "test0"}
	raw1 := mustDatagram(t, "NOTIFY ALIVE SDDP/1.0")
	raw2 := mustDatagram(t, "SEARCH * SDDP/1.0")

	e.deliver(b, nil, raw1)
	e.deliver(b, nil, raw2)

	// bigSub must have received both.
	r1, _, ok := bigSub.Receive()
	if !ok {
		t.Fatalf("expected first item on bigSub")
	}
	if r1.Datagram.Statement() != "NOTIFY ALIVE SDDP/1.0" {
		t.Fatalf("unexpected first item: %q", r1.Datagram.Statement())
	}
	r2, _, ok := bigSub.Receive()
	if !ok {
		t.Fatalf("expected second item on bigSub")
	}
	if r2.Datagram.Statement() != "SEARCH * SDDP/1.0" {
		t.Fatalf("unexpected second item: %q", r2.Datagram.Statement())
	}

	// smallSub must have received only the first (the second was
	// dropped for this subscriber only).
	rs1, _, ok := smallSub.Receive()
	if !ok {
		t.Fatalf("expected one item on smallSub")
	}
	if rs1.Datagram.Statement() != "NOTIFY ALIVE SDDP/1.0" {
		t.Fatalf("unexpected item on smallSub: %q", rs1.Datagram.Statement())
	}
}

// TestFinalResultOnce verifies the engine sets its final result at most
// once and that every subscriber observes end-of-stream exactly once.
func TestFinalResultOnce(t *testing.T) {
	e := New()
	sub, release, err := e.Subscribe(DefaultQueueCapacity)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer release()

	e.Stop()
	e.Stop() // must be a no-op

	if _, _, ok := sub.Receive(); ok {
		t.Fatalf("expected end-of-stream")
	}
	if sub.Err() != nil {
		t.Fatalf("expected clean shutdown, got %v", sub.Err())
	}

	select {
	case <-e.Done():
	default:
		t.Fatalf("expected Done() to be closed")
	}
}

// TestSubscriberDrainsBeforeEOF verifies a subscriber observes its own
// end-of-stream only after draining any queued items.
func TestSubscriberDrainsBeforeEOF(t *testing.T) {
	e := New()
	sub, release, err := e.Subscribe(DefaultQueueCapacity)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer release()

	b := &binding.Binding{Name: "test0"}
	e.deliver(b, nil, mustDatagram(t, "NOTIFY ALIVE SDDP/1.0"))
	e.Fail(errTest)

	r, _, ok := sub.Receive()
	if !ok {
		t.Fatalf("expected queued item before end-of-stream")
	}
	if r.Datagram.Statement() != "NOTIFY ALIVE SDDP/1.0" {
		t.Fatalf("unexpected item: %q", r.Datagram.Statement())
	}

	if _, err, ok := sub.Receive(); ok || err != errTest {
		t.Fatalf("expected terminal error after drain, got ok=%v err=%v", ok, err)
	}
}

var errTest = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
