package metrics_test

import (
	"testing"

	"github.com/control4/sddp/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(metrics.MalformedDatagramsDropped)
	metrics.MalformedDatagramsDropped.Inc()
	after := testutil.ToFloat64(metrics.MalformedDatagramsDropped)
	if after != before+1 {
		t.Fatalf("got %v, want %v", after, before+1)
	}
}

func TestDatagramsReceivedLabeledByBinding(t *testing.T) {
	metrics.DatagramsReceived.WithLabelValues("eth0").Inc()
	got := testutil.ToFloat64(metrics.DatagramsReceived.WithLabelValues("eth0"))
	if got < 1 {
		t.Fatalf("got %v, want >= 1", got)
	}
}

func TestDatagramsSentLabeledByTask(t *testing.T) {
	metrics.DatagramsSent.WithLabelValues("advertiser").Inc()
	got := testutil.ToFloat64(metrics.DatagramsSent.WithLabelValues("advertiser"))
	if got < 1 {
		t.Fatalf("got %v, want >= 1", got)
	}
}
