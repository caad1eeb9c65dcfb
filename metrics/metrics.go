// Package metrics defines prometheus metric types for the SDDP engine and
// provides convenience accounting at each pipeline stage, adapted from
// the teacher's metrics package (m-lab/tcp-info/metrics/metrics.go) for
// the SDDP domain: datagram receive/send counts, malformed-datagram
// drops, subscriber backpressure drops, and server task activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DatagramsReceived counts datagrams successfully decoded off the
	// wire, labeled by binding name.
	DatagramsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sddp_datagrams_received_total",
			Help: "Datagrams successfully decoded, by binding.",
		},
		[]string{"binding"})

	// MalformedDatagramsDropped counts inbound packets that failed to
	// parse as an SDDP datagram. Non-fatal; the packet is simply dropped.
	MalformedDatagramsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sddp_malformed_datagrams_dropped_total",
			Help: "Inbound packets dropped because they failed to parse.",
		})

	// SubscriberDrops counts datagrams dropped for a single subscriber
	// because its queue was full (subscriber backpressure).
	SubscriberDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sddp_subscriber_drops_total",
			Help: "Datagrams dropped for a subscriber whose queue was full.",
		})

	// DatagramsSent counts datagrams written to a binding's socket,
	// labeled by the sending task (advertiser, responder, search).
	DatagramsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sddp_datagrams_sent_total",
			Help: "Datagrams sent, by sending task.",
		},
		[]string{"task"})

	// NotifyHandlerInvocations counts calls into registered NOTIFY
	// handlers from the collector task.
	NotifyHandlerInvocations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sddp_notify_handler_invocations_total",
			Help: "Notify handler invocations from the collector task.",
		})

	// SearchResponsesSent counts SEARCH responses the responder task
	// sent back to a querying client.
	SearchResponsesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sddp_search_responses_sent_total",
			Help: "SEARCH responses sent by the responder task.",
		})
)
