// Package metrics exposes the relay's Prometheus counters and gauges.
// Grounded on the rest of the retrieved pack's use of
// github.com/prometheus/client_golang (itself a message relayer's ambient
// observability layer) — GrinRelay carries the same surface for its own
// connection/message/error counts.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "grinrelay",
		Name:      "active_connections",
		Help:      "Number of currently open WebSocket sessions.",
	})

	SlatesRelayed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "grinrelay",
		Name:      "slates_relayed_total",
		Help:      "Number of PostSlate requests successfully published to the broker.",
	})

	RequestsByKind = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grinrelay",
		Name:      "requests_total",
		Help:      "Number of requests processed, by envelope type.",
	}, []string{"type"})

	ErrorsByKind = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grinrelay",
		Name:      "errors_total",
		Help:      "Number of Error responses returned to clients, by error kind.",
	}, []string{"kind"})

	BrokerErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "grinrelay",
		Name:      "broker_errors_total",
		Help:      "Number of broker-side errors observed (subscribe/unsubscribe/publish failures).",
	})

	DirectoryEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grinrelay",
		Name:      "directory_events_total",
		Help:      "Number of consumer-lifecycle events processed by the address directory.",
	}, []string{"kind"})
)
