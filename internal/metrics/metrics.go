// Package metrics provides Prometheus metrics for the peer networking core,
// grounded on the Metrics struct in the postalsys-Muti-Metroo example
// (promauto-registered gauges/counters/histograms behind a handful of
// Record* helper methods).
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tezedge_peer"

// Metrics holds every Prometheus instrument this core emits.
type Metrics struct {
	PeersConnected  prometheus.Gauge
	PeersTotal      *prometheus.CounterVec
	PeerDisconnects *prometheus.CounterVec

	HandshakeLatency prometheus.Histogram
	HandshakeErrors  *prometheus.CounterVec

	BytesSent     *prometheus.CounterVec
	BytesReceived *prometheus.CounterVec

	MessagesSent     *prometheus.CounterVec
	MessagesReceived *prometheus.CounterVec
	UnsupportedTags  prometheus.Counter

	AuditWriteErrors prometheus.Counter
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Default returns the process-wide metrics instance, registered against
// the default Prometheus registry.
func Default() *Metrics {
	once.Do(func() { defaultMetrics = NewWithRegistry(prometheus.DefaultRegisterer) })
	return defaultMetrics
}

// NewWithRegistry builds a Metrics instance registered against reg, for
// tests and for embedding in a non-default registry.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PeersConnected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "peers_connected",
			Help: "Number of peers with an established encrypted session.",
		}),
		PeersTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "peers_total",
			Help: "Total bootstrap attempts by direction and outcome.",
		}, []string{"direction", "outcome"}),
		PeerDisconnects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "peer_disconnects_total",
			Help: "Total peer disconnections by reason.",
		}, []string{"reason"}),
		HandshakeLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "handshake_latency_seconds",
			Help:    "Time to complete the six-step bootstrap handshake.",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		HandshakeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "handshake_errors_total",
			Help: "Total handshake failures by error type.",
		}, []string{"error_type"}),
		BytesSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "bytes_sent_total",
			Help: "Total plaintext message bytes written to peers, before encryption.",
		}, []string{"peer_id"}),
		BytesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "bytes_received_total",
			Help: "Total plaintext message bytes read from peers, after decryption.",
		}, []string{"peer_id"}),
		MessagesSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_sent_total",
			Help: "Total operational messages sent by tag.",
		}, []string{"tag"}),
		MessagesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_received_total",
			Help: "Total operational messages received by tag.",
		}, []string{"tag"}),
		UnsupportedTags: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "unsupported_tags_total",
			Help: "Total messages discarded for carrying an unrecognized tag.",
		}),
		AuditWriteErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "audit_write_errors_total",
			Help: "Total failures persisting a message to the audit store.",
		}),
	}
}

// RecordBootstrap records the outcome of a bootstrap attempt.
func (m *Metrics) RecordBootstrap(direction, outcome string) {
	m.PeersTotal.WithLabelValues(direction, outcome).Inc()
	if outcome == "success" {
		m.PeersConnected.Inc()
	}
}

// RecordDisconnect records a peer disconnection.
func (m *Metrics) RecordDisconnect(reason string) {
	m.PeersConnected.Dec()
	m.PeerDisconnects.WithLabelValues(reason).Inc()
}

// RecordHandshake records a completed handshake's latency.
func (m *Metrics) RecordHandshake(seconds float64) { m.HandshakeLatency.Observe(seconds) }

// RecordHandshakeError records a classified handshake failure.
func (m *Metrics) RecordHandshakeError(errorType string) {
	m.HandshakeErrors.WithLabelValues(errorType).Inc()
}

// RecordBytesSent records outbound operational message volume for a peer,
// measured on the plaintext wire envelope before encryption.
func (m *Metrics) RecordBytesSent(peerID string, n int) {
	m.BytesSent.WithLabelValues(peerID).Add(float64(n))
}

// RecordBytesReceived records inbound operational message volume for a
// peer, measured on the plaintext wire envelope after decryption.
func (m *Metrics) RecordBytesReceived(peerID string, n int) {
	m.BytesReceived.WithLabelValues(peerID).Add(float64(n))
}

// RecordMessageSent records an outbound operational message by tag.
func (m *Metrics) RecordMessageSent(tag string) { m.MessagesSent.WithLabelValues(tag).Inc() }

// RecordMessageReceived records an inbound operational message by tag.
func (m *Metrics) RecordMessageReceived(tag string) { m.MessagesReceived.WithLabelValues(tag).Inc() }

// RecordUnsupportedTag records a message dropped for carrying an unrecognized tag.
func (m *Metrics) RecordUnsupportedTag() { m.UnsupportedTags.Inc() }

// RecordAuditWriteError records a failed audit store write.
func (m *Metrics) RecordAuditWriteError() { m.AuditWriteErrors.Inc() }
