package pump

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "wolfnet"

// Metrics holds the Prometheus counters the pump exports for the
// (out-of-scope) control surface to scrape. Packet-error counts are kept
// only here; status snapshots take their byte counters from the session
// ciphers and carry no error counts.
type Metrics struct {
	PacketErrors  *prometheus.CounterVec
	BytesSent     *prometheus.CounterVec
	BytesReceived *prometheus.CounterVec
}

// NewMetrics registers the pump's counters against reg. Pass
// prometheus.NewRegistry() in tests to avoid polluting the default
// registry across table-driven runs.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PacketErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packet_errors_total",
			Help:      "Per-peer, per-kind packet processing errors",
		}, []string{"peer", "kind"}),
		BytesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_sent_total",
			Help:      "Bytes encrypted and sent per peer",
		}, []string{"peer"}),
		BytesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "Bytes received and decrypted per peer",
		}, []string{"peer"}),
	}
}
