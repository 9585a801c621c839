package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Connection Metrics
var (
	// ConnectionsActive tracks the number of currently connected chat clients
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_connections_active",
			Help: "Number of currently connected chat clients",
		},
	)

	// ConnectionsAccepted tracks total accepted connections
	ConnectionsAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_connections_accepted_total",
			Help: "Total accepted chat connections",
		},
	)

	// ConnectionsRejected tracks connections rejected by the limiter, by reason
	ConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_connections_rejected_total",
			Help: "Total rejected chat connections by reason",
		},
		[]string{"reason"},
	)

	// HandshakeFailures tracks connections closed for a missing or blank author
	HandshakeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_handshake_failures_total",
			Help: "Total connections closed due to a missing or blank author name",
		},
	)
)

// Ledger Metrics
var (
	// MessagesIngested tracks notes stored into the ledger
	MessagesIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_ingested_total",
			Help: "Total notes ingested into the message ledger",
		},
	)

	// MessagesCoalesced tracks duplicate-key inserts dropped by the ledger
	MessagesCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_coalesced_total",
			Help: "Total duplicate-key inserts coalesced by the ledger",
		},
	)

	// MessagesDelivered tracks broadcast lines sent to clients
	MessagesDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_delivered_total",
			Help: "Total broadcast lines delivered to chat clients",
		},
	)

	// LedgerSize tracks the current number of ledger entries
	LedgerSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_ledger_size",
			Help: "Current number of entries in the message ledger",
		},
	)

	// PollCycleDuration tracks handler poll cycle latency in seconds
	PollCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_poll_cycle_duration_seconds",
			Help:    "Connection handler poll cycle duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25},
		},
	)
)

// Firehose Metrics
var (
	// FirehoseClients tracks connected firehose observers
	FirehoseClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_firehose_clients",
			Help: "Number of connected firehose WebSocket observers",
		},
	)

	// FirehoseSlowClientsEvicted tracks observers evicted due to full buffers
	FirehoseSlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_firehose_slow_clients_evicted_total",
			Help: "Total slow firehose observers evicted due to buffer full",
		},
	)
)
