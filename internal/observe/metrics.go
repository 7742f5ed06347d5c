// Package observe holds the process-wide prometheus collectors.
package observe

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relay_active_sessions",
		Help: "Number of connected realtime sessions",
	})

	signalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_signals_total",
			Help: "Signaling messages by kind and outcome",
		},
		[]string{"kind", "outcome"}, // relayed|rejected|no_session
	)

	peerDropsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_peer_delivery_failures_total",
		Help: "Broadcast sends that failed for a single peer",
	})

	chunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_chunks_total",
			Help: "Frame chunks by outcome",
		},
		[]string{"outcome"}, // accepted|decode_error|rate_limited|oversized|backpressure|publish_error
	)

	batchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "publisher_batches_total",
			Help: "Batch flushes by outcome",
		},
		[]string{"outcome"}, // ok|failed
	)

	flushRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "publisher_flush_retries_total",
		Help: "Flush attempts beyond the first",
	})

	batchBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "publisher_batch_bytes",
		Help:    "Serialized size of flushed batches",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
	})

	flushSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "publisher_flush_seconds",
		Help:    "Time spent in Sink.SendBatch including retries",
		Buckets: prometheus.DefBuckets,
	})

	openPartitions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "publisher_open_partitions",
		Help: "Partitions currently tracked by the publisher",
	})
)

func init() {
	prometheus.MustRegister(
		activeSessions,
		signalsTotal,
		peerDropsTotal,
		chunksTotal,
		batchesTotal,
		flushRetriesTotal,
		batchBytes,
		flushSeconds,
		openPartitions,
	)
}

func AddSessions(delta float64)      { activeSessions.Add(delta) }
func IncSignal(kind, outcome string) { signalsTotal.WithLabelValues(kind, outcome).Inc() }
func IncPeerDrop()                   { peerDropsTotal.Inc() }
func IncChunk(outcome string)        { chunksTotal.WithLabelValues(outcome).Inc() }
func IncBatch(outcome string)        { batchesTotal.WithLabelValues(outcome).Inc() }
func IncFlushRetry()                 { flushRetriesTotal.Inc() }
func ObserveBatchBytes(n int)        { batchBytes.Observe(float64(n)) }
func ObserveFlushSeconds(s float64)  { flushSeconds.Observe(s) }
func SetOpenPartitions(n int)        { openPartitions.Set(float64(n)) }
