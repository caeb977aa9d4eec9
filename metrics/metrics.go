package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/mcdexio/chain-collector/semaphore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IndexedHeight is the last committed height per chain.
	IndexedHeight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "collector_indexed_height",
		Help: "Last committed block height",
	}, []string{"chain_id"})

	// BlockLag is how far the last committed block time trails the wall clock.
	BlockLag = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "collector_block_lag_seconds",
		Help: "Age of the last committed block",
	}, []string{"chain_id"})

	BlockProcess = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "collector_block_process_seconds",
		Help:    "Time from fetching a block to its commit",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"chain_id"})

	IndexedTxs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_indexed_txs_total",
		Help: "Transactions committed",
	}, []string{"chain_id"})

	SealedMinutes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_sealed_minutes_total",
		Help: "Minute rollups written",
	}, []string{"chain_id"})

	SyncErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_sync_errors_total",
		Help: "Failed block sync attempts",
	}, []string{"chain_id"})

	WatcherReconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_watcher_reconnects_total",
		Help: "Websocket reconnects by cause",
	}, []string{"cause"}) // dropped, stalled

	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_job_runs_total",
		Help: "Guarded job runs by outcome",
	}, []string{"job", "outcome"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "collector_job_duration_seconds",
		Help:    "Duration of guarded job runs",
		Buckets: prometheus.ExponentialBuckets(0.1, 4, 8),
	}, []string{"job"})

	NodeRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "collector_node_request_seconds",
		Help:    "Node HTTP requests by endpoint and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"node", "route", "code"})

	MempoolTxs = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "collector_mempool_txs",
		Help: "Unconfirmed transactions in the node mempool",
	}, []string{"chain_id"})

	TrackedValidators = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collector_tracked_validators",
		Help: "Validators waiting for a detail refresh",
	})
)

// Block records a committed block.
func Block(chainID string, height int64, blockTime time.Time, txs int, sealed bool, elapsed time.Duration) {
	IndexedHeight.WithLabelValues(chainID).Set(float64(height))
	BlockLag.WithLabelValues(chainID).Set(time.Since(blockTime).Seconds())
	BlockProcess.WithLabelValues(chainID).Observe(elapsed.Seconds())
	IndexedTxs.WithLabelValues(chainID).Add(float64(txs))
	if sealed {
		SealedMinutes.WithLabelValues(chainID).Inc()
	}
}

// Job is a semaphore.Observer.
func Job(name string, outcome semaphore.Outcome, elapsed time.Duration) {
	JobRuns.WithLabelValues(name, string(outcome)).Inc()
	if outcome != semaphore.Skipped {
		JobDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	}
}

// NodeObserver returns an http client observer labelled with the node kind ("lcd", "rpc").
func NodeObserver(node string) func(method, path string, code int, elapsed time.Duration) {
	return func(_, path string, code int, elapsed time.Duration) {
		NodeRequests.WithLabelValues(node, Route(path), strconv.Itoa(code)).Observe(elapsed.Seconds())
	}
}

// Route reduces a request path to its first segment so heights and hashes do not become
// label values.
func Route(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return "/" + path
}
