package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Role/term metrics
	IsLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "curp_is_leader",
			Help: "Whether this node believes itself leader (1 = leader, 0 = follower/candidate)",
		},
	)

	CurrentTerm = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "curp_current_term",
			Help: "Current term as observed by this node",
		},
	)

	ElectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "curp_elections_total",
			Help: "Total number of candidacies started by this node",
		},
	)

	// Log/commit metrics
	LogLastIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "curp_log_last_index",
			Help: "Index of the last entry in the replicated log",
		},
	)

	CommitIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "curp_commit_index",
			Help: "Highest log index known to be committed",
		},
	)

	LastApplied = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "curp_last_applied",
			Help: "Highest log index applied to the state machine",
		},
	)

	// Spec-pool / fast-path metrics
	SpecPoolSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "curp_specpool_size",
			Help: "Number of commands currently held in the speculative pool",
		},
	)

	ProposeOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curp_propose_outcomes_total",
			Help: "Total Propose calls by fast/slow-path outcome",
		},
		[]string{"outcome"}, // "fast_path", "slow_path"
	)

	SpecPoolRecoveredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "curp_specpool_recovered_total",
			Help: "Total commands recovered from spec-pool snapshots on leader election",
		},
	)

	// Latency metrics
	ProposeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "curp_propose_duration_seconds",
			Help:    "Time from Propose call to execution result, by path",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"}, // "fast_path", "slow_path"
	)

	AfterSyncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "curp_after_sync_duration_seconds",
			Help:    "Time taken to apply a committed entry's after_sync",
			Buckets: prometheus.DefBuckets,
		},
	)

	SnapshotDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "curp_snapshot_duration_seconds",
			Help:    "Time taken to take a snapshot and compact the log",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Transport metrics
	RPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curp_rpc_requests_total",
			Help: "Total RPCs served by method and status",
		},
		[]string{"method", "status"},
	)

	RPCDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "curp_rpc_duration_seconds",
			Help:    "RPC handler duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	PeersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "curp_peers_total",
			Help: "Total number of configured peers, not counting self",
		},
	)
)

func init() {
	prometheus.MustRegister(IsLeader)
	prometheus.MustRegister(CurrentTerm)
	prometheus.MustRegister(ElectionsTotal)
	prometheus.MustRegister(LogLastIndex)
	prometheus.MustRegister(CommitIndex)
	prometheus.MustRegister(LastApplied)
	prometheus.MustRegister(SpecPoolSize)
	prometheus.MustRegister(ProposeOutcomesTotal)
	prometheus.MustRegister(SpecPoolRecoveredTotal)
	prometheus.MustRegister(ProposeDuration)
	prometheus.MustRegister(AfterSyncDuration)
	prometheus.MustRegister(SnapshotDuration)
	prometheus.MustRegister(RPCRequestsTotal)
	prometheus.MustRegister(RPCDuration)
	prometheus.MustRegister(PeersTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
