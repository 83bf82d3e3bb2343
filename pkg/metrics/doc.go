/*
Package metrics provides Prometheus metrics collection and exposition for
the consensus engine.

The metrics package defines and registers every metric named in §9 using
the Prometheus client library: role/term, replicated-log/commit
progress, spec-pool/fast-path ratio, and RPC latency. Metrics are
exposed via HTTP endpoint for scraping by Prometheus servers.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  │  - Automatic Go runtime metrics             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Metric Types                   │          │
	│  │                                              │          │
	│  │  Gauge: is_leader, current_term,            │          │
	│  │         log_last_index, commit_index,       │          │
	│  │         last_applied, specpool_size          │          │
	│  │  Counter: elections_total,                  │          │
	│  │           propose_outcomes_total,           │          │
	│  │           specpool_recovered_total          │          │
	│  │  Histogram: propose_duration_seconds,       │          │
	│  │             after_sync_duration_seconds,    │          │
	│  │             snapshot_duration_seconds,      │          │
	│  │             rpc_duration_seconds            │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Collector                        │          │
	│  │  - Polls consensus.Node/replog.Log/         │          │
	│  │    specpool.Pool every 15s                  │          │
	│  │  - Sets gauges from polled state             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP /metrics Endpoint              │          │
	│  │  - promhttp.Handler()                        │          │
	│  └──────────────────────────────────────────────┘          │
	│                                                            │
	└────────────────────────────────────────────────────────────┘

# Counters vs gauges

Counter-type metrics (ElectionsTotal, ProposeOutcomesTotal,
SpecPoolRecoveredTotal, RPCRequestsTotal) are incremented directly by the
components that observe the event — pkg/engine (elections, through the
consensus node's election hook, and spec-pool recovery), pkg/pipeline
and pkg/transport hold no reference to this package beyond those
Inc/Observe calls; pkg/consensus does not import it. Gauge-type metrics are instead polled by Collector,
since they describe a continuously-changing quantity (log index, term)
that is cheaper to sample than to push on every mutation.

# Usage

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", metrics.HealthHandler())
	mux.HandleFunc("/readyz", metrics.ReadyHandler())

	collector := metrics.NewCollector(node, consensusCfg)
	collector.Start()
	defer collector.Stop()
*/
package metrics
