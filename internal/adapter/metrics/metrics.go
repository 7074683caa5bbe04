package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "barber_pos"

// TerminalMetrics holds the Prometheus metrics of a shop terminal.
type TerminalMetrics struct {
	RemoteBackend          prometheus.Gauge
	RefreshTotal           *prometheus.CounterVec
	MutationsTotal         *prometheus.CounterVec
	VersionConflicts       prometheus.Counter
	OutboxReplayed         *prometheus.CounterVec
	SnapshotBytes          prometheus.Gauge
	SnapshotPersistSeconds prometheus.Histogram
}

// NewTerminalMetrics registers the terminal metrics with reg. Pass
// prometheus.DefaultRegisterer in binaries and a fresh registry in tests.
func NewTerminalMetrics(reg prometheus.Registerer) *TerminalMetrics {
	f := promauto.With(reg)
	return &TerminalMetrics{
		RemoteBackend: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "remote_backend",
			Help:      "1 when the terminal reads and writes through the remote service, 0 when it uses the embedded store.",
		}),
		RefreshTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "refresh_total",
			Help:      "Refreshes by outcome.",
		}, []string{"result"}), // result: remote, local, failed
		MutationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "mutations_total",
			Help:      "Mutating calls by operation and outcome.",
		}, []string{"op", "result"}),
		VersionConflicts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "version_conflicts_total",
			Help:      "Versioned writes rejected because the record changed underneath the caller.",
		}),
		OutboxReplayed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "replayed_total",
			Help:      "Offline sales replayed to the remote service by outcome.",
		}, []string{"result"}), // result: synced, rejected
		SnapshotBytes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "snapshot_bytes",
			Help:      "Size of the last persisted snapshot after compression.",
		}),
		SnapshotPersistSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "snapshot_persist_seconds",
			Help:      "Time to serialize, compress and save a snapshot.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}
}

// ServerMetrics holds the Prometheus metrics of the remote service.
type ServerMetrics struct {
	RequestsTotal     *prometheus.CounterVec
	TenantCacheHits   prometheus.Counter
	TenantCacheMisses prometheus.Counter
	VersionConflicts  prometheus.Counter
	AuditEvents       *prometheus.CounterVec
}

func NewServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	f := promauto.With(reg)
	return &ServerMetrics{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of API requests by route and status.",
		}, []string{"route", "status"}),
		TenantCacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "tenant_cache_hits_total",
			Help:      "Total number of tenant status cache hits.",
		}),
		TenantCacheMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "tenant_cache_misses_total",
			Help:      "Total number of tenant status cache misses.",
		}),
		VersionConflicts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "version_conflicts_total",
			Help:      "Versioned writes answered with 409.",
		}),
		AuditEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "events_total",
			Help:      "Audit events by publish outcome.",
		}, []string{"result"}),
	}
}
