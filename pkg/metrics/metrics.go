package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "platformsync", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "platformsync", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	// SyncTotal counts projection writes by operation (upsert|delete) and result (ok|error|skipped).
	SyncTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "platformsync", Name: "sync_total", Help: "Number of platform document synchronizations."},
		[]string{"op", "result"},
	)
	SyncDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "platformsync", Name: "sync_duration_seconds", Help: "Time spent rebuilding or removing a platform document.", Buckets: prometheus.DefBuckets},
		[]string{"op"},
	)
	// DocumentsDeleted counts removed platform documents by reason (platform_deleted|stale).
	DocumentsDeleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "platformsync", Name: "documents_deleted_total", Help: "Number of platform documents removed."},
		[]string{"reason"},
	)
	// DriftDetected counts business mutations whose follow-up sync failed.
	DriftDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "platformsync", Name: "drift_total", Help: "Mutations committed whose projection sync failed."},
		[]string{"trigger"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(SyncTotal)
	reg.MustRegister(SyncDuration)
	reg.MustRegister(DocumentsDeleted)
	reg.MustRegister(DriftDetected)
}
