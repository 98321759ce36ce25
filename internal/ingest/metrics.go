package ingest

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/moolen/strato/internal/models"
)

// Metrics holds Prometheus metrics for the ingestion pipeline.
type Metrics struct {
	EventsTotal   *prometheus.CounterVec // Events by terminal outcome
	BatchesTotal  *prometheus.CounterVec // Batches by result
	ApplyDuration prometheus.Histogram   // Per-event reduction latency
}

// NewMetrics creates and registers the ingestion metrics. The registerer
// parameter allows flexible registration (e.g., global registry, test registry).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	eventsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "strato_ingest_events_total",
		Help: "Total number of ingested events by terminal outcome",
	}, []string{"outcome"})

	batchesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "strato_ingest_batches_total",
		Help: "Total number of event batches by result",
	}, []string{"result"})

	applyDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "strato_ingest_apply_duration_seconds",
		Help:    "Latency of applying a single event to its resource",
		Buckets: prometheus.DefBuckets,
	})

	reg.MustRegister(eventsTotal)
	reg.MustRegister(batchesTotal)
	reg.MustRegister(applyDuration)

	return &Metrics{
		EventsTotal:   eventsTotal,
		BatchesTotal:  batchesTotal,
		ApplyDuration: applyDuration,
	}
}

// outcome labels for EventsTotal.
const (
	outcomeApplied     = "applied"
	outcomeIgnored     = "ignored"
	outcomeTooOld      = "too_old"
	outcomeInvalid     = "invalid"
	outcomeUnsupported = "unsupported"
	outcomeError       = "error"
)

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return outcomeApplied
	case models.IsIgnoredEvent(err):
		return outcomeIgnored
	case models.IsEventTooOld(err):
		return outcomeTooOld
	case models.IsValidationError(err):
		return outcomeInvalid
	case models.IsUnsupportedEventType(err):
		return outcomeUnsupported
	default:
		return outcomeError
	}
}
