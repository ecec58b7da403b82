// Package metrics holds the Prometheus collectors for a pipeline run.
package metrics

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Catalog request outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeError       = "error"
	OutcomeRateLimited = "rate_limited"
	OutcomeRejected    = "rejected"
)

// Enrichment entity states.
const (
	StateCarried  = "carried_forward"
	StateNeeded   = "needed"
	StateEnriched = "enriched"
	StateSkipped  = "skipped"
)

var (
	// CatalogRequestsTotal counts catalog batch requests by entity kind and outcome.
	CatalogRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "replaybox_catalog_requests_total",
		Help: "Total number of catalog batch requests",
	}, []string{"kind", "outcome"})

	// RateLimitWaitsTotal counts backoff waits caused by HTTP 429.
	RateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "replaybox_rate_limit_waits_total",
		Help: "Total number of waits caused by catalog rate limiting",
	})

	// RateLimitWaitSeconds accumulates time spent waiting on rate limits.
	RateLimitWaitSeconds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "replaybox_rate_limit_wait_seconds_total",
		Help: "Total seconds spent waiting on catalog rate limits",
	})

	// EnrichmentEntitiesTotal counts entities by kind and enrichment state.
	EnrichmentEntitiesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "replaybox_enrichment_entities_total",
		Help: "Total number of entities by enrichment state",
	}, []string{"kind", "state"})

	// StageDuration measures each pipeline stage.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "replaybox_stage_duration_seconds",
		Help:    "Pipeline stage duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	// EventsProcessed is the number of raw play events in the last run.
	EventsProcessed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "replaybox_events_processed",
		Help: "Number of raw play events processed by the last run",
	})

	// EntitiesWritten is the number of entities written per collection in the last run.
	EntitiesWritten = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "replaybox_entities_written",
		Help: "Number of ranked entities written by the last run",
	}, []string{"collection"})
)

// RecordCatalogRequest counts one catalog request.
func RecordCatalogRequest(kind, outcome string) {
	CatalogRequestsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordRateLimitWait counts one rate-limit backoff of duration d.
func RecordRateLimitWait(d time.Duration) {
	RateLimitWaitsTotal.Inc()
	RateLimitWaitSeconds.Add(d.Seconds())
}

// RecordEntities adds n entities of kind in state.
func RecordEntities(kind, state string, n int) {
	if n <= 0 {
		return
	}
	EnrichmentEntitiesTotal.WithLabelValues(kind, state).Add(float64(n))
}

// ObserveStage records the duration of a stage that started at start.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// WriteTextfile exports the default registry in the node-exporter textfile format.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return errors.Wrapf(err, "failed to write metrics textfile %s", path)
	}
	return nil
}
