package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ItemsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "animator_items_processed_total",
		Help: "Total number of source videos handled, by outcome",
	}, []string{"outcome"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "animator_stage_duration_seconds",
		Help:    "Duration of per-item pipeline stages",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200},
	}, []string{"stage"})

	GenerationRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "animator_generation_retries_total",
		Help: "Total number of generation call retries, by attempt",
	}, []string{"attempt"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "animator_queue_depth",
		Help: "Number of unprocessed videos discovered by the current run",
	})

	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "animator_runs_total",
		Help: "Total number of runs, by outcome",
	}, []string{"outcome"})
)
