package batch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	batchItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artie_batch_items_total",
		Help: "Total batch items by outcome (success or failure kind)",
	}, []string{"outcome"})

	batchRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artie_batch_runs_total",
		Help: "Total batch runs by outcome",
	}, []string{"outcome"}) // "completed", "quota_halted"

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "artie_batch_duration_seconds",
		Help:    "Batch run duration in seconds",
		Buckets: []float64{1, 10, 60, 300, 900, 3600},
	})
)
