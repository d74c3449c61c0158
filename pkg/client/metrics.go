package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artie_requests_total",
		Help: "Total scrape requests by outcome",
	}, []string{"outcome"}) // "success", a failure kind, or "suppressed"

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "artie_request_duration_seconds",
		Help:    "Scrape request duration in seconds, including retries",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artie_errors_total",
		Help: "Total scrape errors by taxonomy kind",
	}, []string{"kind"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artie_retries_total",
		Help: "Total retry attempts by taxonomy kind",
	}, []string{"kind"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "artie_retry_backoff_seconds",
		Help:    "Backoff duration before retries by taxonomy kind",
		Buckets: []float64{1, 2, 4, 8, 10},
	}, []string{"kind"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artie_retry_exhausted_total",
		Help: "Total requests that exhausted their retry budget by kind",
	}, []string{"kind"})

	suppressedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artie_suppressed_requests_total",
		Help: "Total requests short-circuited by an open suppression marker",
	}, []string{"marker"})
)
