// Package metric carries the service's Prometheus instrumentation and a
// small statistics toolbox used by the analysis summaries.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts HTTP requests by route and status code
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trailstop_requests_total",
			Help: "HTTP requests served, labeled by route and status code",
		},
		[]string{"route", "status"},
	)

	// RequestDuration tracks HTTP latency by route
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trailstop_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// AnalysisDuration tracks the engine compute time per analysis
	AnalysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trailstop_analysis_duration_seconds",
			Help:    "Time spent computing one full analysis",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	// AnalysesTotal counts analyses by outcome
	AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trailstop_analyses_total",
			Help: "Analyses run, labeled by outcome",
		},
		[]string{"outcome"},
	)

	// CacheLookups counts candle cache hits and misses
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trailstop_candle_cache_lookups_total",
			Help: "Candle cache lookups, labeled hit or miss",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		AnalysisDuration,
		AnalysesTotal,
		CacheLookups,
	)
}

// Handler exposes the registered collectors for scraping
func Handler() http.Handler {
	return promhttp.Handler()
}
