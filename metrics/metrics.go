// Package metrics holds the Prometheus collectors for the prediction service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "noshow_prediction_requests_total",
		Help: "Prediction requests by outcome (ok, bad_request, malformed_timestamp, invalid_window, model_unavailable, feature_shape_mismatch, unknown_category, timeout, canceled, error).",
	}, []string{"outcome"})

	RowsScored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "noshow_prediction_rows_scored_total",
		Help: "Total number of appointments passed through the model.",
	})

	PredictedNoShows = promauto.NewCounter(prometheus.CounterOpts{
		Name: "noshow_prediction_predicted_noshows_total",
		Help: "Total number of appointments predicted as no-shows.",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "noshow_prediction_stage_duration_seconds",
		Help:    "Duration of each pipeline stage.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.5},
	}, []string{"stage"})

	PipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "noshow_prediction_pipeline_duration_seconds",
		Help:    "Duration of a full prediction run.",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0},
	})

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "noshow_prediction_cache_hits_total",
		Help: "Prediction responses served from Redis.",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "noshow_prediction_cache_misses_total",
		Help: "Prediction responses computed because no cached entry existed.",
	})

	DatasetRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "noshow_dataset_records",
		Help: "Number of appointment records loaded at startup.",
	})

	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "noshow_websocket_clients",
		Help: "Currently connected run-event websocket clients.",
	})

	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "noshow_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=half-open, 2=open).",
	}, []string{"name"})

	RunEventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "noshow_run_events_published_total",
		Help: "Run events published, by transport (redis, local).",
	}, []string{"transport"})
)
