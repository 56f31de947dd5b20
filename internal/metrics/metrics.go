package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NWSAPICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pvcast_nws_api_calls_total",
			Help: "Total NOAA/NWS API calls",
		},
		[]string{"endpoint", "status"},
	)

	NWSAPILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pvcast_nws_api_latency_seconds",
			Help:    "NOAA/NWS API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	ForecastRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pvcast_forecast_runs_total",
			Help: "Total forecast pipeline executions",
		},
		[]string{"kind", "status"},
	)

	MonteCarloDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pvcast_monte_carlo_duration_seconds",
			Help:    "Wall time of a full Monte Carlo band computation",
			Buckets: prometheus.DefBuckets,
		},
	)

	ExtendedForecastsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pvcast_extended_forecasts_total",
			Help: "Forecasts that needed persistence extension to reach the target horizon",
		},
	)
)
