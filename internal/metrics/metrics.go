package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spartanbot_evaluations_total",
			Help: "Total number of profitability evaluations per outcome (profitable, unprofitable, error)",
		},
		[]string{"outcome"},
	)

	RentalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spartanbot_rentals_total",
			Help: "Total number of rental executions per provider type and outcome",
		},
		[]string{"provider", "outcome"},
	)

	RentedHashrate = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spartanbot_rented_hashrate_total",
			Help: "Total hashrate rented per provider type, in hashes per second",
		},
		[]string{"provider"},
	)

	ConfiguredProviders = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "spartanbot_configured_providers",
			Help: "Number of rental providers currently configured",
		},
	)

	RequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spartanbot_request_duration_seconds",
			Help:    "HTTP request duration in seconds per path",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	RequestErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spartanbot_request_errors_total",
			Help: "Total number of error responses per path and code",
		},
		[]string{"path", "code"},
	)
)

var (
	JobLastRun = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "spartanbot_job_last_run_timestamp",
			Help: "Unix timestamp of the last completed run for a job",
		},
		[]string{"job"},
	)

	JobLastDurationSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "spartanbot_job_last_duration_seconds",
			Help: "Duration of the last completed run for a job",
		},
		[]string{"job"},
	)

	JobFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spartanbot_job_failures_total",
			Help: "Total number of failed executions per job",
		},
		[]string{"job"},
	)
)

func UpdateJobMetrics(job string, startedAt time.Time, err error) {
	dur := time.Since(startedAt).Seconds()
	JobLastDurationSeconds.WithLabelValues(job).Set(dur)
	JobLastRun.WithLabelValues(job).Set(float64(time.Now().Unix()))
	if err != nil {
		JobFailuresTotal.WithLabelValues(job).Inc()
	}
}
