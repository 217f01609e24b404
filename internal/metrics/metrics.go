package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	samplesIngestedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "infra_mind",
			Name:      "samples_ingested_total",
			Help:      "Total number of metric samples accepted into the store.",
		},
	)

	samplesRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "infra_mind",
			Name:      "samples_rejected_total",
			Help:      "Total number of metric samples rejected by validation.",
		},
	)

	anomalyChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "infra_mind",
			Name:      "anomaly_checks_total",
			Help:      "Total anomaly detection checks, partitioned by result status.",
		},
		[]string{"status"},
	)

	riskChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "infra_mind",
			Name:      "risk_checks_total",
			Help:      "Total SLA risk assessments, partitioned by risk level.",
		},
		[]string{"level"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "infra_mind",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests, partitioned by method, route and status code.",
		},
		[]string{"method", "route", "code"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "infra_mind",
			Name:      "http_request_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)
)

// Register attaches infra-mind collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		samplesIngestedTotal,
		samplesRejectedTotal,
		anomalyChecksTotal,
		riskChecksTotal,
		httpRequestsTotal,
		httpRequestDurationSeconds,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveIngest counts an ingest attempt by outcome.
func ObserveIngest(accepted bool) {
	if accepted {
		samplesIngestedTotal.Inc()
		return
	}
	samplesRejectedTotal.Inc()
}

// ObserveAnomalyCheck counts a completed detection run.
func ObserveAnomalyCheck(status string) {
	anomalyChecksTotal.WithLabelValues(status).Inc()
}

// ObserveRiskCheck counts a completed risk assessment.
func ObserveRiskCheck(level string) {
	riskChecksTotal.WithLabelValues(level).Inc()
}

// ObserveHTTPRequest records one handled request. Route should be the route
// template, not the raw path, to keep label cardinality bounded.
func ObserveHTTPRequest(method, route, code string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, code).Inc()
	if duration < 0 {
		duration = 0
	}
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
