package metrics

import "github.com/prometheus/client_golang/prometheus"

// Check Prometheus metrics.
var (
	CheckRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "copyless",
			Name:      "check_requests_total",
			Help:      "Total number of plagiarism checks",
		},
		[]string{"result"}, // "ok" / "invalid_input" / "unavailable" / "error"
	)

	CheckDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "copyless",
			Name:      "check_duration_seconds",
			Help:      "End-to-end plagiarism check duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	CheckSentences = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "copyless",
			Name:      "check_sentences",
			Help:      "Sentences per check request",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250},
		},
	)
)

var checkMetricsRegistered bool

// RegisterCheckMetrics registers Prometheus check metrics. Must be called once from main.
func RegisterCheckMetrics() {
	if checkMetricsRegistered {
		return
	}
	prometheus.MustRegister(CheckRequestsTotal)
	prometheus.MustRegister(CheckDuration)
	prometheus.MustRegister(CheckSentences)
	checkMetricsRegistered = true
}
