package calls

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

const (
	outcomeSuccess = "success"
)

var (
	callsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domain_admin_calls_total",
			Help: "Total number of API server calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	callRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domain_admin_call_retries_total",
			Help: "Total number of retried API server calls by operation",
		},
		[]string{"operation"},
	)

	callDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "domain_admin_call_duration_seconds",
			Help:    "API server call duration in seconds, retries included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

func init() {
	metrics.Registry.MustRegister(callsTotal, callRetries, callDuration)
}
