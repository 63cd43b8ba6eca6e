package foodapi

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "foodguard_api_requests_total",
		Help: "Requests sent to the FoodGuard service by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "foodguard_api_request_duration_seconds",
		Help:    "Latency of requests to the FoodGuard service.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)

func init() {
	prometheus.MustRegister(requestsTotal, requestDuration)
}

func observe(endpoint string, resp *http.Response, err error, elapsed time.Duration) {
	requestDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
	requestsTotal.WithLabelValues(endpoint, outcome(resp, err)).Inc()
}

func outcome(resp *http.Response, err error) string {
	switch {
	case err != nil:
		return "transport_error"
	case resp.StatusCode >= 500:
		return "5xx"
	case resp.StatusCode >= 400:
		return "4xx"
	default:
		return "ok"
	}
}
