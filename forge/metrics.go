package forge

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// requestCount is a Counter vector of forge API requests
	requestCount *prometheus.CounterVec
	// rateLimitWaits is a Counter of backoff waits caused by rate limiting
	rateLimitWaits prometheus.Counter
)

// EnableMetrics will enable metrics collection for forge requests.
// Available metrics are...
//   - forge_request_count - (tags: method,code)
//     A Counter for each completed request tagged with the response status code
//   - forge_rate_limit_wait_count
//     A Counter incremented every time a rate limited request is put on hold
func EnableMetrics(metricsNamespace string, registerer prometheus.Registerer) {
	requestCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "forge_request_count",
		Help:      "Count of forge API requests",
	},
		[]string{
			// http method of the request
			"method",
			// response status code
			"code",
		},
	)

	rateLimitWaits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "forge_rate_limit_wait_count",
		Help:      "Count of waits caused by forge rate limiting",
	})

	registerer.MustRegister(
		requestCount,
		rateLimitWaits,
	)
}

func recordRequest(method string, code int) {
	// if metrics not enabled return
	if requestCount == nil {
		return
	}
	requestCount.With(prometheus.Labels{
		"method": method,
		"code":   strconv.Itoa(code),
	}).Inc()
}

func recordRateLimitWait() {
	if rateLimitWaits == nil {
		return
	}
	rateLimitWaits.Inc()
}
