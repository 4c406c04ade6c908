package reconcile

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeCreated       = "created"
	outcomeAlreadyExists = "already_exists"
	outcomeFailed        = "failed"
)

var (
	// mirrorCount is a Counter vector of mirror creation attempts
	mirrorCount *prometheus.CounterVec
	// missingMirrors is a Gauge of catalog apps without mirror at the start of the run
	missingMirrors prometheus.Gauge
	// lastRunTimestamp is a Gauge that captures the timestamp of the last plan
	lastRunTimestamp prometheus.Gauge
)

// EnableMetrics will enable metrics collection for reconciliation runs.
// Available metrics are...
//   - mirror_sync_mirror_count - (tags: outcome)
//     A Counter for each mirror creation tagged with the result (outcome=created|already_exists|failed)
//   - mirror_sync_missing_mirrors
//     A Gauge of apps without mirror found when catalog was compared with the forge
//   - mirror_sync_last_run_timestamp
//     A Gauge that captures the Timestamp of the last comparison
func EnableMetrics(metricsNamespace string, registerer prometheus.Registerer) {
	mirrorCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "mirror_sync_mirror_count",
		Help:      "Count of mirror creation attempts",
	},
		[]string{
			// created, already_exists or failed
			"outcome",
		},
	)

	missingMirrors = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "mirror_sync_missing_mirrors",
		Help:      "Number of catalog apps without mirror",
	})

	lastRunTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "mirror_sync_last_run_timestamp",
		Help:      "Timestamp of the last comparison of catalog with forge mirrors",
	})

	registerer.MustRegister(
		mirrorCount,
		missingMirrors,
		lastRunTimestamp,
	)
}

func recordMirror(outcome string) {
	// if metrics not enabled return
	if mirrorCount == nil {
		return
	}
	mirrorCount.WithLabelValues(outcome).Inc()
}

func setMissingMirrors(n int) {
	if missingMirrors == nil || lastRunTimestamp == nil {
		return
	}
	missingMirrors.Set(float64(n))
	lastRunTimestamp.Set(float64(time.Now().Unix()))
}
