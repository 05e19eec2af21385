// Package metrics holds the Prometheus collectors of a scan session.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "odi_scan"

var (
	PagesAcquired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pages_acquired_total",
		Help:      "Pages appended to the scan session.",
	})

	AcquisitionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "acquisition_failures_total",
		Help:      "Acquisitions that failed or timed out.",
	})

	Exports = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "exports_total",
		Help:      "Export attempts by result.",
	}, []string{"result"})

	SessionPages = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "session_pages",
		Help:      "Pages currently waiting to be exported.",
	})
)

const (
	ResultSuccess = "success"
	ResultEmpty   = "empty"
	ResultError   = "error"
)
