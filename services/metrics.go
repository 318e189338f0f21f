package services

import "github.com/prometheus/client_golang/prometheus"

var (
	importRunsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sleuth_import_runs_total",
			Help: "Import pipeline runs by final status.",
		},
		[]string{"status"},
	)
	analysesImportedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sleuth_analyses_imported_total",
			Help: "Analyses created from Sleuth experiments.",
		},
	)
	coordinatesImportedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sleuth_coordinates_imported_total",
			Help: "Coordinates attached to created analyses.",
		},
	)
	lookupRequestsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sleuth_lookup_requests_total",
			Help: "Requests sent to the bibliographic lookup provider.",
		},
		[]string{"provider", "kind"},
	)
)

func init() {
	prometheus.MustRegister(importRunsCounter, analysesImportedCounter, coordinatesImportedCounter, lookupRequestsCounter)
}
