package cartstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	persistErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_store_persist_errors_total",
			Help: "Total number of failed cart record writes or deletes",
		},
		[]string{"op"},
	)

	hydrateFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_store_hydrate_failures_total",
			Help: "Total number of cart hydrations that fell back to an empty cart",
		},
		[]string{"reason"},
	)
)
