package features

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsReadTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "playgen",
			Subsystem: "features",
			Name:      "events_read_total",
			Help:      "Events read from the event log.",
		},
	)

	eventsSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "playgen",
			Subsystem: "features",
			Name:      "events_skipped_total",
			Help:      "Events dropped for a missing user or item ID.",
		},
	)

	durationLookupsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "playgen",
			Subsystem: "features",
			Name:      "duration_lookups_total",
			Help:      "Chunked duration queries issued against the tracks table.",
		},
	)

	featuresUpsertedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "playgen",
			Subsystem: "features",
			Name:      "rows_upserted_total",
			Help:      "Feature rows written to the store.",
		},
	)

	batchFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "playgen",
			Subsystem: "features",
			Name:      "batch_failures_total",
			Help:      "Feature batches rejected by the store and skipped.",
		},
	)
)
