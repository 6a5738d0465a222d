package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "playgen",
			Subsystem: "ingest",
			Name:      "pages_total",
			Help:      "Catalog pages requested, by outcome (ok, empty, failed).",
		},
		[]string{"outcome"},
	)

	fetchRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "playgen",
			Subsystem: "ingest",
			Name:      "fetch_retries_total",
			Help:      "Catalog fetch attempts that failed and were retried.",
		},
	)

	recordsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "playgen",
			Subsystem: "ingest",
			Name:      "records_dropped_total",
			Help:      "Catalog records dropped before upsert, by reason (invalid, duplicate).",
		},
		[]string{"reason"},
	)

	tracksUpsertedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "playgen",
			Subsystem: "ingest",
			Name:      "tracks_upserted_total",
			Help:      "Track rows written to the store.",
		},
	)

	batchFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "playgen",
			Subsystem: "ingest",
			Name:      "batch_failures_total",
			Help:      "Track batches rejected by the store and skipped.",
		},
	)
)
