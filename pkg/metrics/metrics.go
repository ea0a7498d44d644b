// Package metrics exposes prometheus instrumentation for the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "streamlake_etl_build_info",
			Help: "Build information of the streamlake ETL",
		},
		[]string{"version", "commit", "date"},
	)

	ObjectsRead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamlake_etl_objects_read_total",
			Help: "Raw input objects read, by source",
		},
		[]string{"source"},
	)

	RecordsDecoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamlake_etl_records_decoded_total",
			Help: "Raw records decoded, by source",
		},
		[]string{"source"},
	)

	EventsFiltered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamlake_etl_events_filtered_total",
			Help: "Activity events dropped by the NextSong filter",
		},
	)

	JoinMatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamlake_etl_join_matched_total",
			Help: "Events joined to a catalog (title, artist, duration) triple",
		},
	)

	JoinUnmatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamlake_etl_join_unmatched_total",
			Help: "Events silently excluded by the catalog join",
		},
	)

	RowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamlake_etl_rows_written_total",
			Help: "Rows persisted per output table",
		},
		[]string{"table"},
	)
)
