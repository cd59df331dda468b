package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline metrics cover the streaming filter passes. Registered explicitly
// from main (no init()) so library consumers of the pipeline stay metric-free.
var (
	// RowsScanned counts source rows evaluated per operation (preview,
	// download, save, analysis).
	RowsScanned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "compfilter",
			Name:      "rows_scanned_total",
			Help:      "Source rows evaluated by the filter pipeline",
		},
		[]string{"operation"},
	)

	// RowsMatched counts rows that passed every active filter.
	RowsMatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "compfilter",
			Name:      "rows_matched_total",
			Help:      "Rows that passed all active filters",
		},
		[]string{"operation"},
	)

	// GeometryReloads counts geometry registry (re)loads after invalidation.
	GeometryReloads = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "compfilter",
			Name:      "geometry_reloads_total",
			Help:      "Geometry registry reloads triggered by invalidation",
		},
	)
)

// RegisterPipelineMetrics registers pipeline metrics with the default registry.
func RegisterPipelineMetrics() {
	prometheus.MustRegister(RowsScanned)
	prometheus.MustRegister(RowsMatched)
	prometheus.MustRegister(GeometryReloads)
}
