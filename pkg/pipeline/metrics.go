// pkg/pipeline/metrics.go
package pipeline

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the run metrics on a private registry.
// All methods are safe on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	// Rows read per dataset
	RowsLoaded *prometheus.CounterVec

	// Rows dropped during aggregation (absent key) per dataset
	RowsDropped *prometheus.CounterVec

	// Cleaning operations per dataset and operation
	CleaningOps *prometheus.CounterVec

	// Distinct keys per aggregated dataset
	AggregateKeys *prometheus.GaugeVec

	// Rows in the merged table
	MergedRows prometheus.Gauge

	// Rows flagged true per flag
	FlaggedRows *prometheus.GaugeVec

	// Stage durations
	StageDuration *prometheus.HistogramVec

	// Failed runs per stage
	Failures *prometheus.CounterVec

	// Unix time of the last successful run
	LastSuccess prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RowsLoaded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aadhaar_coverage_rows_loaded_total",
			Help: "Rows read from sources by dataset",
		}, []string{"dataset"}),

		RowsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aadhaar_coverage_rows_dropped_total",
			Help: "Rows dropped during aggregation because a key was absent",
		}, []string{"dataset"}),

		CleaningOps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aadhaar_coverage_cleaning_operations_total",
			Help: "Normalizations applied to cells by dataset and operation",
		}, []string{"dataset", "operation"}),

		AggregateKeys: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aadhaar_coverage_aggregate_keys",
			Help: "Distinct keys per aggregated dataset",
		}, []string{"dataset"}),

		MergedRows: factory.NewGauge(prometheus.GaugeOpts{
			Name: "aadhaar_coverage_merged_rows",
			Help: "Rows in the merged table",
		}),

		FlaggedRows: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aadhaar_coverage_flagged_rows",
			Help: "Rows flagged true by flag",
		}, []string{"flag"}),

		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aadhaar_coverage_stage_duration_seconds",
			Help:    "Duration of each pipeline stage",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"stage"}),

		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aadhaar_coverage_failures_total",
			Help: "Failed runs by stage",
		}, []string{"stage"}),

		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: "aadhaar_coverage_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run",
		}),
	}
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveLoad records rows and cleaning operations for a dataset
func (m *Metrics) ObserveLoad(dataset string, rows int, ops map[string]int) {
	if m == nil {
		return
	}
	m.RowsLoaded.WithLabelValues(dataset).Add(float64(rows))
	for op, n := range ops {
		m.CleaningOps.WithLabelValues(dataset, op).Add(float64(n))
	}
}

// ObserveAggregate records the outcome of one dataset's aggregation
func (m *Metrics) ObserveAggregate(dataset string, keys, dropped int) {
	if m == nil {
		return
	}
	m.AggregateKeys.WithLabelValues(dataset).Set(float64(keys))
	m.RowsDropped.WithLabelValues(dataset).Add(float64(dropped))
}

// ObserveMerge records the merged row count
func (m *Metrics) ObserveMerge(rows int) {
	if m != nil {
		m.MergedRows.Set(float64(rows))
	}
}

// ObserveFlags records flagged row counts
func (m *Metrics) ObserveFlags(counts map[string]int) {
	if m == nil {
		return
	}
	for flag, n := range counts {
		m.FlaggedRows.WithLabelValues(flag).Set(float64(n))
	}
}

// ObserveStage records the duration of a stage
func (m *Metrics) ObserveStage(stage Stage, d time.Duration) {
	if m != nil {
		m.StageDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
	}
}

// RecordFailure counts a failed run
func (m *Metrics) RecordFailure(stage Stage) {
	if m != nil {
		m.Failures.WithLabelValues(string(stage)).Inc()
	}
}

// RecordSuccess stamps the last successful run
func (m *Metrics) RecordSuccess(at time.Time) {
	if m != nil {
		m.LastSuccess.Set(float64(at.Unix()))
	}
}

// WriteTextfile writes the metrics in the text exposition format for the
// node_exporter textfile collector
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
