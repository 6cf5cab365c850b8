// Package metrics provides Prometheus metrics for the line watcher.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the watcher's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	scansTotal      prometheus.Counter
	scanErrorsTotal prometheus.Counter
	changesTotal    *prometheus.CounterVec
	countFailures   prometheus.Counter
	tasksInflight   prometheus.Gauge
	snapshotFiles   prometheus.Gauge
	countDuration   prometheus.Histogram
}

// New registers the watcher's collectors with reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		scansTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "linewatch_scans_total",
			Help: "Total number of directory scans",
		}),
		scanErrorsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "linewatch_scan_errors_total",
			Help: "Total number of directory scans that failed",
		}),
		changesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "linewatch_changes_total",
			Help: "Total number of applied file changes",
		}, []string{"action"}),
		countFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "linewatch_count_failures_total",
			Help: "Total number of line counts that failed",
		}),
		tasksInflight: f.NewGauge(prometheus.GaugeOpts{
			Name: "linewatch_tasks_inflight",
			Help: "Number of outstanding per-file computations",
		}),
		snapshotFiles: f.NewGauge(prometheus.GaugeOpts{
			Name: "linewatch_snapshot_files",
			Help: "Number of files in the current snapshot",
		}),
		countDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "linewatch_count_duration_seconds",
			Help:    "Time to count the lines of one file",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// RecordScan records a directory scan and whether it failed
func (m *Metrics) RecordScan(err error) {
	if m == nil {
		return
	}
	m.scansTotal.Inc()
	if err != nil {
		m.scanErrorsTotal.Inc()
	}
}

// RecordChange records an applied change by action name
func (m *Metrics) RecordChange(action string) {
	if m == nil {
		return
	}
	m.changesTotal.WithLabelValues(action).Inc()
}

// RecordCountFailure records a failed line count
func (m *Metrics) RecordCountFailure() {
	if m == nil {
		return
	}
	m.countFailures.Inc()
}

// ObserveCount records how long a line count took
func (m *Metrics) ObserveCount(d time.Duration) {
	if m == nil {
		return
	}
	m.countDuration.Observe(d.Seconds())
}

// SetInflight sets the number of outstanding computations
func (m *Metrics) SetInflight(n int) {
	if m == nil {
		return
	}
	m.tasksInflight.Set(float64(n))
}

// SetSnapshotFiles sets the size of the current snapshot
func (m *Metrics) SetSnapshotFiles(n int) {
	if m == nil {
		return
	}
	m.snapshotFiles.Set(float64(n))
}
