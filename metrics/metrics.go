package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics captures run and queue stats on a private registry so repeated
// constructions (tests, one-shot runs) never collide.
type Metrics struct {
	reg *prometheus.Registry

	rows          *prometheus.GaugeVec
	dedupDropped  prometheus.Gauge
	join          *prometheus.GaugeVec
	outliers      *prometheus.GaugeVec
	runDuration   prometheus.Gauge
	lastSuccess   prometheus.Gauge
	runs          *prometheus.CounterVec
	queueLength   prometheus.Gauge
	queueCapacity prometheus.Gauge
	jobs          *prometheus.CounterVec
}

// New creates a zeroed Metrics instance.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		rows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "response_report_rows",
			Help: "Input rows of the last run by table and outcome.",
		}, []string{"table", "outcome"}),
		dedupDropped: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "response_report_dedup_dropped",
			Help: "Submissions removed as near-duplicates in the last run.",
		}),
		join: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "response_report_join_submissions",
			Help: "Submissions of the last run by join outcome.",
		}, []string{"outcome"}),
		outliers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "response_report_outliers",
			Help: "Responses above the outlier threshold in the last run.",
		}, []string{"scope"}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "response_report_run_duration_seconds",
			Help: "Wall time of the last run.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "response_report_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "response_report_runs_total",
			Help: "Runs by final status.",
		}, []string{"status"}),
		queueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "response_report_queue_length",
			Help: "Triggered runs waiting in the queue.",
		}),
		queueCapacity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "response_report_queue_capacity",
			Help: "Capacity of the trigger queue.",
		}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "response_report_jobs_total",
			Help: "Queue jobs by outcome.",
		}, []string{"outcome"}),
	}
	m.reg.MustRegister(m.rows, m.dedupDropped, m.join, m.outliers, m.runDuration,
		m.lastSuccess, m.runs, m.queueLength, m.queueCapacity, m.jobs)
	return m
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// ObserveIngest records the row outcomes of one input table.
func (m *Metrics) ObserveIngest(table string, read, parseFailures, missingKeys, kept int) {
	m.rows.WithLabelValues(table, "read").Set(float64(read))
	m.rows.WithLabelValues(table, "parse_failure").Set(float64(parseFailures))
	m.rows.WithLabelValues(table, "missing_key").Set(float64(missingKeys))
	m.rows.WithLabelValues(table, "kept").Set(float64(kept))
}

func (m *Metrics) ObserveDedup(dropped int) {
	m.dedupDropped.Set(float64(dropped))
}

func (m *Metrics) ObserveJoin(joined, unmatched, invalid int) {
	m.join.WithLabelValues("joined").Set(float64(joined))
	m.join.WithLabelValues("unmatched").Set(float64(unmatched))
	m.join.WithLabelValues("invalid_pairing").Set(float64(invalid))
}

func (m *Metrics) ObserveOutliers(scope string, n int) {
	m.outliers.WithLabelValues(scope).Set(float64(n))
}

// RecordRun counts a finished run. The success timestamp only moves for runs
// whose core stages completed.
func (m *Metrics) RecordRun(status string, duration time.Duration, finished time.Time, coreOK bool) {
	m.runs.WithLabelValues(status).Inc()
	m.runDuration.Set(duration.Seconds())
	if coreOK {
		m.lastSuccess.Set(float64(finished.Unix()))
	}
}

// UpdateQueue records the current queue stats.
func (m *Metrics) UpdateQueue(length, capacity int) {
	m.queueLength.Set(float64(length))
	m.queueCapacity.Set(float64(capacity))
}

// RecordJobCompletion increments processed/failed counters based on outcome.
func (m *Metrics) RecordJobCompletion(err error) {
	m.jobs.WithLabelValues("processed").Inc()
	if err != nil {
		m.jobs.WithLabelValues("failed").Inc()
	}
}

// WriteTextfile writes every metric in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
