package telemetry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/GoCodeAlone/release-action/bytebase"
)

// Metrics holds the counters of one run. A CI step has no scrape endpoint,
// so the registry is pushed to a pushgateway at the end of the run.
type Metrics struct {
	registry *prometheus.Registry

	Files    *prometheus.CounterVec
	Advices  *prometheus.CounterVec
	Requests *prometheus.CounterVec
	Sheets   prometheus.Counter
	Runs     *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewMetrics creates Metrics with its own Prometheus registry.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migration_files_total",
			Help:      "Migration files collected, by change type",
		}, []string{"change_type"}),
		Advices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "check_advices_total",
			Help:      "Release check advices, by status",
		}, []string{"status"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_requests_total",
			Help:      "Requests to the release service, by operation and status code",
		}, []string{"op", "status_code"}),
		Sheets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sheets_created_total",
			Help:      "Sheets created",
		}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Runs, by command and outcome",
		}, []string{"command", "outcome"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of runs in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
	}
	reg.MustRegister(m.Files, m.Advices, m.Requests, m.Sheets, m.Runs, m.Duration)
	return m
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RecordFile counts a collected migration file.
func (m *Metrics) RecordFile(changeType bytebase.ChangeType) {
	m.Files.WithLabelValues(string(changeType)).Inc()
}

// RecordSheets counts created sheets.
func (m *Metrics) RecordSheets(n int) { m.Sheets.Add(float64(n)) }

// RecordAdvice counts one check advice.
func (m *Metrics) RecordAdvice(status string) {
	m.Advices.WithLabelValues(status).Inc()
}

// ObserveRequest counts a request to the release service.
func (m *Metrics) ObserveRequest(op string, statusCode int) {
	m.Requests.WithLabelValues(op, strconv.Itoa(statusCode)).Inc()
}

// RecordRun records the outcome and duration of a command.
func (m *Metrics) RecordRun(command, outcome string, d time.Duration) {
	m.Runs.WithLabelValues(command, outcome).Inc()
	m.Duration.WithLabelValues(command).Observe(d.Seconds())
}

// Push sends the registry to the pushgateway at url under job, replacing
// metrics with the same grouping key.
func (m *Metrics) Push(ctx context.Context, url, job string, grouping map[string]string) error {
	p := push.New(url, job).Gatherer(m.registry)
	for k, v := range grouping {
		p = p.Grouping(k, v)
	}
	if err := p.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
