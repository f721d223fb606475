// pkg/pipeline/metrics.go
package pipeline

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/openbdc/subval/pkg/model"
)

// PhaseMetrics tracks wall-clock and row counts for a single phase.
type PhaseMetrics struct {
	Name      string
	StartTime time.Time
	EndTime   time.Time
	Rows      int
}

// Duration returns the elapsed time of the phase.
func (pm *PhaseMetrics) Duration() time.Duration {
	if pm.EndTime.IsZero() {
		return time.Since(pm.StartTime)
	}
	return pm.EndTime.Sub(pm.StartTime)
}

// Metrics tracks a validation run. Prometheus collectors are registered on
// the registry handed to NewMetrics; a nil registry keeps the collectors
// unregistered, which lets tests and one-shot CLI runs skip the scrape
// surface entirely.
type Metrics struct {
	mu     sync.Mutex
	logger *zap.Logger

	StartTime time.Time
	EndTime   time.Time
	Phases    []*PhaseMetrics

	RowsIngested     int
	RowsRemoved      int
	TotalCorrections int
	ErrorsBySeverity map[string]int

	rowsProcessed    prometheus.Counter
	corrections      prometheus.Counter
	validationErrors *prometheus.CounterVec
	phaseDuration    *prometheus.HistogramVec
	lookupsSent      prometheus.Counter
}

// NewMetrics creates a metrics tracker. reg may be nil.
func NewMetrics(reg prometheus.Registerer, logger *zap.Logger) *Metrics {
	m := &Metrics{
		StartTime:        time.Now(),
		ErrorsBySeverity: make(map[string]int),
		logger:           logger,
		rowsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subval",
			Name:      "rows_processed_total",
			Help:      "Subscriber rows read from input files.",
		}),
		corrections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subval",
			Name:      "corrections_total",
			Help:      "Automatic corrections applied across all runs.",
		}),
		validationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "subval",
			Name:      "validation_errors_total",
			Help:      "Validation errors recorded, labeled by severity.",
		}, []string{"severity"}),
		phaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "subval",
			Name:      "phase_duration_seconds",
			Help:      "Wall-clock duration of each pipeline phase.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"phase"}),
		lookupsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subval",
			Name:      "verification_lookups_total",
			Help:      "Addresses sent to the external verification service.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.rowsProcessed, m.corrections, m.validationErrors,
			m.phaseDuration, m.lookupsSent)
	}
	return m
}

// StartPhase begins tracking a named phase and returns it for EndPhase.
func (m *Metrics) StartPhase(name string) *PhaseMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	pm := &PhaseMetrics{Name: name, StartTime: time.Now()}
	m.Phases = append(m.Phases, pm)
	return pm
}

// EndPhase completes a phase and records its duration.
func (m *Metrics) EndPhase(pm *PhaseMetrics, rows int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pm.EndTime = time.Now()
	pm.Rows = rows
	m.phaseDuration.WithLabelValues(pm.Name).Observe(pm.Duration().Seconds())

	if m.logger != nil {
		m.logger.Info("Phase completed",
			zap.String("phase", pm.Name),
			zap.Duration("duration", pm.Duration()),
			zap.Int("rows", rows))
	}
}

// RecordIngestion records the row count read from the input file.
func (m *Metrics) RecordIngestion(rows int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RowsIngested = rows
	m.rowsProcessed.Add(float64(rows))
}

// RecordOutcome records the run-level correction and error totals.
func (m *Metrics) RecordOutcome(corrections int, errorsBySeverity map[model.Severity]int, removed int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalCorrections = corrections
	m.RowsRemoved = removed
	m.corrections.Add(float64(corrections))
	for sev, count := range errorsBySeverity {
		m.ErrorsBySeverity[sev.String()] += count
		m.validationErrors.WithLabelValues(sev.String()).Add(float64(count))
	}
}

// RecordLookups records addresses dispatched to external verification.
func (m *Metrics) RecordLookups(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookupsSent.Add(float64(count))
}

// Complete marks the run finished.
func (m *Metrics) Complete() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EndTime = time.Now()
}

// Duration returns the total run duration.
func (m *Metrics) Duration() time.Duration {
	if m.EndTime.IsZero() {
		return time.Since(m.StartTime)
	}
	return m.EndTime.Sub(m.StartTime)
}
