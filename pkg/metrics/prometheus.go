package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	symbolResults   *prometheus.CounterVec
	yearsStored     prometheus.Counter
	warningsTotal   *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	chunksProcessed *prometheus.CounterVec
	latency         *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		symbolResults: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "histfill_symbols_total",
				Help: "Symbols processed, by outcome",
			},
			[]string{"result"},
		),
		yearsStored: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "histfill_years_stored_total",
				Help: "Year records written to the ticker store",
			},
		),
		warningsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "histfill_data_warnings_total",
				Help: "Years dropped by the data-quality gate, by issue",
			},
			[]string{"kind"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "histfill_errors_total",
				Help: "Errors encountered, by type",
			},
			[]string{"type"},
		),
		chunksProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "histfill_chunks_processed_total",
				Help: "Job chunks completed",
			},
			[]string{"job_id"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "histfill_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordSymbolResult records a processed symbol by outcome.
func (r *Recorder) RecordSymbolResult(result string) {
	r.symbolResults.WithLabelValues(result).Inc()
}

// RecordYearsStored records persisted year records.
func (r *Recorder) RecordYearsStored(n int) {
	r.yearsStored.Add(float64(n))
}

// RecordWarning records a data-quality warning.
func (r *Recorder) RecordWarning(kind string) {
	r.warningsTotal.WithLabelValues(kind).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordChunkProcessed records a completed chunk for a job.
func (r *Recorder) RecordChunkProcessed(jobID string) {
	r.chunksProcessed.WithLabelValues(jobID).Inc()
}

// Noop discards all measurements; tests and tooling use it.
type Noop struct{}

func (Noop) RecordSymbolResult(string)     {}
func (Noop) RecordYearsStored(int)         {}
func (Noop) RecordWarning(string)          {}
func (Noop) RecordError(string)            {}
func (Noop) RecordLatency(string, float64) {}
func (Noop) RecordChunkProcessed(string)   {}
