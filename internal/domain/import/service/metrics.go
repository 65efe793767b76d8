package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects ingestion counters. A nil *Metrics records nothing.
type Metrics struct {
	imports  *prometheus.CounterVec
	rows     *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics registers the ingestion collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		imports: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statement_ingest",
			Name:      "imports_total",
			Help:      "Ingestions by final stage.",
		}, []string{"stage"}),
		rows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statement_ingest",
			Name:      "rows_total",
			Help:      "Parsed rows by outcome.",
		}, []string{"outcome"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "statement_ingest",
			Name:      "import_duration_seconds",
			Help:      "Wall time of one ingestion.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) succeeded(r *IngestionResult, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.imports.WithLabelValues(string(StageDone)).Inc()
	m.rows.WithLabelValues("new").Add(float64(r.NewCount))
	m.rows.WithLabelValues("duplicate").Add(float64(r.DuplicateCount))
	m.rows.WithLabelValues("rejected").Add(float64(len(r.RejectedRows)))
	m.duration.Observe(elapsed.Seconds())
}

func (m *Metrics) failed(stage Stage, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.imports.WithLabelValues(string(stage)).Inc()
	m.duration.Observe(elapsed.Seconds())
}
