package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the transcription pipeline.
type Metrics struct {
	JobsCreated      prometheus.Counter
	JobsCompleted    prometheus.Counter
	JobsFailed       prometheus.Counter
	JobsDeleted      prometheus.Counter
	PipelineDuration prometheus.Histogram
}

// New registers the pipeline collectors on the given registerer. Tests
// pass a fresh registry so repeated setup does not collide.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		JobsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcription_jobs_created_total",
			Help: "Number of transcription jobs accepted.",
		}),
		JobsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcription_jobs_completed_total",
			Help: "Number of jobs that produced a transcript.",
		}),
		JobsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcription_jobs_failed_total",
			Help: "Number of jobs that ended in the error state.",
		}),
		JobsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcription_jobs_deleted_total",
			Help: "Number of job records removed on request.",
		}),
		PipelineDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "transcription_pipeline_duration_seconds",
			Help:    "Wall time from job creation to a terminal state.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
}
