package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	PairsScored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_pairs_scored_total",
			Help: "Candidate/job pairs scored, by whether the record was created or updated",
		},
		[]string{"result"},
	)

	ScoreDistribution = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "match_score",
			Help:    "Distribution of computed match scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	NotifyOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_notify_outcomes_total",
			Help: "Threshold evaluation outcomes",
		},
		[]string{"outcome"},
	)

	PairErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_pair_errors_total",
			Help: "Per-pair failures by error kind",
		},
		[]string{"kind"},
	)

	BatchesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "match_batches_in_flight",
			Help: "Number of batch sweeps currently running",
		},
	)
)

// Recorder is what the pipeline reports to. The zero-dependency NopRecorder
// keeps tests free of the global registry.
type Recorder interface {
	PairScored(created bool, score int)
	Outcome(outcome string)
	PairError(kind string)
	BatchStarted()
	BatchFinished()
}

type promRecorder struct{}

// NewPrometheusRecorder reports to the package-level collectors above.
func NewPrometheusRecorder() Recorder { return promRecorder{} }

func (promRecorder) PairScored(created bool, score int) {
	result := "updated"
	if created {
		result = "created"
	}
	PairsScored.WithLabelValues(result).Inc()
	ScoreDistribution.Observe(float64(score))
}

func (promRecorder) Outcome(outcome string) { NotifyOutcomes.WithLabelValues(outcome).Inc() }
func (promRecorder) PairError(kind string)  { PairErrors.WithLabelValues(kind).Inc() }
func (promRecorder) BatchStarted()          { BatchesInFlight.Inc() }
func (promRecorder) BatchFinished()         { BatchesInFlight.Dec() }

type NopRecorder struct{}

func (NopRecorder) PairScored(bool, int) {}
func (NopRecorder) Outcome(string)       {}
func (NopRecorder) PairError(string)     {}
func (NopRecorder) BatchStarted()        {}
func (NopRecorder) BatchFinished()       {}
