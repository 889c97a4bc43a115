// internal/common/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Recorder holds the workflow metrics of a single run. Each Recorder owns a
// private registry so a run never exposes the process-global collectors.
type Recorder struct {
	registry *prometheus.Registry

	StepTotal        *prometheus.CounterVec
	StepDuration     *prometheus.HistogramVec
	PollAttempts     prometheus.Counter
	TransientRetries prometheus.Counter
}

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		StepTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "canary_workflow_step_total",
				Help: "Total number of workflow steps by outcome",
			},
			[]string{"step", "outcome"},
		),
		StepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "canary_workflow_step_duration_seconds",
				Help:    "Duration of workflow steps in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300},
			},
			[]string{"step"},
		),
		PollAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "canary_poll_attempts_total",
			Help: "Total number of assessment status polls",
		}),
		TransientRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "canary_poll_transient_retries_total",
			Help: "Total number of poll requests retried after a transient failure",
		}),
	}
}

// ObserveStep records one finished workflow step.
func (r *Recorder) ObserveStep(step string, err error, d time.Duration) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	r.StepTotal.WithLabelValues(step, outcome).Inc()
	r.StepDuration.WithLabelValues(step).Observe(d.Seconds())
}

func (r *Recorder) IncPollAttempt() {
	r.PollAttempts.Inc()
}

func (r *Recorder) IncTransientRetry() {
	r.TransientRetries.Inc()
}

// Registry exposes the private registry, e.g. for the OTel prometheus exporter.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes all collected metrics in the node_exporter textfile
// collector format. The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
