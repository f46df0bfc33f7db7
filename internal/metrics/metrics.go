// Package metrics exposes training progress as Prometheus metrics.
//
// Every Recorder owns its own registry, so several trainers (or tests) can run in one
// process. A nil *Recorder is valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "sam"

// Recorder collects per-step and per-epoch training metrics.
type Recorder struct {
	registry     *prometheus.Registry
	steps        prometheus.Counter
	epochs       prometheus.Counter
	loss         prometheus.Gauge
	lossHist     prometheus.Histogram
	gradNorm     prometheus.Gauge
	stepDuration prometheus.Histogram
	lr           *prometheus.GaugeVec
	failures     *prometheus.CounterVec
}

// New creates a Recorder registering its collectors under namespace.
func New(namespace string) *Recorder {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		steps: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Optimizer steps completed.",
		}),
		epochs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "epochs_total",
			Help:      "Training epochs completed.",
		}),
		loss: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "loss",
			Help:      "Loss at the unperturbed point of the last step.",
		}),
		lossHist: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_loss",
			Help:      "Distribution of per-step losses.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
		}),
		gradNorm: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "grad_norm",
			Help:      "Gradient norm used to scale the last ascent step.",
		}),
		stepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Wall time of one optimizer step, both evaluations included.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16), // 0.1ms to ~3s
		}),
		lr: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "learning_rate",
			Help:      "Current learning rate per parameter group.",
		}, []string{"group"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_failures_total",
			Help:      "Optimizer steps that returned an error.",
		}, []string{"reason"}),
	}
}

// Registry returns the registry holding the collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveStep records one completed optimizer step.
func (r *Recorder) ObserveStep(loss, gradNorm float64, d time.Duration) {
	if r == nil {
		return
	}
	r.steps.Inc()
	r.loss.Set(loss)
	r.lossHist.Observe(loss)
	r.gradNorm.Set(gradNorm)
	r.stepDuration.Observe(d.Seconds())
}

// StepFailed counts a failed step under reason.
func (r *Recorder) StepFailed(reason string) {
	if r == nil {
		return
	}
	r.failures.WithLabelValues(reason).Inc()
}

// EpochDone counts a completed epoch.
func (r *Recorder) EpochDone() {
	if r == nil {
		return
	}
	r.epochs.Inc()
}

// SetLR records the learning rate of every group.
func (r *Recorder) SetLR(lrs []float64) {
	if r == nil {
		return
	}
	for i, lr := range lrs {
		r.lr.WithLabelValues(strconv.Itoa(i)).Set(lr)
	}
}

// WriteTextfile writes the current metrics in the Prometheus text format, for the
// node_exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
