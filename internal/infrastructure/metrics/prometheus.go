package metrics

import (
	"context"

	"retrieval-agent/internal/application/port/output"
	"retrieval-agent/internal/domain/entity"

	"github.com/prometheus/client_golang/prometheus"
)

var _ output.EventSink = (*Sink)(nil)

const namespace = "agent"

// Sink turns run events into Prometheus metrics.
type Sink struct {
	runs         *prometheus.CounterVec
	runDuration  prometheus.Histogram
	iterations   prometheus.Histogram
	toolCalls    *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec
}

// NewSink registers the agent metrics with registerer, or with
// prometheus.DefaultRegisterer when it is nil.
func NewSink(registerer prometheus.Registerer) *Sink {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	s := &Sink{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished agent runs by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of finished runs.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_iterations",
			Help:      "Model invocations per finished run.",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Recorded tool observations by tool and result.",
		}, []string{"tool", "result"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_duration_seconds",
			Help:      "Tool call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
	}

	registerer.MustRegister(s.runs, s.runDuration, s.iterations, s.toolCalls, s.toolDuration)
	return s
}

func (s *Sink) Record(_ context.Context, ev entity.Event) {
	switch ev.Type {
	case entity.EventObservationRecorded:
		if ev.Step == nil {
			return
		}
		tool := ev.Step.Action.Tool
		obs := ev.Step.Observation
		result := "ok"
		switch {
		case obs.IsError():
			result = "error"
		case obs.Replayed:
			result = "replayed"
		}
		s.toolCalls.WithLabelValues(tool, result).Inc()
		if !obs.Replayed {
			s.toolDuration.WithLabelValues(tool).Observe(obs.Duration.Seconds())
		}

	case entity.EventFinalAnswer, entity.EventRunFailed:
		outcome := string(entity.RunStatusDone)
		if ev.Type == entity.EventRunFailed {
			outcome = string(entity.ErrorKindModel)
			if ev.Run != nil && ev.Run.ErrorKind != "" {
				outcome = string(ev.Run.ErrorKind)
			}
		}
		s.runs.WithLabelValues(outcome).Inc()
		if ev.Run != nil {
			s.iterations.Observe(float64(ev.Run.Iterations))
			if !ev.Run.FinishedAt.IsZero() {
				s.runDuration.Observe(ev.Run.FinishedAt.Sub(ev.Run.StartedAt).Seconds())
			}
		}
	}
}
