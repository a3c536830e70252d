package metrics

import (
	"context"
	"testing"
	"time"

	"retrieval-agent/internal/domain/entity"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSink_RecordsToolAndRunMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := NewSink(reg)
	ctx := context.Background()

	observe := func(tool string, obs entity.Observation) {
		sink.Record(ctx, entity.Event{
			Type: entity.EventObservationRecorded,
			Step: &entity.Step{Action: entity.Action{ID: obs.ActionID, Tool: tool}, Observation: obs},
		})
	}
	observe("web_search", entity.Observation{ActionID: "a1", Content: "ok", Duration: 200 * time.Millisecond})
	observe("web_search", entity.Observation{ActionID: "a2", Error: "rate limited"})
	observe("sql_query", entity.Observation{ActionID: "a3", Content: "rows", Replayed: true})

	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	sink.Record(ctx, entity.Event{Type: entity.EventFinalAnswer, Run: &entity.AgentRun{
		Status: entity.RunStatusDone, Iterations: 2, StartedAt: start, FinishedAt: start.Add(3 * time.Second),
	}})
	sink.Record(ctx, entity.Event{Type: entity.EventRunFailed, Run: &entity.AgentRun{
		Status: entity.RunStatusFailed, ErrorKind: entity.ErrorKindResourceExhausted, Iterations: 10,
	}})

	assert.Equal(t, 1.0, testutil.ToFloat64(sink.toolCalls.WithLabelValues("web_search", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.toolCalls.WithLabelValues("web_search", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.toolCalls.WithLabelValues("sql_query", "replayed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.runs.WithLabelValues("done")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.runs.WithLabelValues("resource_exhausted")))
	assert.Equal(t, 1, testutil.CollectAndCount(sink.runDuration))
	assert.Equal(t, 1, testutil.CollectAndCount(sink.toolDuration))
}

func TestSink_IgnoresStreamingEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := NewSink(reg)

	sink.Record(context.Background(), entity.Event{Type: entity.EventAnswerDelta, Delta: "hi"})
	sink.Record(context.Background(), entity.Event{Type: entity.EventActionIssued, Action: &entity.Action{Tool: "web_search"}})

	assert.Equal(t, 0, testutil.CollectAndCount(sink.toolCalls))
	assert.Equal(t, 0, testutil.CollectAndCount(sink.runs))
}
