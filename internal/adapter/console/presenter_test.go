package console

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"retrieval-agent/internal/domain/entity"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	m.Run()
}

func TestPresenter_RendersRun(t *testing.T) {
	var buf bytes.Buffer
	p := NewPresenter(&buf, 10)
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	action := entity.Action{ID: "c1", Tool: "currency_convert", Arguments: `{"amount":50,"from":"USD","to":"EUR"}`, Iteration: 1}

	for _, ev := range []entity.Event{
		{Type: entity.EventRunStarted, RunID: "r1"},
		{Type: entity.EventAnswerDelta, RunID: "r1", Iteration: 1, Delta: "Converting "},
		{Type: entity.EventAnswerDelta, RunID: "r1", Iteration: 1, Delta: "first."},
		{Type: entity.EventActionIssued, RunID: "r1", Iteration: 1, Pending: true, Action: &action},
		{Type: entity.EventObservationRecorded, RunID: "r1", Iteration: 1, Step: &entity.Step{
			Action: action, Observation: entity.Observation{ActionID: "c1", Content: "50.00 USD = 46.00 EUR"},
		}},
		{Type: entity.EventAnswerDelta, RunID: "r1", Iteration: 2, Delta: "46 EUR"},
		{Type: entity.EventFinalAnswer, RunID: "r1", Iteration: 2, Run: &entity.AgentRun{
			Answer: "46 EUR", Steps: []entity.Step{{}}, Iterations: 2, StartedAt: start, FinishedAt: start.Add(1500 * time.Millisecond),
		}},
	} {
		p.Render(ev)
	}

	out := buf.String()
	assert.Contains(t, out, "run r1")
	assert.Contains(t, out, "━━━ Iteration 1/10 ━━━")
	assert.Contains(t, out, "━━━ Iteration 2/10 ━━━")
	assert.Contains(t, out, "💭 Converting first.")
	assert.Contains(t, out, "💱 Currency\n   50.00 USD → EUR")
	assert.Contains(t, out, "✓ 50.00 USD = 46.00 EUR")
	assert.Contains(t, out, "Answer:\n46 EUR\n")
	assert.Contains(t, out, "1 steps, 2 iterations, 1.5s")
}

func TestPresenter_ErrorsAndFailure(t *testing.T) {
	var buf bytes.Buffer
	p := NewPresenter(&buf, 3)
	action := entity.Action{ID: "c1", Tool: "sql_query", Arguments: `{"query":"DELETE FROM hotels"}`, Iteration: 1}

	p.Render(entity.Event{Type: entity.EventObservationRecorded, Iteration: 1, Step: &entity.Step{
		Action: action, Observation: entity.Observation{ActionID: "c1", Error: "only read-only statements are allowed"},
	}})
	p.Render(entity.Event{Type: entity.EventRunFailed, Iteration: 3, Err: errors.New("max iterations reached")})

	out := buf.String()
	assert.Contains(t, out, "❌ Error: only read-only statements are allowed")
	assert.Contains(t, out, "❌ Run failed: max iterations reached")
}

func TestPresenter_ShowEvaluation(t *testing.T) {
	var buf bytes.Buffer
	p := NewPresenter(&buf, 3)

	p.ShowEvaluation(&entity.EvaluationResult{Success: false, Confidence: 0.3, Issues: []string{"no source cited"}})

	assert.Contains(t, buf.String(), "✗ Answer rejected (confidence 0.30)")
	assert.Contains(t, buf.String(), "- no source cited")
}

func TestFormatResult(t *testing.T) {
	assert.Equal(t, "2 rows (truncated)", formatResult("sql_query", `{"columns":["a"],"rows":[[1],[2]],"truncated":true}`))
	assert.Equal(t, "1. Madrid hotels", formatResult("web_search", "1. Madrid hotels\n   https://x"))
	assert.Equal(t, "abc", formatResult("unknown", "abc"))
}
