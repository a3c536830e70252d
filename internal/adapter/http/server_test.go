package http

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"retrieval-agent/internal/domain/entity"
	"retrieval-agent/internal/infrastructure/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	run      *entity.AgentRun
	err      error
	events   []entity.Event
	question entity.Question
}

func (f *fakeRunner) Invoke(_ context.Context, q entity.Question) (*entity.AgentRun, error) {
	f.question = q
	return f.run, f.err
}

func (f *fakeRunner) Run(ctx context.Context, q entity.Question) <-chan entity.Event {
	f.question = q
	ch := make(chan entity.Event)
	go func() {
		defer close(ch)
		for _, ev := range f.events {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func doneRun() *entity.AgentRun {
	return &entity.AgentRun{
		ID:     "run-1",
		Status: entity.RunStatusDone,
		Answer: "About 120 EUR per night.",
		Steps: []entity.Step{{
			Action:      entity.Action{ID: "call_1", Tool: "web_search", Arguments: `{"query":"madrid hotels"}`, Iteration: 1},
			Observation: entity.Observation{ActionID: "call_1", Content: "1. Hotel"},
		}},
		Iterations: 2,
	}
}

func TestInvoke_ReturnsRun(t *testing.T) {
	runner := &fakeRunner{run: doneRun()}
	srv := httptest.NewServer(NewServer(runner, logger.NewNop(), Config{}).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/invoke", "application/json", strings.NewReader(
		`{"question":"Hotel prices in Madrid?","history":[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body runResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "run-1", body.RunID)
	assert.Equal(t, entity.RunStatusDone, body.Status)
	assert.Equal(t, "About 120 EUR per night.", body.Answer)
	require.Len(t, body.Steps, 1)
	assert.Equal(t, "call_1", body.Steps[0].Observation.ActionID)

	assert.Equal(t, "Hotel prices in Madrid?", runner.question.Text)
	require.Len(t, runner.question.History, 2)
	assert.Equal(t, entity.RoleAssistant, runner.question.History[1].Role)
}

func TestInvoke_FailureStatus(t *testing.T) {
	partial := &entity.AgentRun{ID: "run-2", Status: entity.RunStatusFailed, ErrorKind: entity.ErrorKindResourceExhausted, Error: "max iterations"}
	runner := &fakeRunner{run: partial, err: &entity.RunError{Kind: entity.ErrorKindResourceExhausted, Err: entity.ErrMaxIterations, Run: partial}}
	srv := httptest.NewServer(NewServer(runner, logger.NewNop(), Config{}).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/invoke", "application/json", strings.NewReader(`{"question":"q"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
	var body runResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, entity.ErrorKindResourceExhausted, body.ErrorKind)
	assert.Equal(t, []entity.Step{}, body.Steps)
}

func TestInvoke_BadRequests(t *testing.T) {
	srv := httptest.NewServer(NewServer(&fakeRunner{}, logger.NewNop(), Config{}).Handler())
	defer srv.Close()

	for _, body := range []string{`not json`, `{"question":"q","history":[{"role":"system","content":"x"}]}`} {
		resp, err := http.Post(srv.URL+"/v1/invoke", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestRuns_StreamsEventsInOrder(t *testing.T) {
	action := entity.Action{ID: "call_1", Tool: "currency_convert", Arguments: `{}`, Iteration: 1}
	runner := &fakeRunner{events: []entity.Event{
		{Type: entity.EventRunStarted, RunID: "run-3"},
		{Type: entity.EventActionIssued, RunID: "run-3", Iteration: 1, Pending: true, Action: &action},
		{Type: entity.EventObservationRecorded, RunID: "run-3", Iteration: 1, Step: &entity.Step{Action: action, Observation: entity.Observation{ActionID: "call_1", Content: "ok"}}},
		{Type: entity.EventAnswerDelta, RunID: "run-3", Iteration: 2, Delta: "Done"},
		{Type: entity.EventRunFailed, RunID: "run-3", Iteration: 2, Err: entity.ErrModel},
	}}
	srv := httptest.NewServer(NewServer(runner, logger.NewNop(), Config{}).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/runs", "application/json", strings.NewReader(`{"question":"convert"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var types []string
	var last map[string]any
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		last = map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(data), &last))
		types = append(types, fmt.Sprint(last["type"]))
	}

	assert.Equal(t, []string{"run_started", "action_issued", "observation_recorded", "answer_delta", "run_failed"}, types)
	assert.Equal(t, entity.ErrModel.Error(), last["error"])
}

func TestRuns_Heartbeat(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	runner := &blockingRunner{release: block}
	srv := httptest.NewServer(NewServer(runner, logger.NewNop(), Config{Heartbeat: 10 * time.Millisecond}).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/runs", "application/json", strings.NewReader(`{"question":"slow"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": heartbeat\n", line)
}

type blockingRunner struct {
	fakeRunner
	release chan struct{}
}

func (b *blockingRunner) Run(ctx context.Context, _ entity.Question) <-chan entity.Event {
	ch := make(chan entity.Event)
	go func() {
		defer close(ch)
		select {
		case <-b.release:
		case <-ctx.Done():
		}
	}()
	return ch
}

func TestHealthzAndMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "agent_runs_total 1\n")
	})
	srv := httptest.NewServer(NewServer(&fakeRunner{}, logger.NewNop(), Config{Metrics: metrics, AccessLog: true}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusForKind(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusForKind(entity.ErrorKindInvalidInput))
	assert.Equal(t, http.StatusBadGateway, statusForKind(entity.ErrorKindProtocol))
	assert.Equal(t, http.StatusServiceUnavailable, statusForKind(entity.ErrorKindCancelled))
}
