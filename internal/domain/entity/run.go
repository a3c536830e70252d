package entity

import (
	"fmt"
	"time"
)

type RunStatus string

const (
	RunStatusStarted          RunStatus = "started"
	RunStatusAwaitingModel    RunStatus = "awaiting_model"
	RunStatusDispatchingTools RunStatus = "dispatching_tools"
	RunStatusDone             RunStatus = "done"
	RunStatusFailed           RunStatus = "failed"
)

type Question struct {
	Text    string
	History []Message
}

// Action is a tool invocation proposed by the model. Index is the position of
// the action inside its turn.
type Action struct {
	ID        string `json:"id"`
	Tool      string `json:"tool"`
	Arguments string `json:"arguments"`
	Iteration int    `json:"iteration"`
	Index     int    `json:"index"`
}

type Observation struct {
	ActionID string        `json:"action_id"`
	Content  string        `json:"content,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
	Replayed bool          `json:"replayed,omitempty"`
}

func (o Observation) IsError() bool {
	return o.Error != ""
}

// Text renders the observation the way it is fed back to the model.
func (o Observation) Text() string {
	if o.IsError() {
		return "Error: " + o.Error
	}
	return o.Content
}

type Step struct {
	Action      Action      `json:"action"`
	Observation Observation `json:"observation"`
}

type AgentRun struct {
	ID         string    `json:"id"`
	Question   string    `json:"question"`
	Steps      []Step    `json:"steps"`
	Answer     string    `json:"answer,omitempty"`
	Status     RunStatus `json:"status"`
	ErrorKind  ErrorKind `json:"error_kind,omitempty"`
	Error      string    `json:"error,omitempty"`
	Iterations int       `json:"iterations"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

func NewAgentRun(id string, q Question, now time.Time) *AgentRun {
	return &AgentRun{
		ID:        id,
		Question:  q.Text,
		Status:    RunStatusStarted,
		StartedAt: now,
	}
}

func (r *AgentRun) Finished() bool {
	return r.Status == RunStatusDone || r.Status == RunStatusFailed
}

// Finalize closes the run with an answer. It refuses to finish successfully
// when any recorded action lacks its observation.
func (r *AgentRun) Finalize(answer string, steps []Step, iterations int, now time.Time) error {
	if r.Finished() {
		return fmt.Errorf("%w: run %s already finalized", ErrProtocol, r.ID)
	}
	if err := VerifySteps(steps); err != nil {
		return err
	}
	r.Steps = steps
	r.Answer = answer
	r.Iterations = iterations
	r.Status = RunStatusDone
	r.FinishedAt = now
	return nil
}

func (r *AgentRun) Fail(kind ErrorKind, err error, steps []Step, iterations int, now time.Time) {
	r.Steps = steps
	r.Iterations = iterations
	r.Status = RunStatusFailed
	r.ErrorKind = kind
	if err != nil {
		r.Error = err.Error()
	}
	r.FinishedAt = now
}

// Clone returns a copy that shares nothing mutable with r.
func (r *AgentRun) Clone() *AgentRun {
	if r == nil {
		return nil
	}
	out := *r
	out.Steps = append([]Step(nil), r.Steps...)
	return &out
}

// VerifySteps checks that every action has exactly one observation.
func VerifySteps(steps []Step) error {
	seen := make(map[string]struct{}, len(steps))
	for i, s := range steps {
		if s.Action.ID == "" {
			return fmt.Errorf("%w: step %d has no action id", ErrProtocol, i)
		}
		if s.Observation.ActionID != s.Action.ID {
			return fmt.Errorf("%w: step %d observation %q does not match action %q",
				ErrProtocol, i, s.Observation.ActionID, s.Action.ID)
		}
		if _, dup := seen[s.Action.ID]; dup {
			return fmt.Errorf("%w: action %q observed more than once", ErrProtocol, s.Action.ID)
		}
		seen[s.Action.ID] = struct{}{}
	}
	return nil
}
