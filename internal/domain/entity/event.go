package entity

type EventType string

const (
	EventRunStarted          EventType = "run_started"
	EventAnswerDelta         EventType = "answer_delta"
	EventActionIssued        EventType = "action_issued"
	EventObservationRecorded EventType = "observation_recorded"
	EventFinalAnswer         EventType = "final_answer"
	EventRunFailed           EventType = "run_failed"
)

// Event is one item of a run's stream. Action is set on action_issued
// (Pending is always true there), Step on observation_recorded, Run on the
// two terminal events.
type Event struct {
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id"`
	Iteration int       `json:"iteration,omitempty"`
	Pending   bool      `json:"pending,omitempty"`
	Action    *Action   `json:"action,omitempty"`
	Step      *Step     `json:"step,omitempty"`
	Delta     string    `json:"delta,omitempty"`
	Run       *AgentRun `json:"run,omitempty"`
	Err       error     `json:"-"`
}

func (e Event) Terminal() bool {
	return e.Type == EventFinalAnswer || e.Type == EventRunFailed
}
