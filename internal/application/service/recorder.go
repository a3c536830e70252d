package service

import (
	"fmt"
	"sync"

	"retrieval-agent/internal/domain/entity"
)

// StepRecorder is the append-only step trail of one run. The executor is its
// only writer; readers get copies of the already appended prefix.
type StepRecorder struct {
	mu    sync.RWMutex
	steps []entity.Step
	index map[string]int
}

func NewStepRecorder() *StepRecorder {
	return &StepRecorder{index: make(map[string]int)}
}

// AppendTurn appends all steps of one turn or none of them.
func (r *StepRecorder) AppendTurn(steps []entity.Step) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(steps))
	for _, s := range steps {
		if s.Observation.ActionID != s.Action.ID {
			return fmt.Errorf("%w: observation %q does not belong to action %q",
				entity.ErrProtocol, s.Observation.ActionID, s.Action.ID)
		}
		if _, dup := r.index[s.Action.ID]; dup {
			return fmt.Errorf("%w: action %q already recorded", entity.ErrProtocol, s.Action.ID)
		}
		if _, dup := seen[s.Action.ID]; dup {
			return fmt.Errorf("%w: action %q issued twice in one turn", entity.ErrProtocol, s.Action.ID)
		}
		seen[s.Action.ID] = struct{}{}
	}

	for _, s := range steps {
		r.index[s.Action.ID] = len(r.steps)
		r.steps = append(r.steps, s)
	}
	return nil
}

func (r *StepRecorder) Snapshot() []entity.Step {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]entity.Step(nil), r.steps...)
}

func (r *StepRecorder) Has(actionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.index[actionID]
	return ok
}

// Replay returns the observation of an earlier successful action with the
// same tool and normalised arguments.
func (r *StepRecorder) Replay(tool, arguments string) (entity.Observation, bool) {
	want := normalizeArguments(arguments)

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.steps {
		if s.Action.Tool != tool || s.Observation.IsError() {
			continue
		}
		if normalizeArguments(s.Action.Arguments) == want {
			return s.Observation, true
		}
	}
	return entity.Observation{}, false
}

func normalizeArguments(arguments string) string {
	normalized, err := ValidateArguments(nil, arguments)
	if err != nil {
		return arguments
	}
	return normalized
}
