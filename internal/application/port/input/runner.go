package input

import (
	"context"

	"retrieval-agent/internal/domain/entity"
)

type Runner interface {
	// Run starts a run and streams its events. The channel is closed after
	// the terminal event. Cancel ctx to abandon the run.
	Run(ctx context.Context, question entity.Question) <-chan entity.Event
	// Invoke blocks until the run finishes. On failure the returned error is
	// an *entity.RunError and the run carries the partial step trail.
	Invoke(ctx context.Context, question entity.Question) (*entity.AgentRun, error)
}
