package output

import (
	"context"

	"retrieval-agent/internal/domain/entity"
)

// EventSink receives every event of every run, in emission order. Sinks are
// called synchronously from the run goroutine and must not block.
type EventSink interface {
	Record(ctx context.Context, event entity.Event)
}
