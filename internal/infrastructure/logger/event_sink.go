package logger

import (
	"context"

	"retrieval-agent/internal/application/port/output"
	"retrieval-agent/internal/domain/entity"
)

var _ output.EventSink = (*EventSink)(nil)

// EventSink writes run events to a logger. Answer deltas are logged at debug
// level only.
type EventSink struct {
	logger output.LoggerPort
}

func NewEventSink(logger output.LoggerPort) *EventSink {
	return &EventSink{logger: logger}
}

func (s *EventSink) Record(_ context.Context, ev entity.Event) {
	log := s.logger.WithFields(map[string]any{
		"run_id":    ev.RunID,
		"event":     string(ev.Type),
		"iteration": ev.Iteration,
	})

	switch ev.Type {
	case entity.EventRunStarted:
		log.Info("Run event")
	case entity.EventAnswerDelta:
		log.Debug("Run event", "delta", ev.Delta)
	case entity.EventActionIssued:
		if ev.Action != nil {
			log.Info("Run event", "action_id", ev.Action.ID, "tool", ev.Action.Tool, "args", ev.Action.Arguments)
		}
	case entity.EventObservationRecorded:
		if ev.Step != nil {
			obs := ev.Step.Observation
			log.Info("Run event",
				"action_id", obs.ActionID,
				"tool", ev.Step.Action.Tool,
				"error", obs.Error,
				"replayed", obs.Replayed,
				"duration", obs.Duration,
				"content_len", len(obs.Content))
		}
	case entity.EventFinalAnswer:
		if ev.Run != nil {
			log.Info("Run event", "steps", len(ev.Run.Steps), "answer", ev.Run.Answer)
		}
	case entity.EventRunFailed:
		log.Error("Run event", "error", ev.Err)
	}
}
