package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"retrieval-agent/internal/application/port/input"
	"retrieval-agent/internal/application/port/output"
	"retrieval-agent/internal/application/service"
	"retrieval-agent/internal/domain/entity"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ input.Runner = (*UseCase)(nil)

const (
	tracerName  = "retrieval-agent/executor"
	eventBuffer = 16

	correctivePrompt = "Your last reply contained neither a tool call nor an answer. " +
		"Either call one of the available tools or reply with the final answer."
)

type UseCase struct {
	llm          output.LLMPort
	tools        output.ToolRegistry
	logger       output.LoggerPort
	systemPrompt string
	cfg          Config
	sinks        []output.EventSink
	tracer       trace.Tracer

	newID func() string
	now   func() time.Time
}

func New(
	llm output.LLMPort,
	tools output.ToolRegistry,
	logger output.LoggerPort,
	systemPrompt string,
	cfg Config,
	sinks ...output.EventSink,
) *UseCase {
	return &UseCase{
		llm:          llm,
		tools:        tools,
		logger:       logger,
		systemPrompt: systemPrompt,
		cfg:          cfg.withDefaults(),
		sinks:        sinks,
		tracer:       otel.Tracer(tracerName),
		newID:        uuid.NewString,
		now:          time.Now,
	}
}

func (uc *UseCase) Config() Config {
	return uc.cfg
}

func (uc *UseCase) Run(ctx context.Context, question entity.Question) <-chan entity.Event {
	events := make(chan entity.Event, eventBuffer)
	go func() {
		defer close(events)
		_, _ = uc.execute(ctx, question, newEmitter(ctx, events, uc.sinks))
	}()
	return events
}

func (uc *UseCase) Invoke(ctx context.Context, question entity.Question) (*entity.AgentRun, error) {
	return uc.execute(ctx, question, newEmitter(ctx, nil, uc.sinks))
}

// execute drives one run through the state machine. It is the only writer of
// the run and its step recorder.
func (uc *UseCase) execute(parent context.Context, question entity.Question, em *emitter) (*entity.AgentRun, error) {
	runID := uc.newID()
	run := entity.NewAgentRun(runID, question, uc.now())
	log := uc.logger.WithField("run_id", runID)

	ctx, span := uc.tracer.Start(parent, "agent.run", trace.WithAttributes(
		attribute.String("agent.run_id", runID),
		attribute.Int("agent.max_iterations", uc.cfg.MaxIterations),
	))
	defer span.End()

	runCtx, cancel := context.WithTimeout(ctx, uc.cfg.RunTimeout)
	defer cancel()

	recorder := service.NewStepRecorder()
	iteration := 0

	fail := func(kind entity.ErrorKind, err error) (*entity.AgentRun, error) {
		run.Fail(kind, err, recorder.Snapshot(), iteration, uc.now())
		snapshot := run.Clone()
		runErr := &entity.RunError{Kind: kind, Err: err, Run: snapshot}

		span.RecordError(runErr)
		span.SetStatus(codes.Error, string(kind))
		log.Error("Run failed", "kind", kind, "error", err, "steps", len(snapshot.Steps), "iterations", iteration)

		em.emit(entity.Event{Type: entity.EventRunFailed, RunID: runID, Iteration: iteration, Run: snapshot, Err: runErr})
		return snapshot, runErr
	}

	log.Info("Run started", "question", question.Text)
	em.emit(entity.Event{Type: entity.EventRunStarted, RunID: runID})

	if strings.TrimSpace(question.Text) == "" {
		return fail(entity.ErrorKindInvalidInput, entity.ErrEmptyQuestion)
	}

	messages := uc.initialMessages(question)
	toolDefs := uc.tools.Definitions()
	protocolErrors := 0

	for iteration < uc.cfg.MaxIterations {
		iteration++
		run.Status = entity.RunStatusAwaitingModel
		log.Debug("Starting iteration", "iteration", iteration)

		turn := iteration
		resp, err := uc.llm.ChatStream(runCtx, output.ChatRequest{
			Messages:    messages,
			Tools:       toolDefs,
			Temperature: uc.cfg.Temperature,
		}, func(chunk output.StreamChunk) {
			if chunk.Content != "" {
				em.emit(entity.Event{Type: entity.EventAnswerDelta, RunID: runID, Iteration: turn, Delta: chunk.Content})
			}
		})
		if err != nil {
			if ctxErr := uc.contextError(ctx, runCtx); ctxErr != nil {
				return fail(entity.KindOf(ctxErr), ctxErr)
			}
			return fail(entity.ErrorKindModel, fmt.Errorf("%w: %v", entity.ErrModel, err))
		}

		msg := resp.Message
		msg.Role = entity.RoleAssistant

		if len(msg.ToolCalls) == 0 {
			if strings.TrimSpace(msg.Content) == "" {
				protocolErrors++
				log.Warn("Model returned neither tool calls nor an answer", "iteration", iteration, "protocolErrors", protocolErrors)
				if protocolErrors > uc.cfg.MaxProtocolErrors {
					return fail(entity.ErrorKindProtocol, fmt.Errorf(
						"%w: model returned neither tool calls nor an answer %d times in a row", entity.ErrProtocol, protocolErrors))
				}
				messages = append(messages, entity.Message{Role: entity.RoleUser, Content: correctivePrompt})
				continue
			}

			if err := run.Finalize(msg.Content, recorder.Snapshot(), iteration, uc.now()); err != nil {
				return fail(entity.ErrorKindProtocol, err)
			}
			snapshot := run.Clone()
			span.SetAttributes(attribute.Int("agent.steps", len(snapshot.Steps)), attribute.Int("agent.iterations", iteration))
			log.Info("Run completed", "iterations", iteration, "steps", len(snapshot.Steps))
			em.emit(entity.Event{Type: entity.EventFinalAnswer, RunID: runID, Iteration: iteration, Run: snapshot})
			return snapshot, nil
		}

		run.Status = entity.RunStatusDispatchingTools
		actions := uc.toActions(recorder, msg.ToolCalls, iteration)
		for i := range msg.ToolCalls {
			msg.ToolCalls[i].ID = actions[i].ID
		}
		for i := range actions {
			action := actions[i]
			em.emit(entity.Event{Type: entity.EventActionIssued, RunID: runID, Iteration: iteration, Pending: true, Action: &action})
		}

		results := uc.dispatch(runCtx, log, recorder, actions)

		if ctxErr := uc.contextError(ctx, runCtx); ctxErr != nil {
			log.Warn("Discarding partial turn", "iteration", iteration, "actions", len(actions))
			return fail(entity.KindOf(ctxErr), ctxErr)
		}

		steps := make([]entity.Step, len(actions))
		unknown := 0
		for i, res := range results {
			steps[i] = entity.Step{Action: actions[i], Observation: res.observation}
			if res.unknownTool {
				unknown++
			}
		}
		if err := recorder.AppendTurn(steps); err != nil {
			return fail(entity.ErrorKindProtocol, err)
		}

		messages = append(messages, msg)
		for i := range steps {
			step := steps[i]
			em.emit(entity.Event{Type: entity.EventObservationRecorded, RunID: runID, Iteration: iteration, Step: &step})
			messages = append(messages, entity.Message{
				Role:       entity.RoleTool,
				ToolCallID: step.Action.ID,
				Name:       step.Action.Tool,
				Content:    step.Observation.Text(),
			})
		}

		if unknown > 0 {
			protocolErrors++
			log.Warn("Model called unknown tools", "count", unknown, "protocolErrors", protocolErrors)
			if protocolErrors > uc.cfg.MaxProtocolErrors {
				return fail(entity.ErrorKindProtocol, fmt.Errorf(
					"%w: model referenced unknown tools %d turns in a row", entity.ErrProtocol, protocolErrors))
			}
		} else {
			protocolErrors = 0
		}
	}

	return fail(entity.ErrorKindResourceExhausted, fmt.Errorf("%w (%d)", entity.ErrMaxIterations, uc.cfg.MaxIterations))
}

func (uc *UseCase) initialMessages(q entity.Question) []entity.Message {
	messages := make([]entity.Message, 0, len(q.History)+2)
	if uc.systemPrompt != "" {
		messages = append(messages, entity.Message{Role: entity.RoleSystem, Content: uc.systemPrompt})
	}
	messages = append(messages, q.History...)
	return append(messages, entity.Message{Role: entity.RoleUser, Content: q.Text})
}

// toActions assigns ids to tool calls that came without one or reuse an id
// already seen in this run.
func (uc *UseCase) toActions(recorder *service.StepRecorder, calls []entity.ToolCall, iteration int) []entity.Action {
	actions := make([]entity.Action, len(calls))
	seen := make(map[string]struct{}, len(calls))
	for i, tc := range calls {
		id := strings.TrimSpace(tc.ID)
		_, dup := seen[id]
		if id == "" || dup || recorder.Has(id) {
			id = "call_" + uc.newID()
		}
		seen[id] = struct{}{}
		actions[i] = entity.Action{
			ID:        id,
			Tool:      tc.Name,
			Arguments: tc.Arguments,
			Iteration: iteration,
			Index:     i,
		}
	}
	return actions
}

// contextError reports why the run context ended, if it did. The caller's
// deadline counts as a time budget; a plain cancel is an abandoned run.
func (uc *UseCase) contextError(parent, runCtx context.Context) error {
	if err := parent.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: caller deadline reached", entity.ErrRunTimeout)
		}
		return fmt.Errorf("%w: %v", entity.ErrCancelled, err)
	}
	if runCtx.Err() != nil {
		return fmt.Errorf("%w after %s", entity.ErrRunTimeout, uc.cfg.RunTimeout)
	}
	return nil
}

type emitter struct {
	ctx       context.Context
	out       chan<- entity.Event
	sinks     []output.EventSink
	abandoned bool
}

func newEmitter(ctx context.Context, out chan<- entity.Event, sinks []output.EventSink) *emitter {
	return &emitter{ctx: ctx, out: out, sinks: sinks}
}

// emit hands the event to every sink and then to the stream consumer. Once
// the consumer's context is done the stream is treated as abandoned.
func (e *emitter) emit(ev entity.Event) {
	for _, sink := range e.sinks {
		sink.Record(e.ctx, ev)
	}
	if e.out == nil || e.abandoned {
		return
	}
	if e.ctx.Err() != nil {
		select {
		case e.out <- ev:
		default:
			e.abandoned = true
		}
		return
	}
	select {
	case e.out <- ev:
	case <-e.ctx.Done():
		e.abandoned = true
	}
}
