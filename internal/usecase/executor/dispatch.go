package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"retrieval-agent/internal/application/port/output"
	"retrieval-agent/internal/application/service"
	"retrieval-agent/internal/domain/entity"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

type dispatchResult struct {
	observation entity.Observation
	unknownTool bool
}

// dispatch executes the actions of one turn concurrently. Results are stored
// by action index, so the caller merges them in issuance order. A repeated
// side-effecting call within the turn runs once and the copies share its
// observation.
func (uc *UseCase) dispatch(ctx context.Context, log output.LoggerPort, recorder *service.StepRecorder, actions []entity.Action) []dispatchResult {
	results := make([]dispatchResult, len(actions))
	dups := uc.duplicateActions(actions)

	var g errgroup.Group
	g.SetLimit(uc.cfg.MaxConcurrentTools)
	for i, action := range actions {
		if _, ok := dups[i]; ok {
			continue
		}
		g.Go(func() error {
			results[i] = uc.executeAction(ctx, log, recorder, action)
			return nil
		})
	}
	_ = g.Wait()

	for i, first := range dups {
		obs := results[first].observation
		obs.ActionID = actions[i].ID
		obs.Duration = 0
		obs.Replayed = !obs.IsError()
		log.Info("Replaying observation from the same turn", "name", actions[i].Tool, "previousAction", actions[first].ID)
		results[i] = dispatchResult{observation: obs}
	}

	return results
}

// duplicateActions maps each repeated side-effecting action to the index of
// its first occurrence, keyed by tool name and normalised arguments.
func (uc *UseCase) duplicateActions(actions []entity.Action) map[int]int {
	dups := make(map[int]int)
	seen := make(map[string]int)
	for i, action := range actions {
		tool, err := uc.tools.Resolve(action.Tool)
		if err != nil || !output.HasSideEffects(tool) {
			continue
		}
		args, err := service.ValidateArguments(tool.Parameters(), action.Arguments)
		if err != nil {
			continue
		}
		key := action.Tool + "\x00" + args
		if first, ok := seen[key]; ok {
			dups[i] = first
			continue
		}
		seen[key] = i
	}
	return dups
}

func (uc *UseCase) executeAction(ctx context.Context, log output.LoggerPort, recorder *service.StepRecorder, action entity.Action) dispatchResult {
	ctx, span := uc.tracer.Start(ctx, "agent.tool", trace.WithAttributes(
		attribute.String("agent.tool", action.Tool),
		attribute.String("agent.action_id", action.ID),
		attribute.Int("agent.iteration", action.Iteration),
	))
	defer span.End()

	start := uc.now()
	obs := entity.Observation{ActionID: action.ID}
	failed := func(err error) dispatchResult {
		obs.Error = err.Error()
		obs.Duration = uc.now().Sub(start)
		span.RecordError(err)
		span.SetStatus(codes.Error, "tool failed")
		return dispatchResult{observation: obs, unknownTool: errors.Is(err, entity.ErrUnknownTool)}
	}

	tool, err := uc.tools.Resolve(action.Tool)
	if err != nil {
		log.Warn("Unknown tool called", "name", action.Tool)
		return failed(fmt.Errorf("%w; available tools: %s", err, uc.toolNames()))
	}

	args, err := service.ValidateArguments(tool.Parameters(), action.Arguments)
	if err != nil {
		log.Warn("Invalid tool arguments", "name", action.Tool, "args", action.Arguments, "error", err)
		return failed(err)
	}

	if output.HasSideEffects(tool) {
		if prior, ok := recorder.Replay(action.Tool, args); ok {
			log.Info("Replaying recorded observation", "name", action.Tool, "previousAction", prior.ActionID)
			obs.Content = prior.Content
			obs.Replayed = true
			obs.Duration = uc.now().Sub(start)
			return dispatchResult{observation: obs}
		}
	}

	log.Info("Executing tool", "name", action.Tool, "args", args)

	result, err := uc.callWithTimeout(ctx, tool, args)
	if err != nil {
		log.Error("Tool execution failed", "name", action.Tool, "error", err)
		return failed(err)
	}

	obs.Content = truncate(result, uc.cfg.MaxObservationLen)
	obs.Duration = uc.now().Sub(start)
	log.Debug("Tool completed", "name", action.Tool, "resultLen", len(result), "duration", obs.Duration)
	return dispatchResult{observation: obs}
}

// callWithTimeout bounds a tool call by the per-call timeout even when the
// tool ignores its context. Panics become errors.
func (uc *UseCase) callWithTimeout(ctx context.Context, tool output.ToolPort, args string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, uc.cfg.ToolTimeout)
	defer cancel()

	type callResult struct {
		content string
		err     error
	}
	done := make(chan callResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- callResult{err: fmt.Errorf("%w: %v", entity.ErrToolPanic, r)}
			}
		}()
		content, err := tool.Execute(callCtx, args)
		done <- callResult{content: content, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", uc.timeoutError()
		}
		return res.content, res.err
	case <-callCtx.Done():
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "", uc.timeoutError()
	}
}

func (uc *UseCase) timeoutError() error {
	return fmt.Errorf("%w after %s", entity.ErrToolTimeout, uc.cfg.ToolTimeout)
}

func (uc *UseCase) toolNames() string {
	defs := uc.tools.Definitions()
	names := make([]string, 0, len(defs))
	for _, d := range defs {
		names = append(names, d.Name)
	}
	return strings.Join(names, ", ")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n... (truncated)"
}
