package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"retrieval-agent/internal/application/port/output"
	"retrieval-agent/internal/domain/entity"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any)                          {}
func (nopLogger) Info(string, ...any)                           {}
func (nopLogger) Warn(string, ...any)                           {}
func (nopLogger) Error(string, ...any)                          {}
func (l nopLogger) WithField(string, any) output.LoggerPort     { return l }
func (l nopLogger) WithFields(map[string]any) output.LoggerPort { return l }
func (nopLogger) Close() error                                  { return nil }

type reply func(req output.ChatRequest) (*output.ChatResponse, error)

func answer(text string) reply {
	return func(output.ChatRequest) (*output.ChatResponse, error) {
		return &output.ChatResponse{Message: entity.Message{Role: entity.RoleAssistant, Content: text}}, nil
	}
}

func callTools(calls ...entity.ToolCall) reply {
	return func(output.ChatRequest) (*output.ChatResponse, error) {
		return &output.ChatResponse{Message: entity.Message{
			Role:      entity.RoleAssistant,
			ToolCalls: append([]entity.ToolCall(nil), calls...),
		}}, nil
	}
}

func failWith(err error) reply {
	return func(output.ChatRequest) (*output.ChatResponse, error) {
		return nil, err
	}
}

func call(id, name, args string) entity.ToolCall {
	return entity.ToolCall{ID: id, Name: name, Arguments: args}
}

// scriptedLLM replays replies in order and records every request it saw.
type scriptedLLM struct {
	mu       sync.Mutex
	replies  []reply
	repeat   reply
	requests []output.ChatRequest
}

func newScriptedLLM(replies ...reply) *scriptedLLM {
	return &scriptedLLM{replies: replies}
}

func (s *scriptedLLM) Chat(ctx context.Context, req output.ChatRequest) (*output.ChatResponse, error) {
	return s.ChatStream(ctx, req, nil)
}

func (s *scriptedLLM) ChatStream(ctx context.Context, req output.ChatRequest, onChunk func(output.StreamChunk)) (*output.ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	idx := len(s.requests)
	req.Messages = append([]entity.Message(nil), req.Messages...)
	s.requests = append(s.requests, req)
	next := s.repeat
	if idx < len(s.replies) {
		next = s.replies[idx]
	}
	s.mu.Unlock()

	if next == nil {
		return nil, errors.New("script exhausted")
	}
	resp, err := next(req)
	if err != nil {
		return nil, err
	}
	if onChunk != nil && resp.Message.Content != "" {
		for _, word := range strings.SplitAfter(resp.Message.Content, " ") {
			onChunk(output.StreamChunk{Content: word})
		}
		onChunk(output.StreamChunk{ToolCalls: resp.Message.ToolCalls, Done: true})
	}
	return resp, nil
}

func (s *scriptedLLM) Requests() []output.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]output.ChatRequest(nil), s.requests...)
}

func toolMessages(req output.ChatRequest) []entity.Message {
	var out []entity.Message
	for _, m := range req.Messages {
		if m.Role == entity.RoleTool {
			out = append(out, m)
		}
	}
	return out
}

// funcTool is a tool whose behaviour is a closure.
type funcTool struct {
	name        string
	sideEffects bool
	schema      map[string]any
	fn          func(ctx context.Context, args string) (string, error)

	mu    sync.Mutex
	calls []string
}

func newFuncTool(name string, fn func(ctx context.Context, args string) (string, error)) *funcTool {
	return &funcTool{name: name, fn: fn}
}

func (t *funcTool) Name() string        { return t.name }
func (t *funcTool) Description() string { return "test tool " + t.name }
func (t *funcTool) Parameters() map[string]any {
	if t.schema != nil {
		return t.schema
	}
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func (t *funcTool) Execute(ctx context.Context, args string) (string, error) {
	t.mu.Lock()
	t.calls = append(t.calls, args)
	t.mu.Unlock()
	return t.fn(ctx, args)
}

func (t *funcTool) SideEffects() bool { return t.sideEffects }

func (t *funcTool) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}

// eventLog is an output.EventSink that keeps everything it sees.
type eventLog struct {
	mu     sync.Mutex
	events []entity.Event
}

func (l *eventLog) Record(_ context.Context, ev entity.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) Types() []entity.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]entity.EventType, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.Type
	}
	return out
}

func sleepOrDone(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func currencyTool(delay time.Duration) *funcTool {
	t := newFuncTool("currency_convert", func(ctx context.Context, args string) (string, error) {
		if err := sleepOrDone(ctx, delay); err != nil {
			return "", err
		}
		return "50.00 USD = 46.00 EUR", nil
	})
	t.schema = map[string]any{
		"type": "object",
		"properties": map[string]any{
			"amount": map[string]any{"type": "number"},
			"from":   map[string]any{"type": "string"},
			"to":     map[string]any{"type": "string"},
		},
		"required": []string{"amount", "from", "to"},
	}
	return t
}

func hotelPriceTool() *funcTool {
	return newFuncTool("hotel_price", func(ctx context.Context, args string) (string, error) {
		return fmt.Sprintf("Madrid hotel, one night: 40 EUR (%s)", args), nil
	})
}
