package service

import (
	"context"
	"sync/atomic"
)

type stubTool struct {
	name        string
	result      string
	err         error
	sideEffects bool
	calls       atomic.Int32
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub " + s.name }
func (s *stubTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string"},
		},
		"required": []string{"query"},
	}
}

func (s *stubTool) Execute(ctx context.Context, args string) (string, error) {
	s.calls.Add(1)
	return s.result, s.err
}

func (s *stubTool) SideEffects() bool { return s.sideEffects }
