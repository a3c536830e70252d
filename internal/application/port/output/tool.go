package output

import (
	"context"

	"retrieval-agent/internal/domain/entity"
)

type ToolPort interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(ctx context.Context, arguments string) (string, error)
}

// SideEffecting is implemented by tools whose execution changes external
// state. A successful call is never repeated within one run.
type SideEffecting interface {
	SideEffects() bool
}

type ToolRegistry interface {
	Register(tool ToolPort) error
	Get(name string) (ToolPort, bool)
	Resolve(name string) (ToolPort, error)
	All() []ToolPort
	Definitions() []entity.ToolDefinition
}

func HasSideEffects(tool ToolPort) bool {
	se, ok := tool.(SideEffecting)
	return ok && se.SideEffects()
}
