package output

import (
	"context"

	"retrieval-agent/internal/domain/entity"
)

type LLMPort interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	// ChatStream delivers content deltas through onChunk as they arrive and
	// returns the assembled message once the stream ends.
	ChatStream(ctx context.Context, req ChatRequest, onChunk func(StreamChunk)) (*ChatResponse, error)
}

type ChatRequest struct {
	Messages    []entity.Message
	Tools       []entity.ToolDefinition
	Temperature float32
}

type ChatResponse struct {
	Message entity.Message
}

type StreamChunk struct {
	Content   string
	ToolCalls []entity.ToolCall
	Done      bool
}
