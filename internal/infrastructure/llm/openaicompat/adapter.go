package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"retrieval-agent/internal/application/port/output"
	"retrieval-agent/internal/domain/entity"

	"github.com/sashabaranov/go-openai"
)

var _ output.LLMPort = (*Adapter)(nil)

type Provider string

const (
	ProviderOpenAI     Provider = "openai"
	ProviderAzure      Provider = "azure"
	ProviderOpenRouter Provider = "openrouter"
)

const (
	openRouterBaseURL      = "https://openrouter.ai/api/v1"
	defaultAzureAPIVersion = "2024-06-01"
)

type Adapter struct {
	client   *openai.Client
	model    string
	provider Provider
	logger   output.LoggerPort
}

type Config struct {
	Provider Provider
	APIKey   string
	Model    string
	// BaseURL overrides the provider endpoint. Required for Azure, where it is
	// the resource endpoint.
	BaseURL    string
	APIVersion string
	Logger     output.LoggerPort
	HTTPClient *http.Client
}

func DefaultConfig(provider Provider, apiKey, model string) Config {
	cfg := Config{
		Provider: provider,
		APIKey:   apiKey,
		Model:    model,
	}
	switch provider {
	case ProviderOpenRouter:
		cfg.BaseURL = openRouterBaseURL
	case ProviderAzure:
		cfg.APIVersion = defaultAzureAPIVersion
	}
	return cfg
}

func New(cfg Config) (*Adapter, error) {
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}

	var config openai.ClientConfig
	switch cfg.Provider {
	case ProviderOpenAI, "":
		config = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			config.BaseURL = cfg.BaseURL
		}
	case ProviderOpenRouter:
		config = openai.DefaultConfig(cfg.APIKey)
		config.BaseURL = openRouterBaseURL
		if cfg.BaseURL != "" {
			config.BaseURL = cfg.BaseURL
		}
	case ProviderAzure:
		if cfg.BaseURL == "" {
			return nil, errors.New("azure provider requires a base url")
		}
		config = openai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
		if cfg.APIVersion != "" {
			config.APIVersion = cfg.APIVersion
		}
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.Logger != nil {
		base := httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		wrapped := *httpClient
		wrapped.Transport = &loggingTransport{base: base, logger: cfg.Logger}
		httpClient = &wrapped
	}
	config.HTTPClient = httpClient

	provider := cfg.Provider
	if provider == "" {
		provider = ProviderOpenAI
	}

	return &Adapter{
		client:   openai.NewClientWithConfig(config),
		model:    cfg.Model,
		provider: provider,
		logger:   cfg.Logger,
	}, nil
}

func (a *Adapter) Chat(ctx context.Context, req output.ChatRequest) (*output.ChatResponse, error) {
	resp, err := a.client.CreateChatCompletion(ctx, a.completionRequest(req, false))
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	return &output.ChatResponse{
		Message: convertResponseMessage(resp.Choices[0].Message),
	}, nil
}

func (a *Adapter) ChatStream(ctx context.Context, req output.ChatRequest, onChunk func(output.StreamChunk)) (*output.ChatResponse, error) {
	completion := a.completionRequest(req, true)

	a.debug("Creating chat completion stream",
		"provider", a.provider,
		"model", a.model,
		"messagesCount", len(completion.Messages),
		"toolsCount", len(completion.Tools),
		"temperature", req.Temperature)

	stream, err := a.client.CreateChatCompletionStream(ctx, completion)
	if err != nil {
		if a.logger != nil {
			a.logger.Error("Failed to create stream", "error", err)
		}
		return nil, fmt.Errorf("chat stream failed: %w", err)
	}
	defer stream.Close()

	var (
		text     strings.Builder
		thinking strings.Builder
		calls    = newToolCallAccumulator()
		chunks   int
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context canceled: %w", err)
		}

		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			a.debug("Stream completed", "chunks", chunks, "thinkingLen", thinking.Len(), "textLen", text.Len())
			break
		}
		if err != nil {
			if a.logger != nil {
				a.logger.Error("Stream recv error", "error", err, "chunks", chunks, "errorType", fmt.Sprintf("%T", err))
			}
			return nil, fmt.Errorf("stream recv error: %w", err)
		}

		chunks++
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta

		thinking.WriteString(delta.ReasoningContent)
		if delta.Content != "" {
			text.WriteString(delta.Content)
			if onChunk != nil {
				onChunk(output.StreamChunk{Content: delta.Content})
			}
		}
		for _, tc := range delta.ToolCalls {
			calls.add(tc)
		}
	}

	msg := assembleMessage(text.String(), thinking.String(), calls.ordered())

	a.debug("Final message assembled",
		"contentBlocksCount", len(msg.ContentBlocks),
		"toolCallsCount", len(msg.ToolCalls),
		"contentLength", len(msg.Content))

	if onChunk != nil {
		onChunk(output.StreamChunk{ToolCalls: msg.ToolCalls, Done: true})
	}

	return &output.ChatResponse{Message: msg}, nil
}

func (a *Adapter) completionRequest(req output.ChatRequest, stream bool) openai.ChatCompletionRequest {
	completion := openai.ChatCompletionRequest{
		Model:       a.model,
		Messages:    convertMessages(req.Messages),
		Temperature: req.Temperature,
		Stream:      stream,
	}
	if tools := convertTools(req.Tools); len(tools) > 0 {
		completion.Tools = tools
		completion.ToolChoice = "auto"
	}
	return completion
}

func (a *Adapter) debug(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}

// toolCallAccumulator merges streamed tool-call fragments. Fragments carry the
// call's index; name and id arrive once, arguments arrive in pieces.
// Providers that omit the index send a new call with an id and continue it
// with bare fragments.
type toolCallAccumulator struct {
	byIndex map[int]*entity.ToolCall
	last    int
}

func newToolCallAccumulator() *toolCallAccumulator {
	return &toolCallAccumulator{byIndex: make(map[int]*entity.ToolCall), last: -1}
}

func (acc *toolCallAccumulator) add(tc openai.ToolCall) {
	idx := acc.nextIndex()
	switch {
	case tc.Index != nil:
		idx = *tc.Index
	case tc.ID == "" && acc.last >= 0:
		idx = acc.last
	}
	acc.last = idx
	existing, ok := acc.byIndex[idx]
	if !ok {
		acc.byIndex[idx] = &entity.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}
		return
	}
	existing.Arguments += tc.Function.Arguments
	if tc.Function.Name != "" {
		existing.Name = tc.Function.Name
	}
	if tc.ID != "" {
		existing.ID = tc.ID
	}
}

func (acc *toolCallAccumulator) nextIndex() int {
	next := 0
	for idx := range acc.byIndex {
		if idx >= next {
			next = idx + 1
		}
	}
	return next
}

// ordered returns the calls sorted by index, which is the order the model
// issued them in.
func (acc *toolCallAccumulator) ordered() []entity.ToolCall {
	indices := make([]int, 0, len(acc.byIndex))
	for idx := range acc.byIndex {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	calls := make([]entity.ToolCall, 0, len(indices))
	for _, idx := range indices {
		calls = append(calls, *acc.byIndex[idx])
	}
	return calls
}

func assembleMessage(text, thinking string, calls []entity.ToolCall) entity.Message {
	msg := entity.Message{Role: entity.RoleAssistant, Content: text}
	if thinking != "" {
		msg.ContentBlocks = append(msg.ContentBlocks, entity.ContentBlock{
			Type:     entity.ContentTypeThinking,
			Thinking: thinking,
		})
	}
	if text != "" {
		msg.ContentBlocks = append(msg.ContentBlocks, entity.ContentBlock{
			Type: entity.ContentTypeText,
			Text: text,
		})
	}
	for i := range calls {
		call := calls[i]
		msg.ToolCalls = append(msg.ToolCalls, call)
		msg.ContentBlocks = append(msg.ContentBlocks, entity.ContentBlock{
			Type:    entity.ContentTypeToolUse,
			ToolUse: &call,
		})
	}
	return msg
}

func convertMessages(messages []entity.Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		oaiMsg := openai.ChatCompletionMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		// Tool results are matched by id; the name field is only valid on
		// user and assistant messages for some providers.
		if msg.Name != "" && msg.Role != entity.RoleTool {
			oaiMsg.Name = msg.Name
		}

		if len(msg.ContentBlocks) > 0 {
			var full strings.Builder
			for _, block := range msg.ContentBlocks {
				switch {
				case block.Type == entity.ContentTypeThinking && block.Thinking != "":
					full.WriteString("<thinking>\n" + block.Thinking + "\n</thinking>\n")
				case block.Type == entity.ContentTypeText && block.Text != "":
					full.WriteString(block.Text)
				}
			}
			if full.Len() > 0 {
				oaiMsg.Content = full.String()
			}
		}

		for _, tc := range msg.ToolCalls {
			oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}

		result = append(result, oaiMsg)
	}
	return result
}

func convertTools(tools []entity.ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		result = append(result, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return result
}

func convertResponseMessage(msg openai.ChatCompletionMessage) entity.Message {
	calls := make([]entity.ToolCall, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		calls = append(calls, entity.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return assembleMessage(msg.Content, msg.ReasoningContent, calls)
}
