package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"retrieval-agent/internal/application/port/output"
	"retrieval-agent/internal/domain/entity"

	"github.com/kaptinlin/jsonrepair"
)

const maxEvidenceLen = 2000

type Evaluator struct {
	llm          output.LLMPort
	logger       output.LoggerPort
	systemPrompt string
}

func New(llm output.LLMPort, logger output.LoggerPort, systemPrompt string) *Evaluator {
	return &Evaluator{
		llm:          llm,
		logger:       logger,
		systemPrompt: systemPrompt,
	}
}

// Evaluate asks the model whether the answer is supported by the recorded
// steps. An unparsable verdict is treated as a low-confidence success.
func (e *Evaluator) Evaluate(ctx context.Context, criteria entity.EvaluationCriteria) (*entity.EvaluationResult, error) {
	messages := []entity.Message{
		{Role: entity.RoleSystem, Content: e.systemPrompt},
		{Role: entity.RoleUser, Content: buildEvidence(criteria)},
	}

	resp, err := e.llm.Chat(ctx, output.ChatRequest{
		Messages:    messages,
		Temperature: 0.0,
	})
	if err != nil {
		return nil, fmt.Errorf("evaluation llm request failed: %w", err)
	}

	result, err := e.parseEvaluationResponse(resp.Message.Content)
	if err != nil {
		e.logger.Warn("Failed to parse evaluation response, assuming success", "error", err)
		return &entity.EvaluationResult{
			Success:     true,
			Confidence:  0.5,
			Issues:      []string{},
			Feedback:    "",
			ShouldRetry: false,
		}, nil
	}

	e.logger.Info("Evaluation completed",
		"success", result.Success,
		"confidence", result.Confidence,
		"should_retry", result.ShouldRetry,
		"issues_count", len(result.Issues),
	)

	return result, nil
}

func buildEvidence(criteria entity.EvaluationCriteria) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nAnswer:\n%s\n\nSteps:\n", criteria.Question, criteria.Answer)
	if len(criteria.Steps) == 0 {
		b.WriteString("(no tools were called)\n")
	}
	for i, step := range criteria.Steps {
		obs := step.Observation.Text()
		if len(obs) > maxEvidenceLen {
			obs = obs[:maxEvidenceLen] + "..."
		}
		fmt.Fprintf(&b, "%d. %s(%s)\n   -> %s\n", i+1, step.Action.Tool, step.Action.Arguments, obs)
	}
	return b.String()
}

func (e *Evaluator) parseEvaluationResponse(response string) (*entity.EvaluationResult, error) {
	response = strings.TrimSpace(response)

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")

	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON found in response")
	}

	jsonStr := response[start : end+1]

	var result entity.EvaluationResult
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(jsonStr)
		if repairErr != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
		if err := json.Unmarshal([]byte(repaired), &result); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	}

	return &result, nil
}
