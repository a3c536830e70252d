package prompts

import (
	_ "embed"
)

//go:embed system.txt
var DefaultSystemPrompt string

//go:embed evaluator.txt
var EvaluatorPrompt string
