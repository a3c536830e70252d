package console

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"retrieval-agent/internal/domain/entity"

	"github.com/fatih/color"
)

// Presenter renders a run's event stream for a terminal.
type Presenter struct {
	out           io.Writer
	maxIterations int

	iteration int
	pending   strings.Builder

	cyan   *color.Color
	yellow *color.Color
	green  *color.Color
	red    *color.Color
	dim    *color.Color
	bold   *color.Color
}

func NewPresenter(out io.Writer, maxIterations int) *Presenter {
	return &Presenter{
		out:           out,
		maxIterations: maxIterations,
		cyan:          color.New(color.FgCyan, color.Bold),
		yellow:        color.New(color.FgYellow, color.Bold),
		green:         color.New(color.FgGreen),
		red:           color.New(color.FgRed),
		dim:           color.New(color.Faint),
		bold:          color.New(color.Bold),
	}
}

func (p *Presenter) Render(ev entity.Event) {
	if ev.Iteration > p.iteration {
		p.iteration = ev.Iteration
		p.cyan.Fprintf(p.out, "\n━━━ Iteration %d/%d ━━━\n", ev.Iteration, p.maxIterations)
	}

	switch ev.Type {
	case entity.EventRunStarted:
		p.dim.Fprintf(p.out, "run %s\n", ev.RunID)

	case entity.EventAnswerDelta:
		p.pending.WriteString(ev.Delta)

	case entity.EventActionIssued:
		p.flushThinking()
		if ev.Action != nil {
			p.showToolStart(ev.Action.Tool, ev.Action.Arguments)
		}

	case entity.EventObservationRecorded:
		if ev.Step != nil {
			p.showToolResult(ev.Step.Action.Tool, ev.Step.Observation)
		}

	case entity.EventFinalAnswer:
		p.pending.Reset()
		if ev.Run == nil {
			return
		}
		p.bold.Fprintln(p.out, "\nAnswer:")
		fmt.Fprintln(p.out, ev.Run.Answer)
		p.dim.Fprintf(p.out, "\n%d steps, %d iterations, %s\n",
			len(ev.Run.Steps), ev.Run.Iterations, ev.Run.FinishedAt.Sub(ev.Run.StartedAt).Round(time.Millisecond))

	case entity.EventRunFailed:
		p.flushThinking()
		p.red.Fprint(p.out, "\n❌ Run failed: ")
		if ev.Err != nil {
			fmt.Fprintln(p.out, ev.Err.Error())
		} else {
			fmt.Fprintln(p.out, "unknown error")
		}
	}
}

func (p *Presenter) ShowEvaluation(result *entity.EvaluationResult) {
	if result == nil {
		return
	}
	verdict, c := "✓ Answer accepted", p.green
	if !result.Success {
		verdict, c = "✗ Answer rejected", p.red
	}
	c.Fprintf(p.out, "\n%s (confidence %.2f)\n", verdict, result.Confidence)
	for _, issue := range result.Issues {
		p.dim.Fprintf(p.out, "   - %s\n", issue)
	}
	if result.Feedback != "" {
		p.dim.Fprintf(p.out, "   %s\n", truncate(result.Feedback, 300))
	}
}

// flushThinking prints text the model produced alongside tool calls.
func (p *Presenter) flushThinking() {
	text := strings.TrimSpace(p.pending.String())
	p.pending.Reset()
	if text == "" {
		return
	}
	color.New(color.FgBlue).Fprint(p.out, "\n💭 ")
	p.dim.Fprintln(p.out, truncate(text, 500))
}

func (p *Presenter) showToolStart(toolName, arguments string) {
	icon, name := toolDisplay(toolName)
	p.yellow.Fprintf(p.out, "\n%s %s\n", icon, name)
	if summary := formatArguments(toolName, arguments); summary != "" {
		p.dim.Fprintf(p.out, "   %s\n", summary)
	}
}

func (p *Presenter) showToolResult(toolName string, obs entity.Observation) {
	if obs.IsError() {
		p.red.Fprint(p.out, "❌ Error: ")
		p.dim.Fprintln(p.out, truncate(obs.Error, 300))
		return
	}
	suffix := ""
	if obs.Replayed {
		suffix = " (replayed)"
	}
	p.green.Fprintf(p.out, "✓ %s%s\n", formatResult(toolName, obs.Content), suffix)
}

func toolDisplay(toolName string) (string, string) {
	displays := map[string][2]string{
		entity.ToolWebSearch.String():       {"🔎", "Web search"},
		entity.ToolFetchPage.String():       {"🌐", "Fetch page"},
		entity.ToolSQLQuery.String():        {"🗄️", "SQL query"},
		entity.ToolSQLSchema.String():       {"📋", "SQL schema"},
		entity.ToolDocumentSearch.String():  {"📚", "Document search"},
		entity.ToolCurrencyConvert.String(): {"💱", "Currency"},
	}
	if display, ok := displays[toolName]; ok {
		return display[0], display[1]
	}
	return "🔧", toolName
}

func formatArguments(toolName, arguments string) string {
	var args map[string]any
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return ""
	}

	switch entity.ToolName(toolName) {
	case entity.ToolWebSearch, entity.ToolDocumentSearch:
		if q, ok := args["query"].(string); ok {
			return fmt.Sprintf("Query: %s", truncate(q, 80))
		}
	case entity.ToolFetchPage:
		if u, ok := args["url"].(string); ok {
			return fmt.Sprintf("URL: %s", u)
		}
	case entity.ToolSQLQuery:
		if q, ok := args["query"].(string); ok {
			return truncate(strings.Join(strings.Fields(q), " "), 100)
		}
	case entity.ToolSQLSchema:
		if tables, ok := args["tables"].([]any); ok && len(tables) > 0 {
			return fmt.Sprintf("Tables: %v", tables)
		}
		return "All tables"
	case entity.ToolCurrencyConvert:
		amount, _ := args["amount"].(float64)
		from, _ := args["from"].(string)
		to, _ := args["to"].(string)
		return fmt.Sprintf("%.2f %s → %s", amount, from, to)
	}
	return ""
}

func formatResult(toolName, result string) string {
	switch entity.ToolName(toolName) {
	case entity.ToolSQLQuery:
		var res struct {
			Rows      []json.RawMessage `json:"rows"`
			Truncated bool              `json:"truncated"`
		}
		if err := json.Unmarshal([]byte(result), &res); err == nil {
			if res.Truncated {
				return fmt.Sprintf("%d rows (truncated)", len(res.Rows))
			}
			return fmt.Sprintf("%d rows", len(res.Rows))
		}
	case entity.ToolWebSearch, entity.ToolDocumentSearch, entity.ToolFetchPage, entity.ToolSQLSchema:
		if first, _, _ := strings.Cut(result, "\n"); first != "" {
			return truncate(first, 100)
		}
	}
	return truncate(result, 100)
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
