package prompts

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"retrieval-agent/internal/application/port/output"
)

type ToolInfo struct {
	Name        string
	Description string
}

type SystemPromptData struct {
	Tools []ToolInfo
	Date  string
}

// GenerateSystemPrompt renders baseTemplate with the tools of the registry,
// sorted by name.
func GenerateSystemPrompt(baseTemplate string, tools output.ToolRegistry, now time.Time) (string, error) {
	defs := tools.Definitions()
	infos := make([]ToolInfo, 0, len(defs))
	for _, def := range defs {
		infos = append(infos, ToolInfo{Name: def.Name, Description: def.Description})
	}

	tmpl, err := template.New("system").Option("missingkey=error").Parse(baseTemplate)
	if err != nil {
		return "", fmt.Errorf("parse prompt template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, SystemPromptData{Tools: infos, Date: now.Format("2006-01-02")}); err != nil {
		return "", fmt.Errorf("render prompt template: %w", err)
	}

	return buf.String(), nil
}
