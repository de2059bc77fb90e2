package prompts

import (
	"bytes"
	"fmt"
	"text/template"

	"browser-agent/internal/domain/entity"
)

const (
	// maxHistorySteps bounds how many trailing steps the summary carries.
	maxHistorySteps = 20
	// maxObservationLen truncates oversized observations so a single noisy
	// page cannot blow the model context.
	maxObservationLen = 4000
)

var stateTemplate = template.Must(template.New("state").Parse(`Task: {{.Instruction}}
{{- range $k, $v := .Constraints}}
Constraint ({{$k}}): {{$v}}
{{- end}}
{{if .Steps}}
Steps so far ({{.TotalSteps}} total{{if .Omitted}}, first {{.Omitted}} omitted{{end}}):
{{- range .Steps}}
[{{.Seq}}] {{if .Action}}{{.Action.Name}} {{.Action.Arguments}}{{else}}(no action){{end}}
{{- if .Error}}
    error: {{.Error}}
{{- end}}
{{- if .Observation}}
    observation: {{.Observation}}
{{- end}}
{{- end}}
{{else}}
No steps taken yet.
{{end}}
What is the next action?`))

type stateData struct {
	Instruction string
	Constraints map[string]string
	Steps       []entity.Step
	TotalSteps  int
	Omitted     int
}

// RenderStateSummary turns the run state into the user-turn text handed to a
// model backend on each decide call.
func RenderStateSummary(state entity.AgentState) (string, error) {
	steps := state.Steps
	omitted := 0
	if len(steps) > maxHistorySteps {
		omitted = len(steps) - maxHistorySteps
		steps = steps[omitted:]
	}

	trimmed := make([]entity.Step, len(steps))
	for i, s := range steps {
		if len(s.Observation) > maxObservationLen {
			s.Observation = s.Observation[:maxObservationLen] + "\n... (truncated)"
		}
		trimmed[i] = s
	}

	var buf bytes.Buffer
	err := stateTemplate.Execute(&buf, stateData{
		Instruction: state.Task.Instruction,
		Constraints: state.Task.Constraints,
		Steps:       trimmed,
		TotalSteps:  len(state.Steps),
		Omitted:     omitted,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render state summary: %w", err)
	}
	return buf.String(), nil
}

// RenderDecisionPrompt builds the full single-prompt input for text-protocol
// backends: system instructions, the action catalog and the JSON protocol.
func RenderDecisionPrompt(state entity.AgentState, catalog []entity.ActionDefinition) (string, error) {
	summary, err := RenderStateSummary(state)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	buf.WriteString(DefaultSystemPrompt)
	buf.WriteString("\nAvailable actions:\n")
	for _, def := range catalog {
		fmt.Fprintf(&buf, "- %s: %s\n", def.Name, def.Description)
	}
	buf.WriteString("\n")
	buf.WriteString(DecisionProtocol)
	buf.WriteString("\n")
	buf.WriteString(summary)
	return buf.String(), nil
}
