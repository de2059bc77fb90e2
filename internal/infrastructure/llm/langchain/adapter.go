package langchain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"browser-agent/internal/application/port/output"
	"browser-agent/internal/application/service"
	"browser-agent/internal/domain/entity"
	"browser-agent/internal/infrastructure/prompts"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

var _ output.ModelPort = (*Adapter)(nil)

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Adapter is the langchaingo-backed model client. Unlike the tool-calling
// adapter it speaks a plain JSON text protocol, which keeps it usable with
// providers that lack function calling.
type Adapter struct {
	llm     llms.Model
	catalog []entity.ActionDefinition
	logger  output.LoggerPort
}

func New(cfg Config, logger output.LoggerPort) (*Adapter, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create langchain client: %w", err)
	}
	return &Adapter{
		llm:     llm,
		catalog: service.ActionCatalog(),
		logger:  logger,
	}, nil
}

func (a *Adapter) Decide(ctx context.Context, state entity.AgentState) (*entity.Decision, error) {
	prompt, err := prompts.RenderDecisionPrompt(state, a.catalog)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("Requesting decision", "steps", len(state.Steps))

	response, err := llms.GenerateFromSinglePrompt(ctx, a.llm, prompt, llms.WithTemperature(0))
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	decision, err := ParseDecision(response)
	if err != nil {
		return nil, fmt.Errorf("unparseable model response: %w", err)
	}
	return decision, nil
}

type decisionPayload struct {
	Action      string          `json:"action"`
	Arguments   json.RawMessage `json:"arguments"`
	FinalAnswer *string         `json:"final_answer"`
}

// ParseDecision extracts the JSON decision object from the model's reply,
// tolerating prose around it.
func ParseDecision(response string) (*entity.Decision, error) {
	response = strings.TrimSpace(response)

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	var payload decisionPayload
	if err := json.Unmarshal([]byte(response[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	if payload.FinalAnswer != nil {
		return &entity.Decision{Done: true, FinalAnswer: *payload.FinalAnswer}, nil
	}
	if payload.Action == "" {
		return nil, fmt.Errorf("response carries neither action nor final_answer")
	}

	args := "{}"
	if len(payload.Arguments) > 0 {
		args = string(payload.Arguments)
	}
	return &entity.Decision{
		Action: &entity.Action{Name: payload.Action, Arguments: args},
	}, nil
}
