package openrouter

import (
	"context"
	"fmt"

	"browser-agent/internal/application/port/output"
	"browser-agent/internal/application/service"
	"browser-agent/internal/domain/entity"
	"browser-agent/internal/infrastructure/prompts"

	"github.com/sashabaranov/go-openai"
)

var _ output.ModelPort = (*Adapter)(nil)

type Config struct {
	APIKey       string
	Model        string
	BaseURL      string
	SystemPrompt string
	Temperature  float32
}

func DefaultConfig(apiKey, model string) Config {
	return Config{
		APIKey:       apiKey,
		Model:        model,
		BaseURL:      "https://openrouter.ai/api/v1",
		SystemPrompt: prompts.DefaultSystemPrompt,
		Temperature:  0.0,
	}
}

// Adapter implements the decide contract on OpenRouter's OpenAI-compatible
// chat completions API, exposing the action catalog as tool definitions.
type Adapter struct {
	client       *openai.Client
	model        string
	systemPrompt string
	temperature  float32
	tools        []openai.Tool
	logger       output.LoggerPort
}

func New(cfg Config, logger output.LoggerPort) *Adapter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = prompts.DefaultSystemPrompt
	}
	return &Adapter{
		client:       openai.NewClientWithConfig(clientCfg),
		model:        cfg.Model,
		systemPrompt: systemPrompt,
		temperature:  cfg.Temperature,
		tools:        convertTools(service.ActionCatalog()),
		logger:       logger,
	}
}

func (a *Adapter) Decide(ctx context.Context, state entity.AgentState) (*entity.Decision, error) {
	summary, err := prompts.RenderStateSummary(state)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("Requesting decision", "model", a.model, "steps", len(state.Steps))

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: a.systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: summary},
		},
		Tools:       a.tools,
		ToolChoice:  "auto",
		Temperature: a.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) == 0 {
		return &entity.Decision{Done: true, FinalAnswer: msg.Content}, nil
	}
	if len(msg.ToolCalls) > 1 {
		a.logger.Debug("Model proposed multiple tool calls, keeping the first",
			"count", len(msg.ToolCalls))
	}

	tc := msg.ToolCalls[0]
	return &entity.Decision{
		Action: &entity.Action{
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		},
	}, nil
}

func convertTools(catalog []entity.ActionDefinition) []openai.Tool {
	tools := make([]openai.Tool, 0, len(catalog))
	for _, def := range catalog {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}
	return tools
}
