package models

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/easeaico/project-jobo/internal/utils"
)

const defaultAnthropicMaxTokens = 1000

// anthropicModel adapts the Claude Messages API to model.LLM.
type anthropicModel struct {
	client *anthropic.Client
	name   string
}

// NewAnthropicModel creates a Claude model.
func NewAnthropicModel(ctx context.Context, modelName string, cfg *genai.ClientConfig) (model.LLM, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name cannot be empty")
	}
	client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
	return &anthropicModel{client: &client, name: modelName}, nil
}

func (m *anthropicModel) Name() string {
	return m.name
}

func (m *anthropicModel) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		resp, err := m.generate(ctx, req)
		yield(resp, err)
	}
}

func (m *anthropicModel) generate(ctx context.Context, req *model.LLMRequest) (*model.LLMResponse, error) {
	params := buildAnthropicParams(req, m.name)
	if len(params.Messages) == 0 {
		return nil, fmt.Errorf("request has no messages")
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		slog.Error("failed to call claude API", "error", err.Error())
		return nil, fmt.Errorf("claude API error: %w", err)
	}

	content := &genai.Content{Role: "model"}
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != "" {
			content.Parts = append(content.Parts, &genai.Part{Text: block.Text})
		}
	}
	return &model.LLMResponse{
		Content:      content,
		TurnComplete: true,
	}, nil
}

func buildAnthropicParams(req *model.LLMRequest, name string) anthropic.MessageNewParams {
	modelName := req.Model
	if modelName == "" {
		modelName = name
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(modelName),
		MaxTokens: defaultAnthropicMaxTokens,
	}

	if req.Config != nil {
		if req.Config.SystemInstruction != nil {
			if text := utils.ExtractContentText(req.Config.SystemInstruction); text != "" {
				params.System = []anthropic.TextBlockParam{{Text: text}}
			}
		}
		if req.Config.Temperature != nil {
			params.Temperature = anthropic.Float(float64(*req.Config.Temperature))
		}
		if req.Config.MaxOutputTokens > 0 {
			params.MaxTokens = int64(req.Config.MaxOutputTokens)
		}
	}

	for _, content := range req.Contents {
		if content == nil {
			continue
		}
		text := utils.ExtractContentText(content)
		if text == "" {
			continue
		}
		switch content.Role {
		case "model", "assistant":
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(text)))
		case "system":
			params.System = append(params.System, anthropic.TextBlockParam{Text: text})
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))
		}
	}
	return params
}
