package models

import (
	"context"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// NewOpenRouterModel routes requests through OpenRouter; modelName is the
// OpenRouter slug, e.g. "anthropic/claude-3.5-sonnet".
func NewOpenRouterModel(ctx context.Context, modelName string, cfg *genai.ClientConfig) (model.LLM, error) {
	return newOpenAICompatible("openrouter", "https://openrouter.ai/api/v1", modelName, cfg)
}
