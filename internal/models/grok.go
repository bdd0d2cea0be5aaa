package models

import (
	"context"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// NewGrokModel talks to xAI through its OpenAI-compatible endpoint.
func NewGrokModel(ctx context.Context, modelName string, cfg *genai.ClientConfig) (model.LLM, error) {
	return newOpenAICompatible("grok", "https://api.x.ai/v1", modelName, cfg)
}
