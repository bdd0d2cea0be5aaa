package models

import (
	"context"
	"fmt"

	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/genai"
)

// NewGeminiModel creates a Gemini model through the adk gemini adapter.
func NewGeminiModel(ctx context.Context, modelName string, cfg *genai.ClientConfig) (model.LLM, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Backend == genai.BackendUnspecified {
		cfg.Backend = genai.BackendGeminiAPI
	}
	llm, err := gemini.NewModel(ctx, modelName, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini model: %w", err)
	}
	return llm, nil
}

// NewLLM builds the model.LLM for a provider name.
func NewLLM(ctx context.Context, provider, modelName, apiKey string) (model.LLM, error) {
	cfg := &genai.ClientConfig{APIKey: apiKey}
	switch provider {
	case "anthropic":
		return NewAnthropicModel(ctx, modelName, cfg)
	case "openai":
		return NewOpenAIModel(ctx, modelName, cfg)
	case "grok":
		return NewGrokModel(ctx, modelName, cfg)
	case "openrouter":
		return NewOpenRouterModel(ctx, modelName, cfg)
	case "gemini":
		return NewGeminiModel(ctx, modelName, cfg)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", provider)
	}
}
