package models

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/easeaico/project-jobo/internal/utils"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// ErrEmptyResponse is returned when the provider answers with no text.
var ErrEmptyResponse = errors.New("empty response from model")

// Request is a single-shot generation request.
type Request struct {
	SystemPrompt string
	UserMessage  string
	MaxTokens    int
	Temperature  float64
}

// GenerationError records which provider failed and why.
type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (%s): %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Result carries either generated text or a GenerationError, never both.
type Result struct {
	Text string
	Err  *GenerationError
}

func (r Result) OK() bool {
	return r.Err == nil
}

// Generator produces assistant text for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) Result
}

// LLMGenerator drives a model.LLM with one user message and a system instruction.
type LLMGenerator struct {
	llm      model.LLM
	provider string
}

func NewLLMGenerator(provider string, llm model.LLM) *LLMGenerator {
	return &LLMGenerator{llm: llm, provider: provider}
}

func (g *LLMGenerator) Generate(ctx context.Context, req Request) Result {
	if g.llm == nil {
		return g.fail(errors.New("model is not configured"))
	}

	config := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, "system")
	}
	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		config.Temperature = &temp
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}

	llmReq := &model.LLMRequest{
		Model:    g.llm.Name(),
		Contents: []*genai.Content{genai.NewContentFromText(req.UserMessage, "user")},
		Config:   config,
	}

	var sb strings.Builder
	for resp, err := range g.llm.GenerateContent(ctx, llmReq, false) {
		if err != nil {
			return g.fail(err)
		}
		if resp == nil {
			continue
		}
		sb.WriteString(utils.ExtractContentText(resp.Content))
	}
	if err := ctx.Err(); err != nil {
		return g.fail(err)
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return g.fail(ErrEmptyResponse)
	}
	return Result{Text: text}
}

func (g *LLMGenerator) fail(err error) Result {
	return Result{Err: &GenerationError{Provider: g.provider, Err: err}}
}
