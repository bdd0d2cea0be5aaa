// Package personalization orchestrates a conversational turn across the
// recency, semantic and profile memory tiers.
package personalization

import (
	"context"
	"errors"
	"time"

	"github.com/easeaico/project-jobo/internal/config"
	"github.com/easeaico/project-jobo/internal/learning"
	"github.com/easeaico/project-jobo/internal/memory"
	"github.com/easeaico/project-jobo/internal/models"
	"github.com/easeaico/project-jobo/internal/prompt"
	"github.com/easeaico/project-jobo/internal/storage"
	"github.com/easeaico/project-jobo/internal/types"
)

// Apology is returned to the user when generation fails.
const Apology = "I apologize, I encountered an error. Please try again."

var (
	// ErrNotFound reports an unknown identity or feedback target.
	ErrNotFound = storage.ErrNotFound
	// ErrInvalidFeedback rejects scores that are not finite numbers.
	ErrInvalidFeedback = errors.New("satisfaction must be a finite number")
)

// ProfileStore is the structured profile tier.
type ProfileStore interface {
	GetOrCreate(ctx context.Context, identity string) (*types.Profile, error)
	Get(ctx context.Context, identity string) (*types.Profile, error)
	ApplyInteraction(ctx context.Context, identity, topic, preference string) (*types.Profile, error)
}

// InteractionStore is the relational audit trail of completed turns.
type InteractionStore interface {
	Create(ctx context.Context, interaction *types.Interaction) error
	SetSatisfaction(ctx context.Context, identity, recordID string, score float64) error
	Stats(ctx context.Context, identity string) (int64, *float64, error)
	RecentTopics(ctx context.Context, identity string, limit int) ([]string, error)
	ListSince(ctx context.Context, identity string, since time.Time) ([]types.Interaction, error)
	Recent(ctx context.Context, identity string, limit int) ([]types.Interaction, error)
}

// Deps are the engine's collaborators.
type Deps struct {
	Profiles     ProfileStore
	Patterns     learning.PatternRepo
	Interactions InteractionStore
	Embedder     memory.Embedder
	Semantic     memory.SemanticStore
	Recency      memory.RecencyBuffer
	Generator    models.Generator
}

// Settings tune generation and context assembly.
type Settings struct {
	AssistantName     string
	MaxTokens         int
	Temperature       float64
	GenerationTimeout time.Duration
	ContextTurns      int
	ContextMemories   int
}

// SettingsFromConfig maps the runtime configuration onto engine settings.
func SettingsFromConfig(cfg config.Config) Settings {
	return Settings{
		AssistantName:     cfg.AssistantName,
		MaxTokens:         cfg.MaxTokens,
		Temperature:       cfg.Temperature,
		GenerationTimeout: cfg.GenerationTimeout,
		ContextTurns:      prompt.DefaultContextTurns,
		ContextMemories:   prompt.DefaultContextMemories,
	}
}

// Engine is safe for concurrent use; all shared state lives in the tiers.
type Engine struct {
	profiles     ProfileStore
	patterns     learning.PatternRepo
	interactions InteractionStore
	embedder     memory.Embedder
	semantic     memory.SemanticStore
	recency      memory.RecencyBuffer
	generator    models.Generator

	learner   *learning.Service
	retriever *memory.Retriever
	contexts  *prompt.ContextBuilder
	prompts   *prompt.Builder
	settings  Settings
	nowFunc   func() time.Time
}

// New validates the collaborators and returns an Engine.
func New(deps Deps, settings Settings) (*Engine, error) {
	switch {
	case deps.Profiles == nil:
		return nil, errors.New("profile store is required")
	case deps.Patterns == nil:
		return nil, errors.New("pattern store is required")
	case deps.Interactions == nil:
		return nil, errors.New("interaction store is required")
	case deps.Embedder == nil:
		return nil, errors.New("embedder is required")
	case deps.Semantic == nil:
		return nil, errors.New("semantic store is required")
	case deps.Recency == nil:
		return nil, errors.New("recency buffer is required")
	case deps.Generator == nil:
		return nil, errors.New("generator is required")
	}
	if settings.GenerationTimeout <= 0 {
		settings.GenerationTimeout = 60 * time.Second
	}
	if settings.MaxTokens <= 0 {
		settings.MaxTokens = 1000
	}

	return &Engine{
		profiles:     deps.Profiles,
		patterns:     deps.Patterns,
		interactions: deps.Interactions,
		embedder:     deps.Embedder,
		semantic:     deps.Semantic,
		recency:      deps.Recency,
		generator:    deps.Generator,
		learner:      learning.NewService(deps.Patterns, deps.Profiles),
		retriever:    memory.NewRetriever(deps.Embedder, deps.Semantic, settings.ContextMemories),
		contexts:     prompt.NewContextBuilder(settings.ContextTurns, settings.ContextMemories),
		prompts:      prompt.NewBuilder(settings.AssistantName),
		settings:     settings,
		nowFunc:      time.Now,
	}, nil
}

// WithClock overrides the engine clock, including time-of-day learning.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.nowFunc = now
	e.learner.WithClock(now)
	return e
}

func (e *Engine) now() time.Time {
	return e.nowFunc().UTC()
}
