package personalization

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/easeaico/project-jobo/internal/learning"
	"github.com/easeaico/project-jobo/internal/memory"
	"github.com/easeaico/project-jobo/internal/models"
	"github.com/easeaico/project-jobo/internal/prompt"
	"github.com/easeaico/project-jobo/internal/storage"
	"github.com/easeaico/project-jobo/internal/types"
	"github.com/easeaico/project-jobo/internal/utils"
	"github.com/google/uuid"
)

const (
	contextPreviewRunes = 200
	userInputTagRunes   = 200
)

// TurnResult is what a caller gets back from Chat.
type TurnResult struct {
	TurnID   string `json:"turn_id"`
	Response string `json:"response"`
	// InteractionID is the record ID feedback refers to; empty when nothing was persisted.
	InteractionID string `json:"interaction_id"`
	ContextUsed   string `json:"context_used"`
	Topic         string `json:"topic"`
	Degraded      []Tier `json:"degraded,omitempty"`
	Failed        bool   `json:"failed,omitempty"`
}

// Chat runs a full turn: the user message is buffered, learned from and
// answered with tier-aware context; a successful answer is persisted.
// Generation failure yields Apology and persists nothing.
func (e *Engine) Chat(ctx context.Context, identity, input string) (TurnResult, error) {
	if identity == "" {
		return TurnResult{}, types.ErrEmptyIdentity
	}
	status := &turnStatus{identity: identity, turnID: uuid.NewString()}
	result := TurnResult{TurnID: status.turnID}

	// received
	if err := status.runStage("received", func() error {
		_, err := e.profiles.GetOrCreate(ctx, identity)
		return err
	}); err != nil {
		status.degrade(TierProfile, err)
	}
	if err := status.runStage("buffer_user_turn", func() error {
		return e.recency.Append(ctx, identity, types.Turn{
			Role:      types.RoleUser,
			Content:   input,
			Timestamp: e.now(),
		})
	}); err != nil {
		status.degrade(TierRecency, err)
	}

	// classified, patterns-reinforced
	var analysis learning.Analysis
	if err := status.runStage("learn", func() error {
		var err error
		analysis, err = e.learner.LearnFromInput(ctx, identity, input)
		return err
	}); err != nil {
		status.degrade(TierPatterns, err)
	}
	if analysis.Topic == "" {
		analysis.Topic = learning.Classify(input)
	}
	result.Topic = analysis.Topic

	// context-built
	contextText := e.assembleContext(ctx, identity, input, status)
	result.ContextUsed = contextText
	if utils.RuneLen(contextText) > contextPreviewRunes {
		result.ContextUsed = utils.Truncate(contextText, contextPreviewRunes) + "..."
	}

	// generation
	gen := e.generate(ctx, contextText, input)
	if !gen.OK() {
		slog.Error("generation failed",
			"user_id", identity,
			"turn_id", status.turnID,
			"provider", gen.Err.Provider,
			"error", gen.Err.Error())
		result.Response = Apology
		result.Failed = true
		result.Degraded = status.degraded
		return result, nil
	}
	result.Response = gen.Text

	// persisted, profile-updated
	result.InteractionID = e.completeTurn(ctx, identity, input, gen.Text, status)
	result.Degraded = status.degraded

	slog.Info("turn completed",
		"user_id", identity,
		"turn_id", status.turnID,
		"topic", result.Topic,
		"degraded", len(result.Degraded))
	return result, nil
}

func (e *Engine) generate(ctx context.Context, contextText, input string) models.Result {
	system, err := e.prompts.System(contextText)
	if err != nil {
		return models.Result{Err: &models.GenerationError{Provider: "prompt", Err: err}}
	}

	genCtx, cancel := context.WithTimeout(ctx, e.settings.GenerationTimeout)
	defer cancel()
	return e.generator.Generate(genCtx, models.Request{
		SystemPrompt: system,
		UserMessage:  input,
		MaxTokens:    e.settings.MaxTokens,
		Temperature:  e.settings.Temperature,
	})
}

// BuildContext renders the profile, recent turns and relevant memories for input.
// Unavailable tiers are left out.
func (e *Engine) BuildContext(ctx context.Context, identity, input string) string {
	status := &turnStatus{identity: identity, turnID: "context"}
	return e.assembleContext(ctx, identity, input, status)
}

func (e *Engine) assembleContext(ctx context.Context, identity, input string, status *turnStatus) string {
	var in prompt.ContextInput

	if err := status.runStage("load_profile", func() error {
		profile, err := e.profiles.Get(ctx, identity)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		in.Profile = profile
		return err
	}); err != nil {
		status.degrade(TierProfile, err)
	}

	if err := status.runStage("load_recent", func() error {
		recent, err := e.recency.Recent(ctx, identity, e.settings.contextTurns())
		in.Recent = recent
		return err
	}); err != nil {
		status.degrade(TierRecency, err)
	}

	if err := status.runStage("recall", func() error {
		memories, err := e.retriever.Retrieve(ctx, identity, input)
		in.Memories = memories
		return err
	}); err != nil {
		status.degrade(TierSemantic, err)
	}

	return e.contexts.Build(in)
}

func (s Settings) contextTurns() int {
	if s.ContextTurns <= 0 {
		return prompt.DefaultContextTurns
	}
	return s.ContextTurns
}

// CompleteTurn persists a finished exchange and folds it into the profile.
// It returns the record ID (empty when no interaction row was written) and
// the tiers that degraded along the way.
func (e *Engine) CompleteTurn(ctx context.Context, identity, input, output string) (string, []Tier, error) {
	if identity == "" {
		return "", nil, types.ErrEmptyIdentity
	}
	status := &turnStatus{identity: identity, turnID: uuid.NewString()}
	recordID := e.completeTurn(ctx, identity, input, output, status)
	return recordID, status.degraded, nil
}

func (e *Engine) completeTurn(ctx context.Context, identity, input, output string, status *turnStatus) string {
	now := e.now()
	text := fmt.Sprintf("User: %s\nAssistant: %s", input, output)
	topic := learning.Classify(input)
	tags := map[string]string{
		types.TagTimestamp: now.Format(time.RFC3339),
		types.TagTopic:     topic,
		types.TagUserInput: utils.Truncate(input, userInputTagRunes),
	}
	recordID := memory.RecordID(text, tags)

	var vector []float32
	if err := status.runStage("embed", func() error {
		var err error
		vector, err = e.embedder.Embed(ctx, text)
		return err
	}); err != nil {
		status.degrade(TierEmbedding, err)
	} else if err := status.runStage("store_memory", func() error {
		_, err := e.semantic.Insert(ctx, identity, text, vector, tags)
		return err
	}); err != nil {
		status.degrade(TierSemantic, err)
	}

	interactionID := ""
	if err := status.runStage("record_interaction", func() error {
		return e.interactions.Create(ctx, &types.Interaction{
			UserID:            identity,
			RecordID:          recordID,
			UserInput:         input,
			AssistantResponse: output,
			Topic:             topic,
			Tags:              tags,
			CreatedAt:         now,
		})
	}); err != nil {
		status.degrade(TierInteractions, err)
	} else {
		interactionID = recordID
	}

	if err := status.runStage("buffer_assistant_turn", func() error {
		return e.recency.Append(ctx, identity, types.Turn{
			Role:      types.RoleAssistant,
			Content:   output,
			Timestamp: now,
		})
	}); err != nil {
		status.degrade(TierRecency, err)
	}

	if err := status.runStage("update_profile", func() error {
		_, err := e.learner.UpdateProfile(ctx, identity, input)
		return err
	}); err != nil {
		status.degrade(TierProfile, err)
	}

	return interactionID
}
