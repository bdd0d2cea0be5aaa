package personalization

import (
	"fmt"
	"log/slog"
	"slices"
)

// Tier names a backend that can degrade without failing the turn.
type Tier string

const (
	TierEmbedding    Tier = "embedding"
	TierRecency      Tier = "recency"
	TierSemantic     Tier = "semantic"
	TierProfile      Tier = "profile"
	TierPatterns     Tier = "patterns"
	TierInteractions Tier = "interactions"
)

// turnStatus collects the degraded tiers of one turn.
type turnStatus struct {
	identity string
	turnID   string
	degraded []Tier
}

func (s *turnStatus) degrade(tier Tier, err error) {
	slog.Warn("memory tier degraded",
		"tier", string(tier),
		"user_id", s.identity,
		"turn_id", s.turnID,
		"error", err.Error())
	if !slices.Contains(s.degraded, tier) {
		s.degraded = append(s.degraded, tier)
	}
}

// runStage runs one step of the turn, turning a panic into an error.
func (s *turnStatus) runStage(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("turn stage panic", "stage", name, "turn_id", s.turnID, "error", r)
			err = fmt.Errorf("stage %s panicked: %v", name, r)
		}
	}()

	slog.Debug("turn stage start", "stage", name, "turn_id", s.turnID)
	if err = fn(); err != nil {
		slog.Debug("turn stage error", "stage", name, "turn_id", s.turnID, "error", err.Error())
		return err
	}
	slog.Debug("turn stage done", "stage", name, "turn_id", s.turnID)
	return nil
}
