package learning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/easeaico/project-jobo/internal/types"
)

// PatternRepo defines the pattern model operations the learner needs.
type PatternRepo interface {
	Reinforce(ctx context.Context, identity, category, value string) (*types.Observation, error)
	TopObservations(ctx context.Context, identity, category string, minConfidence float64, limit int) ([]types.Observation, error)
}

// ProfileRepo defines the profile update used after a completed turn.
type ProfileRepo interface {
	ApplyInteraction(ctx context.Context, identity, topic, preference string) (*types.Profile, error)
}

// preferenceThreshold is the confidence a style must exceed to become the preference.
const preferenceThreshold = 0.5

// Analysis is what one message taught us.
type Analysis struct {
	Topic   string   `json:"topic"`
	Signals []Signal `json:"signals"`
}

// Service reinforces patterns and folds interactions into the profile.
type Service struct {
	patterns PatternRepo
	profiles ProfileRepo
	nowFunc  func() time.Time
}

// NewService returns a new learning service.
func NewService(patterns PatternRepo, profiles ProfileRepo) *Service {
	return &Service{
		patterns: patterns,
		profiles: profiles,
		nowFunc:  time.Now,
	}
}

// WithClock overrides the clock used for time-of-day signals.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.nowFunc = now
	return s
}

// LearnFromInput classifies text and reinforces every derived signal. A
// failed reinforcement does not stop the others; all failures are joined.
func (s *Service) LearnFromInput(ctx context.Context, identity, text string) (Analysis, error) {
	if s == nil || s.patterns == nil {
		return Analysis{}, fmt.Errorf("pattern repo is nil")
	}
	analysis := Analysis{
		Topic:   Classify(text),
		Signals: DeriveStyleSignals(text, s.nowFunc()),
	}

	var errs []error
	for _, sig := range analysis.Signals {
		if _, err := s.patterns.Reinforce(ctx, identity, sig.Category, sig.Value); err != nil {
			errs = append(errs, fmt.Errorf("failed to reinforce %s=%s: %w", sig.Category, sig.Value, err))
		}
	}
	return analysis, errors.Join(errs...)
}

// UpdateProfile records the input's topic as an interest and promotes the
// strongest communication style above the threshold to the preference.
func (s *Service) UpdateProfile(ctx context.Context, identity, input string) (*types.Profile, error) {
	if s == nil || s.patterns == nil || s.profiles == nil {
		return nil, fmt.Errorf("learning service not configured")
	}

	topic := Classify(input)
	if topic == TopicGeneral {
		topic = ""
	}

	styles, err := s.patterns.TopObservations(ctx, identity, types.CategoryCommunicationStyle, preferenceThreshold, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to load communication styles: %w", err)
	}
	var preference string
	if len(styles) > 0 {
		preference = styles[0].Value
	}

	profile, err := s.profiles.ApplyInteraction(ctx, identity, topic, preference)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return profile, nil
}
