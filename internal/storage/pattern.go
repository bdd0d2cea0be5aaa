package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/easeaico/project-jobo/internal/types"
)

// patternModel maps to the learned_patterns table.
type patternModel struct {
	ID          uint    `gorm:"primaryKey"`
	UserID      string  `gorm:"size:255;not null;uniqueIndex:idx_learned_pattern"`
	PatternType string  `gorm:"size:64;not null;uniqueIndex:idx_learned_pattern"`
	PatternData string  `gorm:"size:255;not null;uniqueIndex:idx_learned_pattern"`
	Confidence  float64 `gorm:"not null;default:0.1"`
	LastUsed    time.Time
	CreatedAt   time.Time
}

func (patternModel) TableName() string {
	return "learned_patterns"
}

// PatternRepo accesses learned patterns.
type PatternRepo struct {
	db  *gorm.DB
	now func() time.Time
}

// NewPatternRepo returns a PatternRepo.
func NewPatternRepo(db *gorm.DB) *PatternRepo {
	return &PatternRepo{db: db, now: utcNow}
}

// reinforceExpr raises confidence by one step, rounded to one decimal, capped at the max.
const reinforceExpr = "CASE WHEN learned_patterns.confidence + ? >= ? THEN ? " +
	"ELSE ROUND(CAST(learned_patterns.confidence + ? AS NUMERIC), 1) END"

// Reinforce records one more sighting of (category, value). A first sighting
// starts at 0.1; the increment happens inside a single upsert statement so
// concurrent reinforcements never overwrite each other.
func (r *PatternRepo) Reinforce(ctx context.Context, identity, category, value string) (*types.Observation, error) {
	if identity == "" {
		return nil, types.ErrEmptyIdentity
	}
	now := r.now()
	record := patternModel{
		UserID:      identity,
		PatternType: category,
		PatternData: value,
		Confidence:  types.ConfidenceStep,
		LastUsed:    now,
		CreatedAt:   now,
	}

	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "pattern_type"}, {Name: "pattern_data"}},
			DoUpdates: clause.Assignments(map[string]any{
				"confidence": gorm.Expr(reinforceExpr,
					types.ConfidenceStep, types.ConfidenceMax, types.ConfidenceMax, types.ConfidenceStep),
				"last_used": now,
			}),
		}).
		Create(&record).Error; err != nil {
		return nil, fmt.Errorf("failed to reinforce pattern: %w", err)
	}

	var model patternModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND pattern_type = ? AND pattern_data = ?", identity, category, value).
		First(&model).Error; err != nil {
		return nil, fmt.Errorf("failed to read reinforced pattern: %w", err)
	}
	obs := observationFromModel(model)
	return &obs, nil
}

// TopObservations returns observations with confidence strictly above
// minConfidence, highest first. An empty category matches all categories and
// a non-positive limit returns everything.
func (r *PatternRepo) TopObservations(ctx context.Context, identity, category string, minConfidence float64, limit int) ([]types.Observation, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ? AND confidence > ?", identity, minConfidence).
		Order("confidence DESC").
		Order("last_used DESC")
	if category != "" {
		query = query.Where("pattern_type = ?", category)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []patternModel
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query patterns: %w", err)
	}
	results := make([]types.Observation, 0, len(records))
	for _, record := range records {
		results = append(results, observationFromModel(record))
	}
	return results, nil
}

func observationFromModel(model patternModel) types.Observation {
	return types.Observation{
		UserID:     model.UserID,
		Category:   model.PatternType,
		Value:      model.PatternData,
		Confidence: model.Confidence,
		LastUsed:   model.LastUsed,
		CreatedAt:  model.CreatedAt,
	}
}
