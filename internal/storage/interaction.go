package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/easeaico/project-jobo/internal/types"
)

// interactionModel maps to the interactions table.
type interactionModel struct {
	ID                string `gorm:"primaryKey;size:26"`
	UserID            string `gorm:"size:255;not null;index:idx_interaction_user"`
	RecordID          string `gorm:"size:64;index"`
	UserInput         string `gorm:"type:text"`
	AssistantResponse string `gorm:"type:text"`
	Topic             string `gorm:"size:64"`
	Tags              datatypes.JSON
	Satisfaction      *float64
	CreatedAt         time.Time `gorm:"index:idx_interaction_user"`
}

func (interactionModel) TableName() string {
	return "interactions"
}

// InteractionRepo accesses completed turns.
type InteractionRepo struct {
	db  *gorm.DB
	now func() time.Time
}

// NewInteractionRepo returns an InteractionRepo.
func NewInteractionRepo(db *gorm.DB) *InteractionRepo {
	return &InteractionRepo{db: db, now: utcNow}
}

// Create stores the interaction, assigning a ULID and timestamp when missing.
func (r *InteractionRepo) Create(ctx context.Context, interaction *types.Interaction) error {
	if interaction == nil {
		return fmt.Errorf("interaction cannot be nil")
	}
	if interaction.UserID == "" {
		return types.ErrEmptyIdentity
	}
	if interaction.ID == "" {
		interaction.ID = ulid.Make().String()
	}
	if interaction.CreatedAt.IsZero() {
		interaction.CreatedAt = r.now()
	}
	tags, err := marshalJSON(interaction.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode interaction tags: %w", err)
	}
	record := interactionModel{
		ID:                interaction.ID,
		UserID:            interaction.UserID,
		RecordID:          interaction.RecordID,
		UserInput:         interaction.UserInput,
		AssistantResponse: interaction.AssistantResponse,
		Topic:             interaction.Topic,
		Tags:              tags,
		Satisfaction:      interaction.Satisfaction,
		CreatedAt:         interaction.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to insert interaction: %w", err)
	}
	return nil
}

// SetSatisfaction attaches a score to the interaction behind recordID.
func (r *InteractionRepo) SetSatisfaction(ctx context.Context, identity, recordID string, score float64) error {
	result := r.db.WithContext(ctx).
		Model(&interactionModel{}).
		Where("user_id = ? AND record_id = ?", identity, recordID).
		Update("satisfaction", score)
	if result.Error != nil {
		return fmt.Errorf("failed to update satisfaction: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats returns the interaction count and the mean satisfaction (nil when unrated).
func (r *InteractionRepo) Stats(ctx context.Context, identity string) (int64, *float64, error) {
	var row struct {
		Total   int64
		Average *float64
	}
	if err := r.db.WithContext(ctx).
		Model(&interactionModel{}).
		Select("COUNT(*) AS total, AVG(satisfaction) AS average").
		Where("user_id = ?", identity).
		Scan(&row).Error; err != nil {
		return 0, nil, fmt.Errorf("failed to aggregate interactions: %w", err)
	}
	return row.Total, row.Average, nil
}

// RecentTopics returns the topics of the latest interactions, newest first.
func (r *InteractionRepo) RecentTopics(ctx context.Context, identity string, limit int) ([]string, error) {
	var topics []string
	if err := r.db.WithContext(ctx).
		Model(&interactionModel{}).
		Where("user_id = ?", identity).
		Order("created_at DESC").
		Limit(limit).
		Pluck("topic", &topics).Error; err != nil {
		return nil, fmt.Errorf("failed to query recent topics: %w", err)
	}
	return topics, nil
}

// Recent returns the latest interactions, newest first.
func (r *InteractionRepo) Recent(ctx context.Context, identity string, limit int) ([]types.Interaction, error) {
	var records []interactionModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", identity).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	results := make([]types.Interaction, 0, len(records))
	for _, record := range records {
		results = append(results, interactionFromModel(record))
	}
	return results, nil
}

// ListSince returns interactions created at or after since, oldest first.
func (r *InteractionRepo) ListSince(ctx context.Context, identity string, since time.Time) ([]types.Interaction, error) {
	var records []interactionModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND created_at >= ?", identity, since).
		Order("created_at ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	results := make([]types.Interaction, 0, len(records))
	for _, record := range records {
		results = append(results, interactionFromModel(record))
	}
	return results, nil
}

func interactionFromModel(model interactionModel) types.Interaction {
	var tags map[string]string
	if !decodeColumn(model.Tags, &tags, model.TableName(), "tags", model.UserID) {
		tags = nil
	}
	return types.Interaction{
		ID:                model.ID,
		UserID:            model.UserID,
		RecordID:          model.RecordID,
		UserInput:         model.UserInput,
		AssistantResponse: model.AssistantResponse,
		Topic:             model.Topic,
		Tags:              tags,
		Satisfaction:      model.Satisfaction,
		CreatedAt:         model.CreatedAt,
	}
}
