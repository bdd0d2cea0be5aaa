package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/easeaico/project-jobo/internal/types"
)

// profileModel maps to the user_profiles table.
type profileModel struct {
	ID                 uint   `gorm:"primaryKey"`
	UserID             string `gorm:"size:255;not null;uniqueIndex"`
	Name               string `gorm:"size:255"`
	Preferences        datatypes.JSON
	Interests          datatypes.JSON
	CommunicationStyle datatypes.JSON
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (profileModel) TableName() string {
	return "user_profiles"
}

// ProfileRepo accesses user profiles.
type ProfileRepo struct {
	db  *gorm.DB
	now func() time.Time
}

// NewProfileRepo returns a ProfileRepo.
func NewProfileRepo(db *gorm.DB) *ProfileRepo {
	return &ProfileRepo{db: db, now: utcNow}
}

func utcNow() time.Time {
	return time.Now().UTC()
}

// GetOrCreate inserts the default profile unless one exists, then reads it back.
// Concurrent first contacts for one identity converge on a single row.
func (r *ProfileRepo) GetOrCreate(ctx context.Context, identity string) (*types.Profile, error) {
	profile, err := types.NewProfile(identity, r.now())
	if err != nil {
		return nil, err
	}
	record, err := profileToModel(profile)
	if err != nil {
		return nil, err
	}

	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&record).Error; err != nil {
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}
	return r.Get(ctx, identity)
}

// Get returns ErrNotFound when the identity has no profile.
func (r *ProfileRepo) Get(ctx context.Context, identity string) (*types.Profile, error) {
	var model profileModel
	err := r.db.WithContext(ctx).Where("user_id = ?", identity).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profileFromModel(model), nil
}

// ApplyInteraction folds one interaction into the profile under a row lock:
// topic joins the interests when new, preference (if set) becomes the
// communication style preference, and updated_at moves forward.
func (r *ProfileRepo) ApplyInteraction(ctx context.Context, identity, topic, preference string) (*types.Profile, error) {
	var result *types.Profile
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx
		if tx.Dialector.Name() == "postgres" {
			query = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var model profileModel
		err := query.Where("user_id = ?", identity).First(&model).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock profile: %w", err)
		}

		profile := profileFromModel(model)
		if topic != "" && !profile.HasInterest(topic) {
			profile.Interests = append(profile.Interests, topic)
		}
		if preference != "" {
			profile.CommunicationStyle[types.StylePreference] = preference
		}
		profile.UpdatedAt = r.now()

		interests, err := marshalJSON(profile.Interests)
		if err != nil {
			return fmt.Errorf("failed to encode interests: %w", err)
		}
		style, err := marshalJSON(profile.CommunicationStyle)
		if err != nil {
			return fmt.Errorf("failed to encode communication style: %w", err)
		}
		if err := tx.Model(&profileModel{}).
			Where("id = ?", model.ID).
			Updates(map[string]any{
				"interests":           interests,
				"communication_style": style,
				"updated_at":          profile.UpdatedAt,
			}).Error; err != nil {
			return fmt.Errorf("failed to update profile: %w", err)
		}
		result = profile
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func profileToModel(p types.Profile) (profileModel, error) {
	preferences, err := marshalJSON(p.Preferences)
	if err != nil {
		return profileModel{}, fmt.Errorf("failed to encode preferences: %w", err)
	}
	interests, err := marshalJSON(p.Interests)
	if err != nil {
		return profileModel{}, fmt.Errorf("failed to encode interests: %w", err)
	}
	style, err := marshalJSON(p.CommunicationStyle)
	if err != nil {
		return profileModel{}, fmt.Errorf("failed to encode communication style: %w", err)
	}
	return profileModel{
		UserID:             p.UserID,
		Name:               p.Name,
		Preferences:        preferences,
		Interests:          interests,
		CommunicationStyle: style,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}, nil
}

func profileFromModel(model profileModel) *types.Profile {
	profile := &types.Profile{
		UserID:             model.UserID,
		Name:               model.Name,
		Preferences:        map[string]string{},
		Interests:          []string{},
		CommunicationStyle: map[string]string{},
		CreatedAt:          model.CreatedAt,
		UpdatedAt:          model.UpdatedAt,
	}
	table := profileModel{}.TableName()
	if !decodeColumn(model.Preferences, &profile.Preferences, table, "preferences", model.UserID) {
		profile.Preferences = map[string]string{}
	}
	if !decodeColumn(model.Interests, &profile.Interests, table, "interests", model.UserID) {
		profile.Interests = []string{}
	}
	if !decodeColumn(model.CommunicationStyle, &profile.CommunicationStyle, table, "communication_style", model.UserID) {
		profile.CommunicationStyle = map[string]string{}
	}
	if profile.Name == "" {
		profile.Name = types.DefaultName
	}
	return profile
}
