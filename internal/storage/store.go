// Package storage persists profiles, learned patterns and interactions.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("record not found")

// Store holds the DB pool and repositories.
type Store struct {
	db           *gorm.DB
	Profiles     *ProfileRepo
	Patterns     *PatternRepo
	Interactions *InteractionRepo
}

// NewStore opens the database, migrates the schema and wires the repositories.
// dbType is "postgres" or "sqlite"; for sqlite the url is a file path or ":memory:".
func NewStore(ctx context.Context, dbType, databaseURL string) (*Store, error) {
	var dialector gorm.Dialector
	switch dbType {
	case "postgres":
		dialector = postgres.Open(databaseURL)
	case "sqlite":
		dialector = sqlite.Open(databaseURL)
	default:
		return nil, fmt.Errorf("unsupported database type %q", dbType)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql db: %w", err)
	}
	if dbType == "sqlite" {
		// One writer; also keeps ":memory:" pointing at a single database.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&profileModel{}, &patternModel{}, &interactionModel{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &Store{
		db:           db,
		Profiles:     NewProfileRepo(db),
		Patterns:     NewPatternRepo(db),
		Interactions: NewInteractionRepo(db),
	}, nil
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) Close() {
	if s.db == nil {
		return
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return
	}
	_ = sqlDB.Close()
}
