package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/ecomdw/etl/internal/domain/shared"
	"github.com/ecomdw/etl/internal/domain/warehouse"
	"github.com/ecomdw/etl/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RunRepository stores pipeline run history in the audit schema
type RunRepository struct {
	db    *gorm.DB
	table string
}

// NewRunRepository creates a new RunRepository
func NewRunRepository(db *Database) *RunRepository {
	return &RunRepository{db: db.DB, table: db.Tables.Runs()}
}

// Save creates or updates a run
func (r *RunRepository) Save(ctx context.Context, run *warehouse.Run) error {
	model := models.RunModelFromDomain(run)
	err := r.db.WithContext(ctx).Table(r.table).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(model).Error
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

// FindByID finds a run by its ID
func (r *RunRepository) FindByID(ctx context.Context, id uuid.UUID) (*warehouse.Run, error) {
	var model models.RunModel
	if err := r.db.WithContext(ctx).Table(r.table).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindRecent returns up to limit runs, newest first
func (r *RunRepository) FindRecent(ctx context.Context, limit int) ([]*warehouse.Run, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []models.RunModel
	if err := r.db.WithContext(ctx).Table(r.table).Order("started_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	runs := make([]*warehouse.Run, len(rows))
	for i := range rows {
		runs[i] = rows[i].ToDomain()
	}
	return runs, nil
}
