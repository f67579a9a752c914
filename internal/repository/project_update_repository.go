package repository

import (
	"context"

	"github.com/straye-as/pipeline-api/internal/domain"
	"gorm.io/gorm"
)

// ProjectUpdateRepository is the append-only store of project notes
type ProjectUpdateRepository struct {
	db *gorm.DB
}

func NewProjectUpdateRepository(db *gorm.DB) *ProjectUpdateRepository {
	return &ProjectUpdateRepository{db: db}
}

func (r *ProjectUpdateRepository) Append(ctx context.Context, update *domain.ProjectUpdate) error {
	return r.db.WithContext(ctx).Omit("Author").Create(update).Error
}

// ListRecent returns the newest updates first
func (r *ProjectUpdateRepository) ListRecent(ctx context.Context, projectID uint, limit int) ([]domain.ProjectUpdate, error) {
	var updates []domain.ProjectUpdate
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("project_id = ?", projectID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&updates).Error
	return updates, err
}
